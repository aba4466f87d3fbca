// Package checks runs ordered checks over a subject and collects the issues they report.
package checks

import (
	"fmt"

	"github.com/reusee/scisandbox/issues"
)

type Flow uint8

const (
	Continue Flow = iota
	// Stop skips the remaining checks of the checker.
	Stop
)

// Intermediate carries results between the checkers of a chain.
type Intermediate map[string]any

func Lookup[V any](im Intermediate, key string) (ret V, ok bool) {
	v, ok := im[key]
	if !ok {
		return
	}
	ret, ok = v.(V)
	return
}

type State[T any] struct {
	Subject      T
	Intermediate Intermediate
	Issues       issues.List
}

var _ issues.Collector = new(State[int])

func (s *State[T]) AddIssue(issue issues.Issue) {
	s.Issues.AddIssue(issue)
}

// Check reports issues on the state. An error means the check itself is broken.
type Check[T any] struct {
	Name string
	Run  func(*State[T]) (Flow, error)
}

// Checker runs its checks in declared order.
type Checker[T any] struct {
	Name   string
	Checks []Check[T]
}

func (c *Checker[T]) Run(subject T, im Intermediate) (issues.List, error) {
	if im == nil {
		im = make(Intermediate)
	}
	state := &State[T]{
		Subject:      subject,
		Intermediate: im,
	}
	for _, check := range c.Checks {
		flow, err := check.Run(state)
		if err != nil {
			return state.Issues, fmt.Errorf("%s: %s: %w", c.Name, check.Name, err)
		}
		if flow == Stop {
			break
		}
	}
	return state.Issues, nil
}

// Chain runs checkers in order and stops after the first checker that reports an issue not forgivable.
type Chain[T any] struct {
	Checkers []*Checker[T]
	// Forgivable decides whether an issue lets the chain go on. Nil treats every issue as not forgivable.
	Forgivable func(issues.Issue) bool
}

func (c *Chain[T]) Run(subject T, im Intermediate) (issues.List, error) {
	if im == nil {
		im = make(Intermediate)
	}
	var ret issues.List
	for _, checker := range c.Checkers {
		list, err := checker.Run(subject, im)
		ret = append(ret, list...)
		if err != nil {
			return ret, err
		}
		if c.stops(list) {
			break
		}
	}
	return ret, nil
}

func (c *Chain[T]) stops(list issues.List) bool {
	for _, issue := range list {
		if c.Forgivable == nil || !c.Forgivable(issue) {
			return true
		}
	}
	return false
}
