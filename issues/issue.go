package issues

import (
	"fmt"
	"strings"
)

// CodeProblem classifies an Issue. Lower values are more severe.
type CodeProblem uint8

const (
	CodeProblemRuntimeError CodeProblem = iota + 1
	CodeProblemCallSyntax
	CodeProblemMissingOutputFiles
	CodeProblemOutputContentA
	CodeProblemOutputContentB
	CodeProblemOutputContentC
	CodeProblemOutputDesign
	CodeProblemNonBreakingRuntime
	CodeProblemStaticCheck
)

var codeProblemNames = map[CodeProblem]string{
	CodeProblemRuntimeError:       "runtime-error",
	CodeProblemCallSyntax:         "call-syntax",
	CodeProblemMissingOutputFiles: "missing-output-files",
	CodeProblemOutputContentA:     "output-content-a",
	CodeProblemOutputContentB:     "output-content-b",
	CodeProblemOutputContentC:     "output-content-c",
	CodeProblemOutputDesign:       "output-design",
	CodeProblemNonBreakingRuntime: "non-breaking-runtime",
	CodeProblemStaticCheck:        "static-check",
}

func (c CodeProblem) String() string {
	if name, ok := codeProblemNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code-problem(%d)", c)
}

func (c CodeProblem) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *CodeProblem) UnmarshalText(text []byte) error {
	for problem, name := range codeProblemNames {
		if name == string(text) {
			*c = problem
			return nil
		}
	}
	return fmt.Errorf("unknown code problem: %s", text)
}

// Blocking reports whether issues of this kind fail the attempt by themselves.
func (c CodeProblem) Blocking() bool {
	return c != CodeProblemNonBreakingRuntime && c != CodeProblemStaticCheck
}

type Issue struct {
	Category     string      `yaml:"category"`
	Item         string      `yaml:"item,omitempty"`
	IssueText    string      `yaml:"issue"`
	Instructions string      `yaml:"instructions,omitempty"`
	CodeProblem  CodeProblem `yaml:"code_problem"`
	// ForgiveAfter, when set, makes the issue tolerated once it has recurred more than this many times.
	ForgiveAfter *int `yaml:"forgive_after,omitempty"`
}

func ForgiveAfter(n int) *int {
	return &n
}

// Key identifies "the same" issue across retries.
func (i Issue) Key() string {
	return strings.Join([]string{
		i.Category,
		i.Item,
		i.IssueText,
	}, "\x00")
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(i.Category)
	if i.Item != "" {
		b.WriteString(" (")
		b.WriteString(i.Item)
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(i.IssueText)
	return b.String()
}

type Collector interface {
	AddIssue(issue Issue)
}

type List []Issue

var _ Collector = new(List)

func (l *List) AddIssue(issue Issue) {
	*l = append(*l, issue)
}

func (l List) Clean() bool {
	return len(l) == 0
}

// MostSevere returns the issues sharing the most severe CodeProblem.
func MostSevere(list []Issue) []Issue {
	if len(list) == 0 {
		return nil
	}
	severest := list[0].CodeProblem
	for _, issue := range list[1:] {
		if issue.CodeProblem < severest {
			severest = issue.CodeProblem
		}
	}
	var ret []Issue
	for _, issue := range list {
		if issue.CodeProblem == severest {
			ret = append(ret, issue)
		}
	}
	return ret
}

// AnyBlocking reports whether the list fails an attempt.
func AnyBlocking(list []Issue) bool {
	for _, issue := range list {
		if issue.CodeProblem.Blocking() {
			return true
		}
	}
	return false
}
