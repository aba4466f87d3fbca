package debugloop

import (
	"fmt"
	"strings"

	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/sandbox"
)

type Reason uint8

const (
	ReasonExhaustedAttempts Reason = iota + 1
	ReasonRepeatedTimeout
	ReasonNoCode
	ReasonSourceError
)

var reasonNames = map[Reason]string{
	ReasonExhaustedAttempts: "exhausted-attempts",
	ReasonRepeatedTimeout:   "repeated-timeout",
	ReasonNoCode:            "no-code",
	ReasonSourceError:       "source-error",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", r)
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Attempt is one round of getting, running and checking code.
type Attempt struct {
	Number  int
	Code    string
	Outcome *sandbox.Outcome
	// Issues are the blocking issues of the attempt.
	Issues []issues.Issue
	// Err is the error getting code, if any.
	Err error
}

// GiveUpError is returned when the loop stops without clean code.
type GiveUpError struct {
	Reason   Reason
	Attempts []Attempt
	Err      error
}

func (g *GiveUpError) Error() string {
	if g.Err != nil {
		return fmt.Sprintf("gave up after %d attempts: %s: %v", len(g.Attempts), g.Reason, g.Err)
	}
	return fmt.Sprintf("gave up after %d attempts: %s", len(g.Attempts), g.Reason)
}

func (g *GiveUpError) Unwrap() error {
	return g.Err
}

// Summary describes the attempts for a human.
func (g *GiveUpError) Summary() string {
	return Summarize(g.Reason, g.Attempts)
}

// Summarize describes attempts for a human. A zero reason means the last attempt succeeded.
func Summarize(reason Reason, attempts []Attempt) string {
	var b strings.Builder
	if reason == 0 {
		fmt.Fprintf(&b, "succeeded after %d attempt(s)\n", len(attempts))
	} else {
		fmt.Fprintf(&b, "failed after %d attempt(s): %s\n", len(attempts), reason)
	}
	for _, a := range attempts {
		fmt.Fprintf(&b, "attempt %d: ", a.Number)
		switch {
		case a.Err != nil:
			fmt.Fprintf(&b, "no code: %v\n", a.Err)
		case a.Outcome != nil && a.Outcome.Failure != nil:
			fmt.Fprintf(&b, "%s", a.Outcome.Failure.Kind)
			if len(a.Issues) > 0 {
				fmt.Fprintf(&b, ", %d issue(s)", len(a.Issues))
			}
			b.WriteString("\n")
		case len(a.Issues) > 0:
			fmt.Fprintf(&b, "%d issue(s): ", len(a.Issues))
			var categories []string
			for _, issue := range issues.MostSevere(a.Issues) {
				if len(categories) == 0 || categories[len(categories)-1] != issue.Category {
					categories = append(categories, issue.Category)
				}
			}
			b.WriteString(strings.Join(categories, "; "))
			b.WriteString("\n")
		default:
			b.WriteString("clean\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
