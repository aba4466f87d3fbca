package guards

import (
	"fmt"

	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/warnings"
	"go.starlark.net/starlark"
)

type WarningAction uint8

const (
	WarningIgnore WarningAction = iota + 1
	WarningRaise
	WarningIssue
)

func ParseWarningAction(s string) (WarningAction, error) {
	switch s {
	case "ignore":
		return WarningIgnore, nil
	case "raise":
		return WarningRaise, nil
	case "issue":
		return WarningIssue, nil
	}
	return 0, fmt.Errorf("unknown warning action: %s", s)
}

// WarningGuard decides per category what warnings emitted during a run do.
type WarningGuard struct {
	Rules map[string]WarningAction
	// Default applies to categories without a rule.
	Default   WarningAction
	Seen      []warnings.Warning
	IssueList issues.List
}

var _ Guard = new(WarningGuard)

var _ warnings.Handler = new(WarningGuard)

func (w *WarningGuard) GuardName() string {
	return "warnings"
}

func (w *WarningGuard) Enter(env *Env) error {
	warnings.Bind(env.Thread, w)
	return nil
}

func (w *WarningGuard) Exit(env *Env) error {
	if warnings.HandlerFromThread(env.Thread) == warnings.Handler(w) {
		warnings.Bind(env.Thread, nil)
	}
	return nil
}

func (w *WarningGuard) Issues() []issues.Issue {
	return w.IssueList
}

func (w *WarningGuard) action(category string) WarningAction {
	if action, ok := w.Rules[category]; ok {
		return action
	}
	if w.Default == 0 {
		return WarningIssue
	}
	return w.Default
}

func (w *WarningGuard) HandleWarning(thread *starlark.Thread, warning warnings.Warning) error {
	w.Seen = append(w.Seen, warning)
	switch w.action(warning.Category) {
	case WarningIgnore:
	case WarningRaise:
		return &WarningError{
			Warning: warning,
		}
	case WarningIssue:
		w.IssueList.AddIssue(issues.Issue{
			Category:     "Non-breaking runtime warning",
			Item:         warning.Category,
			IssueText:    fmt.Sprintf("Code produced an undesired warning:\n```\n%s\n```", warning),
			Instructions: "Please see if you understand the cause of this warning and fix the code.",
			CodeProblem:  issues.CodeProblemNonBreakingRuntime,
		})
	}
	return nil
}
