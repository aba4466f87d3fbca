package guards

import (
	"fmt"
	"slices"

	"github.com/reusee/scisandbox/intercept"
	"github.com/reusee/scisandbox/issues"
	"go.starlark.net/starlark"
)

type Severity uint8

const (
	// SeverityRaise fails the call.
	SeverityRaise Severity = iota + 1
	// SeverityRecord lets the call through and reports an issue.
	SeverityRecord
)

func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "raise", "":
		return SeverityRaise, nil
	case "record":
		return SeverityRecord, nil
	}
	return 0, fmt.Errorf("unknown severity: %s", s)
}

type ForbiddenCall struct {
	// Module is the dotted module path, empty for builtins.
	Module   string
	Name     string
	Severity Severity
}

func (f ForbiddenCall) String() string {
	if f.Module == "" {
		return f.Name
	}
	return f.Module + "." + f.Name
}

// DefaultForbiddenCalls are builtins that make no sense in unattended code.
var DefaultForbiddenCalls = []ForbiddenCall{
	{Name: "print", Severity: SeverityRecord},
	{Name: "input", Severity: SeverityRaise},
	{Name: "eval", Severity: SeverityRaise},
	{Name: "exit", Severity: SeverityRaise},
}

// CallGuard intercepts calls to forbidden functions made by submitted code.
type CallGuard struct {
	Forbidden []ForbiddenCall
	// Recorded holds calls that were let through with an issue.
	Recorded  []ForbiddenCall
	IssueList issues.List

	uninstallers []*intercept.Uninstaller
}

var _ Guard = new(CallGuard)

func (c *CallGuard) GuardName() string {
	return "calls"
}

func (c *CallGuard) table(env *Env, module string) (intercept.Table, error) {
	if module == "" {
		return env.Builtins, nil
	}
	v, err := env.ResolveModule(module)
	if err != nil {
		return nil, err
	}
	table, _ := intercept.TableOf(v)
	if table == nil {
		return nil, fmt.Errorf("module %s is not patchable", module)
	}
	return table, nil
}

func (c *CallGuard) Enter(env *Env) (err error) {
	defer func() {
		if err != nil {
			_ = intercept.RestoreAll(c.uninstallers)
			c.uninstallers = nil
		}
	}()
	for _, forbidden := range c.Forbidden {
		table, err := c.table(env, forbidden.Module)
		if err != nil {
			return err
		}
		original, ok := table.Slot(forbidden.Name)
		if !ok {
			// nothing to forbid
			continue
		}
		u, err := env.Registry.Install(table, forbidden.Name, intercept.Wrapper(
			forbidden.Name,
			original,
			intercept.ScopeUser,
			c.rule(forbidden),
		))
		if err != nil {
			return err
		}
		c.uninstallers = append(c.uninstallers, u)
	}
	return nil
}

func (c *CallGuard) rule(forbidden ForbiddenCall) intercept.Rule {
	return func(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if forbidden.Severity == SeverityRaise {
			return nil, &ForbiddenCallError{
				Module: forbidden.Module,
				Name:   forbidden.Name,
			}
		}
		if !slices.Contains(c.Recorded, forbidden) {
			c.Recorded = append(c.Recorded, forbidden)
			c.IssueList.AddIssue(issues.Issue{
				Category:     "Forbidden function call",
				Item:         forbidden.String(),
				IssueText:    fmt.Sprintf("Your code calls %s().", forbidden),
				Instructions: fmt.Sprintf("Please do not use %s() in your code.", forbidden),
				CodeProblem:  issues.CodeProblemNonBreakingRuntime,
			})
		}
		return starlark.Call(thread, original, args, kwargs)
	}
}

func (c *CallGuard) Exit(env *Env) error {
	err := intercept.RestoreAll(c.uninstallers)
	c.uninstallers = nil
	return err
}

func (c *CallGuard) Issues() []issues.Issue {
	return c.IssueList
}
