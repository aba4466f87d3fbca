package overrides

import (
	"fmt"
	"strings"

	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/guards"
	"github.com/reusee/scisandbox/intercept"
	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/pvalues"
	"github.com/reusee/scisandbox/stats"
	"go.starlark.net/starlark"
)

type UnpackPrevention uint8

const (
	UnpackNever UnpackPrevention = iota + 1
	UnpackAlways
	// UnpackWarn allows unpacking and reports a non-breaking issue.
	UnpackWarn
)

func ParseUnpackPrevention(s string) (UnpackPrevention, error) {
	switch s {
	case "never":
		return UnpackNever, nil
	case "always":
		return UnpackAlways, nil
	case "warn":
		return UnpackWarn, nil
	}
	return 0, fmt.Errorf("unknown unpack prevention: %s", s)
}

// discovery is shared by runs; libraries of every run have the same layout.
var discovery = intercept.NewDiscovery(16)

func isFitMethod(table string, name string, value starlark.Value) bool {
	_, ok := value.(starlark.Callable)
	return ok && strings.HasPrefix(name, "fit")
}

func mentionsPValue(table string, name string, value starlark.Value) bool {
	documented, ok := value.(intercept.Documented)
	return ok && strings.Contains(strings.ToLower(documented.Doc()), "p-value")
}

// FitTargets returns the fit methods of the statistics library.
func FitTargets(lib *stats.Library) []intercept.Target {
	var ret []intercept.Target
	for _, target := range discovery.Discover(lib.Models, "fit", isFitMethod) {
		if target.Kind == intercept.KindMethod {
			ret = append(ret, target)
		}
	}
	return ret
}

// PValueFuncTargets returns the functions documented as returning a p-value.
func PValueFuncTargets(lib *stats.Library) []intercept.Target {
	var ret []intercept.Target
	for _, target := range discovery.Discover(lib.Scipy, "p-value", mentionsPValue) {
		if target.Kind == intercept.KindFunction {
			ret = append(ret, target)
		}
	}
	return ret
}

// IsPValueName reports whether a result attribute or summary column holds significance values.
func IsPValueName(name string) bool {
	return name == "pvalues" || name == "pvalue" || name == "f_pvalue" || strings.HasPrefix(name, "P>")
}

// StatsOverride tags significance values returned by the statistics library and rejects re-fitting a model.
type StatsOverride struct {
	UnpackPrevention UnpackPrevention
	// Refits holds the classes of models fitted more than once.
	Refits    []string
	IssueList issues.List

	fitted       map[*stats.Model]bool
	display      *pvalues.Display
	uninstallers []*intercept.Uninstaller
}

var _ guards.Guard = new(StatsOverride)

var _ issues.Collector = new(StatsOverride)

func (s *StatsOverride) GuardName() string {
	return "stats-override"
}

func (s *StatsOverride) AddIssue(issue issues.Issue) {
	s.IssueList.AddIssue(issue)
}

func (s *StatsOverride) Enter(env *guards.Env) error {
	s.fitted = make(map[*stats.Model]bool)
	s.display = env.Display
	lib := env.Stats

	fits, err := intercept.InstallAcrossSubmodules(
		lib.Models,
		FitTargets(lib),
		func(target intercept.Target, original starlark.Value) starlark.Value {
			class := target.Path[len(target.Path)-1]
			return intercept.Wrapper(target.Name, original, intercept.ScopeUser, s.fit(class))
		},
	)
	if err != nil {
		return err
	}
	env.Registry.Add(fits...)
	s.uninstallers = append(s.uninstallers, fits...)

	funcs, err := intercept.InstallAcrossSubmodules(
		lib.Scipy,
		PValueFuncTargets(lib),
		func(target intercept.Target, original starlark.Value) starlark.Value {
			return intercept.Wrapper(target.Name, original, intercept.ScopeUser, s.test(target.Name))
		},
	)
	if err != nil {
		_ = intercept.RestoreAll(s.uninstallers)
		s.uninstallers = nil
		return err
	}
	env.Registry.Add(funcs...)
	s.uninstallers = append(s.uninstallers, funcs...)

	return nil
}

type RefitError struct {
	Class string
}

func (r *RefitError) Error() string {
	return fmt.Sprintf("the %s model was already fitted; create a new model instance for each fit", r.Class)
}

func (s *StatsOverride) wrap(v float64, createdBy string, variableName string) starlark.Value {
	p, _ := pvalues.Wrap(v, createdBy, variableName, pvalues.WrapOptions{
		RaiseOnNaN: true,
		RaiseOnOne: true,
		Display:    s.display,
	}, s)
	return p
}

// taint replaces floats of v with p-values.
func (s *StatsOverride) taint(v starlark.Value, createdBy string, name string) (starlark.Value, error) {
	switch v := v.(type) {
	case starlark.Float:
		return s.wrap(float64(v), createdBy, name), nil
	case *frames.Series:
		i := 0
		return v.LiftFloats(func(f starlark.Float) starlark.Value {
			variable := name
			if i < len(v.Labels) {
				variable = fmt.Sprintf("%s[%s]", name, frames.FormatCell(v.Labels[i], 0))
			}
			i++
			return s.wrap(float64(f), createdBy, variable)
		})
	}
	return pvalues.Lift(v, createdBy, s.display)
}

func (s *StatsOverride) fit(class string) intercept.Rule {
	return func(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var model *stats.Model
		if len(args) > 0 {
			model, _ = args[0].(*stats.Model)
		}
		if model != nil && s.fitted[model] {
			s.Refits = append(s.Refits, class)
			return nil, &RefitError{
				Class: class,
			}
		}
		ret, err := starlark.Call(thread, original, args, kwargs)
		if err != nil {
			return nil, err
		}
		if model != nil {
			s.fitted[model] = true
		}
		results, ok := ret.(*stats.Results)
		if !ok {
			return ret, nil
		}
		for _, name := range results.AttrNames() {
			if !IsPValueName(name) {
				continue
			}
			v, err := results.Attr(name)
			if err != nil || v == nil {
				continue
			}
			if _, ok := v.(*intercept.BoundMethod); ok {
				continue
			}
			tainted, err := s.taint(v, class, name)
			if err != nil {
				return nil, err
			}
			if err := results.SetField(name, tainted); err != nil {
				return nil, err
			}
		}
		if summary, err := results.Attr("summary"); err == nil && summary != nil {
			if err := results.SetField("summary", s.summary(class, summary)); err != nil {
				return nil, err
			}
		}
		return results, nil
	}
}

func (s *StatsOverride) summary(class string, original starlark.Value) starlark.Value {
	return starlark.NewBuiltin("summary", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		// the library's own table building must not be tainted twice
		var ret starlark.Value
		var err error
		intercept.RegistryFromThread(thread).Suspend(func() {
			ret, err = starlark.Call(thread, original, args, kwargs)
		})
		if err != nil {
			return nil, err
		}
		f, ok := ret.(*frames.Frame)
		if !ok {
			return ret, nil
		}
		index := f.Index()
		for _, column := range f.Columns() {
			if !IsPValueName(column) {
				continue
			}
			values, _ := f.Column(column)
			tainted := make([]starlark.Value, 0, len(values))
			for i, v := range values {
				x, ok := v.(starlark.Float)
				if !ok {
					tainted = append(tainted, v)
					continue
				}
				variable := column
				if i < len(index) {
					variable = fmt.Sprintf("%s[%s]", column, frames.FormatCell(index[i], 0))
				}
				tainted = append(tainted, s.wrap(float64(x), class, variable))
			}
			if err := f.SetColumnDirect(column, tainted); err != nil {
				return nil, err
			}
		}
		return f, nil
	})
}

type UnpackError struct {
	Func   string
	Fields []string
}

func (u *UnpackError) Error() string {
	var access []string
	for _, field := range u.Fields {
		access = append(access, "result."+field)
	}
	return fmt.Sprintf("positional unpacking of the result of %s() is not allowed; access its fields by name: %s",
		u.Func, strings.Join(access, ", "))
}

func (s *StatsOverride) test(name string) intercept.Rule {
	return func(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		ret, err := starlark.Call(thread, original, args, kwargs)
		if err != nil {
			return nil, err
		}
		result, ok := ret.(*stats.TestResult)
		if !ok {
			return pvalues.Lift(ret, name, s.display)
		}
		p, err := result.Attr("pvalue")
		if err != nil {
			return nil, err
		}
		if p != nil {
			tainted, err := s.taint(p, name, "pvalue")
			if err != nil {
				return nil, err
			}
			result = result.With("pvalue", tainted)
		}
		unpackErr := &UnpackError{
			Func:   name,
			Fields: result.Fields,
		}
		switch s.UnpackPrevention {
		case UnpackAlways:
			result.OnUnpack = func() error {
				intercept.Abort(thread, unpackErr)
				return unpackErr
			}
		case UnpackWarn:
			warned := false
			result.OnUnpack = func() error {
				if !warned {
					warned = true
					s.AddIssue(issues.Issue{
						Category:     "Unpacking of test results",
						Item:         name,
						IssueText:    unpackErr.Error(),
						Instructions: "Access the fields of statistical test results by name.",
						CodeProblem:  issues.CodeProblemNonBreakingRuntime,
					})
				}
				return nil
			}
		}
		return result, nil
	}
}

func (s *StatsOverride) Exit(env *guards.Env) error {
	err := intercept.RestoreAll(s.uninstallers)
	s.uninstallers = nil
	s.fitted = nil
	return err
}

func (s *StatsOverride) Issues() []issues.Issue {
	return s.IssueList
}
