package stats

import (
	"fmt"
	"slices"
	"strings"

	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/intercept"
	"go.starlark.net/starlark"
)

func (l *Library) addConstant(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data starlark.Value
	prepend := true
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"data", &data,
		"prepend?", &prepend,
	); err != nil {
		return nil, err
	}

	if f, ok := data.(*frames.Frame); ok {
		if f.HasColumn("const") {
			return f, nil
		}
		columns := f.Columns()
		values := make(map[string][]starlark.Value, len(columns)+1)
		for _, c := range columns {
			column, _ := f.Column(c)
			values[c] = slices.Clone(column)
		}
		values["const"] = slices.Repeat([]starlark.Value{starlark.Float(1)}, f.NumRows())
		if prepend {
			columns = append([]string{"const"}, columns...)
		} else {
			columns = append(columns, "const")
		}
		return l.frames.NewFrame(thread, columns, values, f.Index())
	}

	if s, ok := data.(*frames.Series); ok {
		columns := []string{"const", s.Name}
		if !prepend {
			columns = []string{s.Name, "const"}
		}
		return l.frames.NewFrame(thread, columns, map[string][]starlark.Value{
			"const": slices.Repeat([]starlark.Value{starlark.Float(1)}, len(s.Values)),
			s.Name:  slices.Clone(s.Values),
		}, slices.Clone(s.Labels))
	}

	rows, ok := frames.Values(data)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want a sequence", fn.Name(), data.Type())
	}
	ret := make([]starlark.Value, 0, len(rows))
	for _, row := range rows {
		cells, ok := frames.Values(row)
		if !ok {
			cells = []starlark.Value{row}
		}
		if prepend {
			cells = append([]starlark.Value{starlark.Float(1)}, cells...)
		} else {
			cells = append(cells, starlark.Float(1))
		}
		ret = append(ret, starlark.NewList(cells))
	}
	return starlark.NewList(ret), nil
}

// Formula is a parsed "y ~ a + b" model specification.
type Formula struct {
	Response  string
	Terms     []string
	Intercept bool
}

func ParseFormula(s string) (*Formula, error) {
	lhs, rhs, ok := strings.Cut(s, "~")
	if !ok {
		return nil, fmt.Errorf("formula %q has no '~'", s)
	}
	f := &Formula{
		Response:  strings.TrimSpace(lhs),
		Intercept: true,
	}
	if f.Response == "" {
		return nil, fmt.Errorf("formula %q has no response", s)
	}
	// normalize "- 1" into a removal term
	rhs = strings.ReplaceAll(rhs, "-", "+-")
	for _, term := range strings.Split(rhs, "+") {
		term = strings.TrimSpace(term)
		switch term {
		case "":
			continue
		case "1":
			f.Intercept = true
		case "0", "-1", "- 1":
			f.Intercept = false
		default:
			if strings.HasPrefix(term, "-") {
				name := strings.TrimSpace(term[1:])
				if name == "1" {
					f.Intercept = false
					continue
				}
				f.Terms = slices.DeleteFunc(f.Terms, func(t string) bool {
					return t == name
				})
				continue
			}
			if !slices.Contains(f.Terms, term) {
				f.Terms = append(f.Terms, term)
			}
		}
	}
	return f, nil
}

func (l *Library) formulaModel(class *intercept.Class) intercept.GoFunc {
	return func(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var spec string
		var data *frames.Frame
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
			"formula", &spec,
			"data", &data,
		); err != nil {
			return nil, err
		}
		formula, err := ParseFormula(spec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fn.Name(), err)
		}

		y, ok := data.Column(formula.Response)
		if !ok {
			return nil, fmt.Errorf("%s: %w", fn.Name(), &frames.KeyError{Key: formula.Response})
		}
		endog := l.frames.NewSeries(formula.Response, slices.Clone(y), data.Index())

		var columns []string
		values := make(map[string][]starlark.Value)
		if formula.Intercept {
			columns = append(columns, "Intercept")
			values["Intercept"] = slices.Repeat([]starlark.Value{starlark.Float(1)}, data.NumRows())
		}
		for _, term := range formula.Terms {
			column, ok := data.Column(term)
			if !ok {
				return nil, fmt.Errorf("%s: %w", fn.Name(), &frames.KeyError{Key: term})
			}
			columns = append(columns, term)
			values[term] = slices.Clone(column)
		}
		exog, err := l.frames.NewFrame(thread, columns, values, data.Index())
		if err != nil {
			return nil, err
		}

		return starlark.Call(thread, class, starlark.Tuple{endog, exog}, nil)
	}
}
