package stats

import (
	"fmt"
	"slices"

	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/intercept"
	"github.com/reusee/scisandbox/pvalues"
	"go.starlark.net/starlark"
)

// Model is an unfitted regression model over numeric design data.
type Model struct {
	ID     uint64
	Kind   string
	YName  string
	XNames []string

	y      []float64
	x      [][]float64
	labels []starlark.Value
	class  *intercept.Class
}

var (
	_ starlark.HasAttrs = new(Model)
)

type fitFunc = func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

func (l *Library) modelClass(name string, doc string, fit fitFunc) *intercept.Class {
	class := intercept.NewClass(name, doc)
	class.SetAlloc(func(thread *starlark.Thread) starlark.Value {
		return &Model{
			ID:    l.nextID.Add(1),
			Kind:  name,
			class: class,
		}
	})
	class.Define("__init__", starlark.NewBuiltin("__init__", l.modelInit))
	class.Define("fit", starlark.NewBuiltin("fit", fit))
	return class
}

func (m *Model) String() string {
	return fmt.Sprintf("<%s model %d>", m.Kind, m.ID)
}

func (m *Model) Type() string {
	return m.Kind
}

func (m *Model) Freeze() {}

func (m *Model) Truth() starlark.Bool {
	return true
}

func (m *Model) Hash() (uint32, error) {
	return uint32(m.ID), nil
}

func (m *Model) Attr(name string) (starlark.Value, error) {
	switch name {
	case "endog_names":
		return starlark.String(m.YName), nil
	case "exog_names":
		names := make([]starlark.Value, 0, len(m.XNames))
		for _, n := range m.XNames {
			names = append(names, starlark.String(n))
		}
		return starlark.NewList(names), nil
	case "nobs":
		return starlark.Float(len(m.y)), nil
	}
	if method, ok := m.class.Method(m, name); ok {
		return method, nil
	}
	return nil, nil
}

func (m *Model) AttrNames() []string {
	names := []string{"endog_names", "exog_names", "nobs"}
	for _, name := range m.class.SlotNames() {
		if name[0] != '_' {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func recvModel(fn *starlark.Builtin, args starlark.Tuple) (*Model, starlark.Tuple, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("%s: missing receiver", fn.Name())
	}
	m, ok := args[0].(*Model)
	if !ok {
		return nil, nil, fmt.Errorf("%s: got %s, want model", fn.Name(), args[0].Type())
	}
	return m, args[1:], nil
}

func (l *Library) modelInit(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	m, args, err := recvModel(fn, args)
	if err != nil {
		return nil, err
	}
	var endog, exog starlark.Value
	missing := "drop"
	if err := starlark.UnpackArgs(m.Kind, args, kwargs,
		"endog", &endog,
		"exog", &exog,
		"missing?", &missing,
	); err != nil {
		return nil, err
	}

	yName, y, labels, err := endogData(endog)
	if err != nil {
		return nil, fmt.Errorf("%s: endog: %w", m.Kind, err)
	}
	xNames, x, err := exogData(exog)
	if err != nil {
		return nil, fmt.Errorf("%s: exog: %w", m.Kind, err)
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%s: endog has %d rows but exog has %d", m.Kind, len(y), len(x))
	}

	// rows with a missing value are dropped
	m.YName = yName
	m.XNames = xNames
	m.y, m.x, m.labels = nil, nil, nil
	for i := range y {
		if isNaN(y[i]) || slices.ContainsFunc(x[i], isNaN) {
			if missing == "raise" {
				return nil, fmt.Errorf("%s: missing values in data", m.Kind)
			}
			continue
		}
		m.y = append(m.y, y[i])
		m.x = append(m.x, x[i])
		m.labels = append(m.labels, labels[i])
	}
	if len(m.y) == 0 {
		return nil, fmt.Errorf("%s: no rows left after dropping missing values", m.Kind)
	}
	return starlark.None, nil
}

func isNaN(f float64) bool {
	return f != f
}

func cellFloat(v starlark.Value) (float64, error) {
	if frames.IsNA(v) {
		return nan, nil
	}
	if b, ok := v.(starlark.Bool); ok {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	if _, ok := v.(pvalues.PValue); ok {
		return 0, fmt.Errorf("p-values cannot be used as model data")
	}
	f, ok := pvalues.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("non-numeric value %s", v.Type())
	}
	return f, nil
}

func endogData(v starlark.Value) (name string, y []float64, labels []starlark.Value, err error) {
	name = "y"
	var values []starlark.Value
	switch v := v.(type) {
	case *frames.Series:
		name = v.Name
		values = v.Values
		labels = v.Labels
	case *frames.Frame:
		cols := v.Columns()
		if len(cols) != 1 {
			return "", nil, nil, fmt.Errorf("want a single column, got %d", len(cols))
		}
		name = cols[0]
		values, _ = v.Column(name)
		labels = v.Index()
	default:
		var ok bool
		values, ok = frames.Values(v)
		if !ok {
			return "", nil, nil, fmt.Errorf("got %s, want a sequence", v.Type())
		}
	}
	if labels == nil {
		for i := range values {
			labels = append(labels, starlark.MakeInt(i))
		}
	}
	for _, value := range values {
		f, err := cellFloat(value)
		if err != nil {
			return "", nil, nil, err
		}
		y = append(y, f)
	}
	return name, y, labels, nil
}

func exogData(v starlark.Value) (names []string, x [][]float64, err error) {
	switch v := v.(type) {
	case *frames.Frame:
		names = v.Columns()
		x = make([][]float64, v.NumRows())
		for _, name := range names {
			column, _ := v.Column(name)
			for i, cell := range column {
				f, err := cellFloat(cell)
				if err != nil {
					return nil, nil, fmt.Errorf("column %q: %w", name, err)
				}
				x[i] = append(x[i], f)
			}
		}
		return names, x, nil
	case *frames.Series:
		names = []string{v.Name}
		for _, cell := range v.Values {
			f, err := cellFloat(cell)
			if err != nil {
				return nil, nil, err
			}
			x = append(x, []float64{f})
		}
		return names, x, nil
	}

	rows, ok := frames.Values(v)
	if !ok {
		return nil, nil, fmt.Errorf("got %s, want a DataFrame or a sequence", v.Type())
	}
	for i, row := range rows {
		cells, ok := frames.Values(row)
		if !ok {
			// a flat sequence is a single regressor
			cells = []starlark.Value{row}
		}
		if i == 0 {
			for j := range cells {
				names = append(names, fmt.Sprintf("x%d", j+1))
			}
		} else if len(cells) != len(names) {
			return nil, nil, fmt.Errorf("row %d has %d values, want %d", i, len(cells), len(names))
		}
		var xs []float64
		for _, cell := range cells {
			f, err := cellFloat(cell)
			if err != nil {
				return nil, nil, err
			}
			xs = append(xs, f)
		}
		x = append(x, xs)
	}
	return names, x, nil
}
