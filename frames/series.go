package frames

import (
	"fmt"
	"slices"

	"github.com/reusee/scisandbox/pvalues"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

type Series struct {
	Name   string
	Values []starlark.Value
	Labels []starlark.Value

	lib *Library
}

var (
	_ starlark.Value               = new(Series)
	_ starlark.HasAttrs            = new(Series)
	_ starlark.HasBinary           = new(Series)
	_ starlark.HasUnary            = new(Series)
	_ starlark.Mapping             = new(Series)
	_ starlark.Sequence            = new(Series)
	_ pvalues.ElementwiseComparer  = new(Series)
	_ pvalues.Liftable             = new(Series)
	_ pvalues.Walker               = new(Series)
)

func (l *Library) NewSeries(name string, values []starlark.Value, labels []starlark.Value) *Series {
	if labels == nil {
		labels = rangeIndex(len(values))
	}
	return &Series{
		Name:   name,
		Values: values,
		Labels: labels,
		lib:    l,
	}
}

func (s *Series) mapValues(fn func(starlark.Value) starlark.Value) *Series {
	values := make([]starlark.Value, len(s.Values))
	for i, v := range s.Values {
		values[i] = fn(v)
	}
	return s.lib.NewSeries(s.Name, values, slices.Clone(s.Labels))
}

func (s *Series) String() string {
	rows := make([][]string, 0, len(s.Values))
	for i, v := range s.Values {
		rows = append(rows, []string{FormatCell(s.Labels[i], 0), FormatCell(v, 0)})
	}
	return renderTable([]string{"", s.Name}, rows)
}

func (s *Series) Type() string {
	return "Series"
}

func (s *Series) Freeze() {}

func (s *Series) Truth() starlark.Bool {
	return len(s.Values) > 0
}

func (s *Series) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable: Series")
}

var seriesAttrs = []string{"index", "name", "shape", "size", "values"}

func (s *Series) Attr(name string) (starlark.Value, error) {
	switch name {
	case "index":
		return toList(s.Labels), nil
	case "name":
		return starlark.String(s.Name), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(len(s.Values))}, nil
	case "size":
		return starlark.MakeInt(len(s.Values)), nil
	case "values":
		return toList(s.Values), nil
	}
	if m, ok := s.lib.SeriesClass.Method(s, name); ok {
		return m, nil
	}
	return nil, nil
}

func (s *Series) AttrNames() []string {
	names := slices.Clone(seriesAttrs)
	for _, name := range s.lib.SeriesClass.SlotNames() {
		if name[0] != '_' {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Get looks up by index label, then by position. A boolean series selects matching rows.
func (s *Series) Get(key starlark.Value) (starlark.Value, bool, error) {
	if mask, ok := key.(*Series); ok {
		rows, err := maskRows(mask, len(s.Values))
		if err != nil {
			return nil, true, err
		}
		values := make([]starlark.Value, 0, len(rows))
		labels := make([]starlark.Value, 0, len(rows))
		for _, i := range rows {
			values = append(values, s.Values[i])
			labels = append(labels, s.Labels[i])
		}
		return s.lib.NewSeries(s.Name, values, labels), true, nil
	}
	for i, label := range s.Labels {
		if eq, err := starlark.Equal(label, key); err == nil && eq {
			return s.Values[i], true, nil
		}
	}
	if i, err := starlark.AsInt32(key); err == nil {
		if i < 0 {
			i += len(s.Values)
		}
		if i >= 0 && i < len(s.Values) {
			return s.Values[i], true, nil
		}
	}
	return nil, true, &KeyError{Key: keyString(key)}
}

func (s *Series) Iterate() starlark.Iterator {
	return toList(s.Values).Iterate()
}

func (s *Series) Len() int {
	return len(s.Values)
}

func (s *Series) WalkValues(fn func(starlark.Value) bool) {
	for _, v := range s.Values {
		if !fn(v) {
			return
		}
	}
}

func (s *Series) LiftFloats(fn func(starlark.Float) starlark.Value) (starlark.Value, error) {
	return s.mapValues(func(v starlark.Value) starlark.Value {
		if f, ok := v.(starlark.Float); ok {
			return fn(f)
		}
		return v
	}), nil
}

func (s *Series) operand(y starlark.Value) (func(i int) starlark.Value, bool) {
	switch y := y.(type) {
	case *Series:
		if len(y.Values) != len(s.Values) {
			return nil, false
		}
		return func(i int) starlark.Value {
			return y.Values[i]
		}, true
	case starlark.Int, starlark.Float, starlark.Bool, starlark.String, pvalues.PValue, starlark.NoneType:
		return func(int) starlark.Value {
			return y
		}, true
	}
	return nil, false
}

func naToFloat(v starlark.Value) starlark.Value {
	if v == starlark.None {
		return NaN
	}
	return v
}

func (s *Series) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	other, ok := s.operand(y)
	if !ok {
		if o, isSeries := y.(*Series); isSeries {
			return nil, fmt.Errorf("series lengths differ: %d and %d", len(s.Values), len(o.Values))
		}
		return nil, nil
	}
	values := make([]starlark.Value, len(s.Values))
	for i, v := range s.Values {
		a, b := naToFloat(v), naToFloat(other(i))
		if side == starlark.Right {
			a, b = b, a
		}
		r, err := elementBinary(op, a, b)
		if err != nil {
			return nil, fmt.Errorf("%s at row %d: %w", s.Name, i, err)
		}
		values[i] = r
	}
	return s.lib.NewSeries(s.Name, values, slices.Clone(s.Labels)), nil
}

func (s *Series) Unary(op syntax.Token) (starlark.Value, error) {
	values := make([]starlark.Value, len(s.Values))
	for i, v := range s.Values {
		if b, ok := v.(starlark.Bool); ok && op == syntax.TILDE {
			values[i] = !b
			continue
		}
		r, err := starlark.Unary(op, naToFloat(v))
		if err != nil {
			return nil, err
		}
		values[i] = r
	}
	return s.lib.NewSeries(s.Name, values, slices.Clone(s.Labels)), nil
}

func (s *Series) CompareElementwise(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	other, ok := s.operand(y)
	if !ok {
		return nil, nil
	}
	values := make([]starlark.Value, len(s.Values))
	for i, v := range s.Values {
		a, b := v, other(i)
		if side == starlark.Right {
			a, b = b, a
		}
		if IsNA(a) || IsNA(b) {
			values[i] = starlark.Bool(op == syntax.NEQ)
			continue
		}
		r, err := pvalues.Compare(op, a, b)
		if err != nil {
			return nil, err
		}
		values[i] = r
	}
	return s.lib.NewSeries(s.Name, values, slices.Clone(s.Labels)), nil
}

func maskRows(mask *Series, n int) ([]int, error) {
	if len(mask.Values) != n {
		return nil, fmt.Errorf("boolean mask has %d rows, want %d", len(mask.Values), n)
	}
	var rows []int
	for i, v := range mask.Values {
		b, ok := v.(starlark.Bool)
		if !ok {
			return nil, fmt.Errorf("mask value at row %d is %s, want bool", i, v.Type())
		}
		if b {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

// elementBinary is starlark.Binary with & and | also combining bools, as used with masks.
func elementBinary(op syntax.Token, a, b starlark.Value) (starlark.Value, error) {
	if x, ok := a.(starlark.Bool); ok {
		if y, ok := b.(starlark.Bool); ok {
			switch op {
			case syntax.AMP:
				return x && y, nil
			case syntax.PIPE:
				return x || y, nil
			}
		}
	}
	return starlark.Binary(op, a, b)
}
