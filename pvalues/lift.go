package pvalues

import (
	"go.starlark.net/starlark"
)

// Liftable values can tag their own float contents, e.g. a single-column series.
type Liftable interface {
	LiftFloats(fn func(starlark.Float) starlark.Value) (starlark.Value, error)
}

// Lift returns v with every float inside nested lists, tuples, dicts and Liftable values turned into a PValue.
// Other leaves are left untouched. Shared and cyclic containers are lifted once.
func Lift(v starlark.Value, createdBy string, display *Display) (starlark.Value, error) {
	l := &lifter{
		createdBy: createdBy,
		display:   display,
		done:      make(map[starlark.Value]starlark.Value),
	}
	return l.lift(v)
}

type lifter struct {
	createdBy string
	display   *Display
	done      map[starlark.Value]starlark.Value
}

func (l *lifter) float(f starlark.Float) starlark.Value {
	return PValue{
		Value:     float64(f),
		CreatedBy: l.createdBy,
		display:   l.display,
	}
}

func (l *lifter) lift(v starlark.Value) (starlark.Value, error) {
	switch v := v.(type) {

	case starlark.Float:
		return l.float(v), nil

	case *starlark.List:
		if ret, ok := l.done[v]; ok {
			return ret, nil
		}
		ret := starlark.NewList(nil)
		l.done[v] = ret
		for i := range v.Len() {
			elem, err := l.lift(v.Index(i))
			if err != nil {
				return nil, err
			}
			if err := ret.Append(elem); err != nil {
				return nil, err
			}
		}
		return ret, nil

	case starlark.Tuple:
		ret := make(starlark.Tuple, len(v))
		for i, elem := range v {
			lifted, err := l.lift(elem)
			if err != nil {
				return nil, err
			}
			ret[i] = lifted
		}
		return ret, nil

	case *starlark.Dict:
		if ret, ok := l.done[v]; ok {
			return ret, nil
		}
		ret := starlark.NewDict(v.Len())
		l.done[v] = ret
		for _, item := range v.Items() {
			value, err := l.lift(item[1])
			if err != nil {
				return nil, err
			}
			if err := ret.SetKey(item[0], value); err != nil {
				return nil, err
			}
		}
		return ret, nil

	case Liftable:
		return v.LiftFloats(l.float)

	}
	return v, nil
}
