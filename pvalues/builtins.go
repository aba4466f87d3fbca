package pvalues

import (
	"fmt"
	"slices"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ElementwiseComparer values compare against scalars element by element, e.g. series.
type ElementwiseComparer interface {
	CompareElementwise(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error)
}

// CompareFuncName is the predeclared function comparisons are rewritten into.
const CompareFuncName = "__compare__"

var compareTokens = map[string]syntax.Token{
	"==": syntax.EQL,
	"!=": syntax.NEQ,
	"<":  syntax.LT,
	"<=": syntax.LE,
	">":  syntax.GT,
	">=": syntax.GE,
}

// Compare is a comparison that lets p-values take part as plain floats and series compare elementwise.
func Compare(op syntax.Token, x, y starlark.Value) (starlark.Value, error) {
	if c, ok := x.(ElementwiseComparer); ok {
		if ret, err := c.CompareElementwise(op, y, starlark.Left); ret != nil || err != nil {
			return ret, err
		}
	}
	if c, ok := y.(ElementwiseComparer); ok {
		if ret, err := c.CompareElementwise(op, x, starlark.Right); ret != nil || err != nil {
			return ret, err
		}
	}

	px, xTainted := x.(PValue)
	py, yTainted := y.(PValue)
	if xTainted || yTainted {
		xf, xok := AsFloat(x)
		yf, yok := AsFloat(y)
		if xok && yok {
			p := px
			if !xTainted {
				p = py
			}
			b, err := PValue{Value: xf, CreatedBy: p.CreatedBy}.Compare(OpFromToken(op), yf)
			return starlark.Bool(b), err
		}
		switch op {
		case syntax.EQL:
			return starlark.False, nil
		case syntax.NEQ:
			return starlark.True, nil
		}
		return nil, fmt.Errorf("unsupported comparison %s %s %s", x.Type(), op, y.Type())
	}

	b, err := starlark.Compare(op, x, y)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(b), nil
}

// Builtins returns the predeclared names a sandboxed program needs to handle p-values.
// str and repr shadow the universe versions, and so do max, min and sorted, which order through Compare.
func Builtins() starlark.StringDict {
	return starlark.StringDict{
		CompareFuncName: starlark.NewBuiltin(CompareFuncName, compareBuiltin),
		"max":           starlark.NewBuiltin("max", extremum(syntax.GT)),
		"min":           starlark.NewBuiltin("min", extremum(syntax.LT)),
		"sorted":        starlark.NewBuiltin("sorted", sortedBuiltin),
		"str":           starlark.NewBuiltin("str", stringify("str", OpStr)),
		"repr":          starlark.NewBuiltin("repr", stringify("repr", OpRepr)),
		"PValue":        starlark.NewBuiltin("PValue", newBuiltin),
		"is_pvalue":     starlark.NewBuiltin("is_pvalue", isPValueBuiltin),
	}
}

func compareBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var opStr string
	var x, y starlark.Value
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 3, &opStr, &x, &y); err != nil {
		return nil, err
	}
	op, ok := compareTokens[opStr]
	if !ok {
		return nil, fmt.Errorf("%s: bad operator %q", fn.Name(), opStr)
	}
	return Compare(op, x, y)
}

// ordered reports x op y for an ordering op, where the comparison must give a plain bool.
func ordered(op syntax.Token, x, y starlark.Value) (bool, error) {
	ret, err := Compare(op, x, y)
	if err != nil {
		return false, err
	}
	b, ok := ret.(starlark.Bool)
	if !ok {
		return false, fmt.Errorf("cannot order %s and %s", x.Type(), y.Type())
	}
	return bool(b), nil
}

func keyOf(thread *starlark.Thread, key starlark.Callable, x starlark.Value) (starlark.Value, error) {
	if key == nil {
		return x, nil
	}
	return starlark.Call(thread, key, starlark.Tuple{x}, nil)
}

// extremum keeps the first element for which no later one compares op to it.
func extremum(op syntax.Token) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var key starlark.Callable
		if err := starlark.UnpackArgs(fn.Name(), nil, kwargs, "key?", &key); err != nil {
			return nil, err
		}
		var iterable starlark.Iterable = args
		switch len(args) {
		case 0:
			return nil, fmt.Errorf("%s: got no arguments, want at least 1", fn.Name())
		case 1:
			it, ok := args[0].(starlark.Iterable)
			if !ok {
				return nil, fmt.Errorf("%s: %s value is not iterable", fn.Name(), args[0].Type())
			}
			iterable = it
		}

		iter := iterable.Iterate()
		defer iter.Done()
		var best, bestKey, x starlark.Value
		for iter.Next(&x) {
			k, err := keyOf(thread, key, x)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", fn.Name(), err)
			}
			if best == nil {
				best, bestKey = x, k
				continue
			}
			better, err := ordered(op, k, bestKey)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", fn.Name(), err)
			}
			if better {
				best, bestKey = x, k
			}
		}
		if best == nil {
			return nil, fmt.Errorf("%s: empty sequence", fn.Name())
		}
		return best, nil
	}
}

func sortedBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	var key starlark.Callable
	var reverse bool
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"iterable", &iterable,
		"key?", &key,
		"reverse?", &reverse,
	); err != nil {
		return nil, err
	}

	type item struct {
		value, key starlark.Value
	}
	var items []item
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		k, err := keyOf(thread, key, x)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fn.Name(), err)
		}
		items = append(items, item{value: x, key: k})
	}

	var sortErr error
	slices.SortStableFunc(items, func(a, b item) int {
		if sortErr != nil {
			return 0
		}
		x, y := a.key, b.key
		if reverse {
			x, y = y, x
		}
		less, err := ordered(syntax.LT, x, y)
		if err != nil {
			sortErr = err
			return 0
		}
		if less {
			return -1
		}
		greater, err := ordered(syntax.LT, y, x)
		if err != nil {
			sortErr = err
			return 0
		}
		if greater {
			return 1
		}
		return 0
	})
	if sortErr != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name(), sortErr)
	}

	values := make([]starlark.Value, 0, len(items))
	for _, it := range items {
		values = append(values, it.value)
	}
	return starlark.NewList(values), nil
}

func stringify(name string, op Op) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	original := starlark.Universe[name]
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) == 1 && ContainsTainted(args[0]) {
			display := FromThread(thread)
			if display == nil || display.Mode() == ModeRaise {
				createdBy := ""
				if p, ok := args[0].(PValue); ok {
					createdBy = p.CreatedBy
				}
				return nil, &OperationNotPermittedError{
					Op:        op,
					CreatedBy: createdBy,
				}
			}
		}
		return starlark.Call(thread, original, args, kwargs)
	}
}

func newBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	createdBy := "PValue"
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "value", &value, "created_by?", &createdBy); err != nil {
		return nil, err
	}
	f, ok := AsFloat(value)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want number", fn.Name(), value.Type())
	}
	return PValue{
		Value:     f,
		CreatedBy: createdBy,
		display:   FromThread(thread),
	}, nil
}

func isPValueBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &value); err != nil {
		return nil, err
	}
	return starlark.Bool(IsTainted(value)), nil
}
