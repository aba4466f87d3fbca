package frames

import (
	"math"
	"strconv"
	"strings"

	"github.com/reusee/scisandbox/pvalues"
	"go.starlark.net/starlark"
)

var NaN = starlark.Float(math.NaN())

func IsNA(v starlark.Value) bool {
	switch v := v.(type) {
	case nil, starlark.NoneType:
		return true
	case starlark.Float:
		return math.IsNaN(float64(v))
	case pvalues.PValue:
		return math.IsNaN(v.Value)
	}
	return false
}

// ParseCell converts a text field to a typed cell value.
func ParseCell(s string) starlark.Value {
	trimmed := strings.TrimSpace(s)
	switch strings.ToLower(trimmed) {
	case "", "nan", "na", "n/a", "null", "none":
		return NaN
	case "true":
		return starlark.True
	case "false":
		return starlark.False
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return starlark.MakeInt64(i)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return starlark.Float(f)
	}
	return starlark.String(s)
}

// Numeric returns the non-missing numeric values.
// ok is false if any non-missing value is not a number.
func Numeric(values []starlark.Value) (ret []float64, ok bool) {
	for _, v := range values {
		if IsNA(v) {
			continue
		}
		switch v.(type) {
		case starlark.Bool:
			return nil, false
		}
		f, isNum := pvalues.AsFloat(v)
		if !isNum {
			return nil, false
		}
		ret = append(ret, f)
	}
	return ret, true
}

func toList(values []starlark.Value) *starlark.List {
	return starlark.NewList(append([]starlark.Value(nil), values...))
}

func fromIterable(v starlark.Value) ([]starlark.Value, bool) {
	switch v := v.(type) {
	case *Series:
		return append([]starlark.Value(nil), v.Values...), true
	case starlark.String:
		return nil, false
	case starlark.Iterable:
		iter := v.Iterate()
		defer iter.Done()
		var ret []starlark.Value
		var elem starlark.Value
		for iter.Next(&elem) {
			ret = append(ret, elem)
		}
		return ret, true
	}
	return nil, false
}

func keyString(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

func stringList(v starlark.Value) ([]string, bool) {
	if s, ok := starlark.AsString(v); ok {
		return []string{s}, true
	}
	values, ok := fromIterable(v)
	if !ok {
		return nil, false
	}
	ret := make([]string, 0, len(values))
	for _, value := range values {
		ret = append(ret, keyString(value))
	}
	return ret, true
}

func rangeIndex(n int) []starlark.Value {
	ret := make([]starlark.Value, n)
	for i := range n {
		ret[i] = starlark.MakeInt(i)
	}
	return ret
}

// Values returns the elements of a sequence, series or other iterable. Strings are not sequences here.
func Values(v starlark.Value) ([]starlark.Value, bool) {
	return fromIterable(v)
}
