package pvalues

import (
	"reflect"

	"go.starlark.net/starlark"
)

// Walker values expose their elements to ContainsTainted, e.g. series and frames.
type Walker interface {
	WalkValues(fn func(starlark.Value) bool)
}

func IsTainted(v starlark.Value) bool {
	_, ok := v.(PValue)
	return ok
}

// ContainsTainted reports whether v is or contains a PValue. Each container is visited once.
func ContainsTainted(v starlark.Value) bool {
	visited := make(map[any]bool)
	var found bool
	var walk func(starlark.Value) bool
	walk = func(v starlark.Value) bool {
		if found {
			return false
		}
		if IsTainted(v) {
			found = true
			return false
		}
		if v == nil {
			return true
		}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
			if visited[v] {
				return true
			}
			visited[v] = true
		}
		switch v := v.(type) {
		case *starlark.List:
			for i := range v.Len() {
				if !walk(v.Index(i)) {
					return false
				}
			}
		case starlark.Tuple:
			for _, elem := range v {
				if !walk(elem) {
					return false
				}
			}
		case *starlark.Dict:
			for _, item := range v.Items() {
				if !walk(item[0]) || !walk(item[1]) {
					return false
				}
			}
		case *starlark.Set:
			iter := v.Iterate()
			defer iter.Done()
			var elem starlark.Value
			for iter.Next(&elem) {
				if !walk(elem) {
					return false
				}
			}
		case Walker:
			v.WalkValues(walk)
		}
		return !found
	}
	walk(v)
	return found
}
