// Package configs reads settings from layered CUE files validated against a closed schema.
package configs

import (
	"errors"
)

// First returns the value at path from the most specific source that sets it, or the zero value.
// Malformed values panic, since configs are read while building the scope.
func First[T any](loader Loader, path string) T {
	var value T
	if err := loader.AssignFirst(path, &value); err != nil {
		if errors.Is(err, ErrValueNotFound) {
			return value
		}
		panic(err)
	}
	return value
}
