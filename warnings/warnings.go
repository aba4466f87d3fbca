// Package warnings lets library code emit runtime warnings that a run may ignore, escalate or report.
package warnings

import (
	"fmt"

	"go.starlark.net/starlark"
)

const (
	CategoryRuntime       = "RuntimeWarning"
	CategoryConstantInput = "ConstantInputWarning"
	CategoryConvergence   = "ConvergenceWarning"
	CategoryUser          = "UserWarning"
)

type Warning struct {
	Category string
	Message  string
	// Source is the library function that emitted the warning.
	Source string
}

func (w Warning) String() string {
	if w.Source != "" {
		return fmt.Sprintf("%s: %s (in %s)", w.Category, w.Message, w.Source)
	}
	return fmt.Sprintf("%s: %s", w.Category, w.Message)
}

// Handler decides what a warning does. A non-nil error aborts the emitting call.
type Handler interface {
	HandleWarning(thread *starlark.Thread, warning Warning) error
}

const handlerKey = "warnings.handler"

func Bind(thread *starlark.Thread, handler Handler) {
	thread.SetLocal(handlerKey, handler)
}

func HandlerFromThread(thread *starlark.Thread) Handler {
	if thread == nil {
		return nil
	}
	h, _ := thread.Local(handlerKey).(Handler)
	return h
}

// Warn emits a warning. Without a handler the warning is dropped.
func Warn(thread *starlark.Thread, category string, format string, args ...any) error {
	h := HandlerFromThread(thread)
	if h == nil {
		return nil
	}
	w := Warning{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
	if thread.CallStackDepth() > 0 {
		w.Source = thread.CallFrame(0).Name
	}
	return h.HandleWarning(thread, w)
}

// Builtin is the warn(message, category="UserWarning") function of submitted code.
func Builtin() *starlark.Builtin {
	return starlark.NewBuiltin("warn", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var message string
		category := CategoryUser
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
			"message", &message,
			"category?", &category,
		); err != nil {
			return nil, err
		}
		if err := Warn(thread, category, "%s", message); err != nil {
			return nil, err
		}
		return starlark.None, nil
	})
}
