package intercept

import "go.starlark.net/starlark"

// Rule is applied by a wrapper instead of calling the original directly.
type Rule func(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

type WrapperScope uint8

const (
	// ScopeUser applies the rule only to calls made directly from submitted code.
	ScopeUser WrapperScope = iota
	// ScopeAll applies the rule to every call while the registry is active.
	ScopeAll
)

// Wrapper returns a replacement for original that applies rule when the run's registry is active.
// Otherwise it passes through.
func Wrapper(name string, original starlark.Value, scope WrapperScope, rule Rule) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if Applies(thread, scope) {
			return rule(thread, original, args, kwargs)
		}
		return starlark.Call(thread, original, args, kwargs)
	})
}

func Applies(thread *starlark.Thread, scope WrapperScope) bool {
	if !RegistryFromThread(thread).Active() {
		return false
	}
	if scope == ScopeAll {
		return true
	}
	return CalledFromUser(thread)
}
