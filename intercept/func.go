package intercept

import (
	"fmt"

	"go.starlark.net/starlark"
)

// Documented values carry a docstring, used to discover functions by what they return.
type Documented interface {
	Doc() string
}

type GoFunc = func(thread *starlark.Thread, fn *Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// Func is a documented library function.
type Func struct {
	name string
	doc  string
	fn   GoFunc
}

var (
	_ starlark.Callable = new(Func)
	_ Documented        = new(Func)
)

func NewFunc(name string, doc string, fn GoFunc) *Func {
	return &Func{
		name: name,
		doc:  doc,
		fn:   fn,
	}
}

func (f *Func) Doc() string {
	return f.doc
}

func (f *Func) String() string {
	return fmt.Sprintf("<function %s>", f.name)
}

func (f *Func) Type() string {
	return "function"
}

func (f *Func) Freeze() {}

func (f *Func) Truth() starlark.Bool {
	return true
}

func (f *Func) Hash() (uint32, error) {
	return starlark.String(f.name).Hash()
}

func (f *Func) Name() string {
	return f.name
}

func (f *Func) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return f.fn(thread, f, args, kwargs)
}
