package intercept

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.starlark.net/starlark"
)

// Class is the method table of a library type. It is also callable: calling it allocates an
// instance and runs the __init__ slot on it.
type Class struct {
	name    string
	doc     string
	alloc   func(thread *starlark.Thread) starlark.Value
	mu      sync.RWMutex
	methods map[string]starlark.Value
	stacks  installStacks
}

var (
	_ Table             = new(Class)
	_ starlark.Callable = new(Class)
)

func NewClass(name string, doc string) *Class {
	return &Class{
		name:    name,
		doc:     doc,
		methods: make(map[string]starlark.Value),
	}
}

// SetAlloc sets the function creating blank instances for the constructor.
func (c *Class) SetAlloc(fn func(thread *starlark.Thread) starlark.Value) *Class {
	c.alloc = fn
	return c
}

// Define adds a method. fn receives the instance as the first positional argument.
func (c *Class) Define(name string, fn starlark.Callable) *Class {
	c.SetSlot(name, fn)
	return c
}

func (c *Class) TableName() string {
	return c.name
}

func (c *Class) Slot(name string) (starlark.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.methods[name]
	return v, ok
}

func (c *Class) SetSlot(name string, value starlark.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods[name] = value
}

func (c *Class) SlotNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.methods))
}

func (c *Class) installs() *installStacks {
	return &c.stacks
}

func (c *Class) Doc() string {
	return c.doc
}

func (c *Class) String() string {
	return fmt.Sprintf("<class %s>", c.name)
}

func (c *Class) Type() string {
	return "class"
}

func (c *Class) Freeze() {}

func (c *Class) Truth() starlark.Bool {
	return true
}

func (c *Class) Hash() (uint32, error) {
	return starlark.String(c.name).Hash()
}

func (c *Class) Name() string {
	return c.name
}

func (c *Class) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if c.alloc == nil {
		return nil, fmt.Errorf("%s is not constructible", c.name)
	}
	obj := c.alloc(thread)
	if err := c.Init(thread, obj, args, kwargs); err != nil {
		return nil, err
	}
	return obj, nil
}

// Init runs the __init__ slot on obj. The caller of Init is seen by the slot as the constructing function.
func (c *Class) Init(thread *starlark.Thread, obj starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) error {
	ctor, ok := c.Slot("__init__")
	if !ok {
		return nil
	}
	if thread == nil {
		thread = &starlark.Thread{Name: c.name}
	}
	_, err := starlark.Call(thread, ctor, append(starlark.Tuple{obj}, args...), kwargs)
	return err
}

// Method returns the named method bound to recv.
func (c *Class) Method(recv starlark.Value, name string) (*BoundMethod, bool) {
	fn, ok := c.Slot(name)
	if !ok || name == "__init__" {
		return nil, false
	}
	callable, ok := fn.(starlark.Callable)
	if !ok {
		return nil, false
	}
	return &BoundMethod{
		Recv:   recv,
		Method: callable,
		name:   name,
	}, true
}

// CallMethod calls the named slot with recv as receiver. Slots that are missing return ok == false.
func (c *Class) CallMethod(thread *starlark.Thread, recv starlark.Value, name string, args starlark.Tuple, kwargs []starlark.Tuple) (ret starlark.Value, ok bool, err error) {
	fn, ok := c.Slot(name)
	if !ok {
		return nil, false, nil
	}
	if thread == nil {
		thread = &starlark.Thread{Name: name}
	}
	ret, err = starlark.Call(thread, fn, append(starlark.Tuple{recv}, args...), kwargs)
	return ret, true, err
}

type BoundMethod struct {
	Recv   starlark.Value
	Method starlark.Callable
	name   string
}

var _ starlark.Callable = new(BoundMethod)

func (b *BoundMethod) String() string {
	return fmt.Sprintf("<bound method %s of %s>", b.name, b.Recv.Type())
}

func (b *BoundMethod) Type() string {
	return "method"
}

func (b *BoundMethod) Freeze() {}

func (b *BoundMethod) Truth() starlark.Bool {
	return true
}

func (b *BoundMethod) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable: %s", b.Type())
}

func (b *BoundMethod) Name() string {
	return b.name
}

// CallInternal invokes the method without an extra call frame, so the method sees the
// caller of the bound method as its caller.
func (b *BoundMethod) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	args = append(starlark.Tuple{b.Recv}, args...)
	if _, ok := b.Method.(*starlark.Function); ok {
		// starlark functions need their own frame
		return starlark.Call(thread, b.Method, args, kwargs)
	}
	return b.Method.CallInternal(thread, args, kwargs)
}
