package intercept

import (
	"fmt"

	"go.starlark.net/starlark"
)

// Module is a library module whose members are patchable slots.
type Module struct {
	*Dict
	doc string
}

var _ starlark.HasAttrs = new(Module)

func NewModule(name string, doc string, members starlark.StringDict) *Module {
	return &Module{
		Dict: NewDict(name, members),
		doc:  doc,
	}
}

func (m *Module) Doc() string {
	return m.doc
}

func (m *Module) String() string {
	return fmt.Sprintf("<module %s>", m.name)
}

func (m *Module) Type() string {
	return "module"
}

func (m *Module) Freeze() {}

func (m *Module) Truth() starlark.Bool {
	return true
}

func (m *Module) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable: module")
}

func (m *Module) Attr(name string) (starlark.Value, error) {
	v, ok := m.Slot(name)
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (m *Module) AttrNames() []string {
	return m.SlotNames()
}
