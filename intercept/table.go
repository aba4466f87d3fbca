package intercept

import (
	"maps"
	"slices"
	"sync"

	"go.starlark.net/starlark"
)

// Table is a set of named patchable slots: module members or class methods.
type Table interface {
	TableName() string
	Slot(name string) (starlark.Value, bool)
	SetSlot(name string, value starlark.Value)
	SlotNames() []string
	installs() *installStacks
}

type installStacks struct {
	mu     sync.Mutex
	stacks map[string][]*Uninstaller
}

// Dict is a Table over a StringDict, such as the members of a starlarkstruct.Module.
// Writes go to the dict itself so holders of the dict see patches.
type Dict struct {
	name    string
	mu      sync.RWMutex
	members starlark.StringDict
	stacks  installStacks
}

var _ Table = new(Dict)

func NewDict(name string, members starlark.StringDict) *Dict {
	return &Dict{
		name:    name,
		members: members,
	}
}

func (d *Dict) TableName() string {
	return d.name
}

func (d *Dict) Slot(name string) (starlark.Value, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.members[name]
	return v, ok
}

func (d *Dict) SetSlot(name string, value starlark.Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[name] = value
}

func (d *Dict) SlotNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.members))
}

func (d *Dict) Members() starlark.StringDict {
	return d.members
}

func (d *Dict) installs() *installStacks {
	return &d.stacks
}
