package intercept

import (
	"errors"
	"fmt"
	"sync"

	"go.starlark.net/starlark"
)

var (
	ErrNotTopmost  = errors.New("restore out of order: a later install on the same slot is still active")
	ErrSlotMissing = errors.New("no such slot")
)

// Uninstaller puts back the value a slot held before Install.
type Uninstaller struct {
	Table       Table
	Name        string
	Original    starlark.Value
	Replacement starlark.Value

	mu       sync.Mutex
	restored bool
}

// Install replaces the named slot. Installs on one slot form a stack and must be restored in reverse order.
func Install(table Table, name string, replacement starlark.Value) (*Uninstaller, error) {
	stacks := table.installs()
	stacks.mu.Lock()
	defer stacks.mu.Unlock()

	original, ok := table.Slot(name)
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", table.TableName(), name, ErrSlotMissing)
	}
	u := &Uninstaller{
		Table:       table,
		Name:        name,
		Original:    original,
		Replacement: replacement,
	}
	table.SetSlot(name, replacement)
	if stacks.stacks == nil {
		stacks.stacks = make(map[string][]*Uninstaller)
	}
	stacks.stacks[name] = append(stacks.stacks[name], u)
	return u, nil
}

// Restore is idempotent. Restoring an install that is not the topmost one on its slot
// returns ErrNotTopmost and changes nothing.
func (u *Uninstaller) Restore() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.restored {
		return nil
	}

	stacks := u.Table.installs()
	stacks.mu.Lock()
	defer stacks.mu.Unlock()
	stack := stacks.stacks[u.Name]
	if len(stack) == 0 || stack[len(stack)-1] != u {
		return fmt.Errorf("%s.%s: %w", u.Table.TableName(), u.Name, ErrNotTopmost)
	}
	u.Table.SetSlot(u.Name, u.Original)
	stacks.stacks[u.Name] = stack[:len(stack)-1]
	u.restored = true
	return nil
}

// reinstall puts a restored install back on top of its slot. Handles held elsewhere stay valid.
func (u *Uninstaller) reinstall() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.restored {
		return nil
	}

	stacks := u.Table.installs()
	stacks.mu.Lock()
	defer stacks.mu.Unlock()
	original, ok := u.Table.Slot(u.Name)
	if !ok {
		return fmt.Errorf("%s.%s: %w", u.Table.TableName(), u.Name, ErrSlotMissing)
	}
	u.Original = original
	u.Table.SetSlot(u.Name, u.Replacement)
	if stacks.stacks == nil {
		stacks.stacks = make(map[string][]*Uninstaller)
	}
	stacks.stacks[u.Name] = append(stacks.stacks[u.Name], u)
	u.restored = false
	return nil
}

func (u *Uninstaller) Restored() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.restored
}

// RestoreAll restores in reverse order and reports every failure.
func RestoreAll(uninstallers []*Uninstaller) error {
	var errs []error
	for i := len(uninstallers) - 1; i >= 0; i-- {
		if err := uninstallers[i].Restore(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
