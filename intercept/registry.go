package intercept

import (
	"errors"
	"sync"

	"go.starlark.net/starlark"
)

// Registry tracks the installs of one run so they can be suspended or reversed as a whole.
type Registry struct {
	mu           sync.Mutex
	suspended    int
	uninstallers []*Uninstaller
}

func NewRegistry() *Registry {
	return new(Registry)
}

const registryKey = "intercept.registry"

func (r *Registry) Bind(thread *starlark.Thread) {
	thread.SetLocal(registryKey, r)
}

func RegistryFromThread(thread *starlark.Thread) *Registry {
	if thread == nil {
		return nil
	}
	r, _ := thread.Local(registryKey).(*Registry)
	return r
}

func (r *Registry) Install(table Table, name string, replacement starlark.Value) (*Uninstaller, error) {
	u, err := Install(table, name, replacement)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.uninstallers = append(r.uninstallers, u)
	r.mu.Unlock()
	return u, nil
}

func (r *Registry) Add(uninstallers ...*Uninstaller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uninstallers = append(r.uninstallers, uninstallers...)
}

// Active reports whether installed wrappers should apply their rules.
func (r *Registry) Active() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspended == 0
}

// Suspend runs fn with every wrapper passing through to what it wraps. Installs stay in place.
func (r *Registry) Suspend(fn func()) {
	if r == nil {
		fn()
		return
	}
	r.mu.Lock()
	r.suspended++
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.suspended--
		r.mu.Unlock()
	}()
	fn()
}

// Reverse runs fn with every install undone, then installs them again, even if fn panics.
// The same uninstallers are reinstalled, so guards holding them can still restore on exit.
func (r *Registry) Reverse(fn func()) (err error) {
	r.mu.Lock()
	var installed []*Uninstaller
	for _, u := range r.uninstallers {
		// installs already restored by their owners stay restored
		if !u.Restored() {
			installed = append(installed, u)
		}
	}
	r.uninstallers = nil
	r.mu.Unlock()

	if err := RestoreAll(installed); err != nil {
		return err
	}

	defer func() {
		var errs []error
		reinstalled := make([]*Uninstaller, 0, len(installed))
		for _, u := range installed {
			if e := u.reinstall(); e != nil {
				errs = append(errs, e)
				continue
			}
			reinstalled = append(reinstalled, u)
		}
		r.mu.Lock()
		r.uninstallers = append(reinstalled, r.uninstallers...)
		r.mu.Unlock()
		if len(errs) > 0 {
			err = errors.Join(append([]error{err}, errs...)...)
		}
	}()

	fn()
	return nil
}

// RestoreAll undoes every install in reverse order.
func (r *Registry) RestoreAll() error {
	r.mu.Lock()
	installed := r.uninstallers
	r.uninstallers = nil
	r.mu.Unlock()
	return RestoreAll(installed)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.uninstallers)
}
