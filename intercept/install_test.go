package intercept

import (
	"errors"
	"testing"

	"go.starlark.net/starlark"
)

func constant(name string, v starlark.Value) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		return v, nil
	})
}

func snapshot(table Table) map[string]starlark.Value {
	ret := make(map[string]starlark.Value)
	for _, name := range table.SlotNames() {
		ret[name], _ = table.Slot(name)
	}
	return ret
}

func sameSnapshot(a, b map[string]starlark.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func TestInstallRestore(t *testing.T) {
	original := constant("f", starlark.MakeInt(1))
	module := NewModule("lib", "", starlark.StringDict{
		"f": original,
	})

	u1, err := Install(module, "f", constant("f1", starlark.MakeInt(2)))
	if err != nil {
		t.Fatal(err)
	}
	u2, err := Install(module, "f", constant("f2", starlark.MakeInt(3)))
	if err != nil {
		t.Fatal(err)
	}

	// out of order
	if err := u1.Restore(); !errors.Is(err, ErrNotTopmost) {
		t.Fatalf("got %v", err)
	}
	if v, _ := module.Slot("f"); v != u2.Replacement {
		t.Fatal("state should be unchanged")
	}

	if err := u2.Restore(); err != nil {
		t.Fatal(err)
	}
	if err := u2.Restore(); err != nil {
		t.Fatal("restore should be idempotent")
	}
	if err := u1.Restore(); err != nil {
		t.Fatal(err)
	}
	if v, _ := module.Slot("f"); v != original {
		t.Fatal()
	}

	if _, err := Install(module, "missing", original); !errors.Is(err, ErrSlotMissing) {
		t.Fatalf("got %v", err)
	}
}

func TestRestoreAfterFailure(t *testing.T) {
	class := NewClass("Frame", "")
	class.Define("__getitem__", constant("get", starlark.None))
	class.Define("__setitem__", constant("set", starlark.None))
	module := NewModule("lib", "", starlark.StringDict{
		"DataFrame": class,
		"read_csv":  constant("read_csv", starlark.None),
	})
	before := snapshot(class)
	beforeModule := snapshot(module)

	runGuarded := func(fn func() error) (err error) {
		registry := NewRegistry()
		defer func() {
			if e := registry.RestoreAll(); e != nil {
				err = e
			}
		}()
		for _, name := range []string{"__getitem__", "__setitem__"} {
			if _, err := registry.Install(class, name, constant("wrapped", starlark.True)); err != nil {
				return err
			}
		}
		if _, err := registry.Install(module, "read_csv", constant("wrapped", starlark.True)); err != nil {
			return err
		}
		return fn()
	}

	boom := errors.New("boom")
	if err := runGuarded(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if !sameSnapshot(before, snapshot(class)) || !sameSnapshot(beforeModule, snapshot(module)) {
		t.Fatal("state not restored after error")
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("should panic")
			}
		}()
		_ = runGuarded(func() error { panic("boom") })
	}()
	if !sameSnapshot(before, snapshot(class)) || !sameSnapshot(beforeModule, snapshot(module)) {
		t.Fatal("state not restored after panic")
	}
}

func TestRegistrySuspend(t *testing.T) {
	registry := NewRegistry()
	if !registry.Active() {
		t.Fatal()
	}
	func() {
		defer func() {
			recover()
		}()
		registry.Suspend(func() {
			if registry.Active() {
				t.Fatal()
			}
			registry.Suspend(func() {
				panic("boom")
			})
		})
	}()
	if !registry.Active() {
		t.Fatal("should be active after suspend")
	}
	var nilRegistry *Registry
	if nilRegistry.Active() {
		t.Fatal()
	}
}

func TestRegistryReverse(t *testing.T) {
	original := constant("f", starlark.MakeInt(1))
	replacement := constant("g", starlark.MakeInt(2))
	module := NewModule("lib", "", starlark.StringDict{
		"f": original,
	})
	registry := NewRegistry()
	if _, err := registry.Install(module, "f", replacement); err != nil {
		t.Fatal(err)
	}

	func() {
		defer func() {
			recover()
		}()
		_ = registry.Reverse(func() {
			if v, _ := module.Slot("f"); v != original {
				t.Fatal("should be uninstalled")
			}
			panic("boom")
		})
	}()
	if v, _ := module.Slot("f"); v != replacement {
		t.Fatal("should be reinstalled")
	}
	if registry.Len() != 1 {
		t.Fatalf("got %d", registry.Len())
	}
	if err := registry.RestoreAll(); err != nil {
		t.Fatal(err)
	}
	if v, _ := module.Slot("f"); v != original {
		t.Fatal()
	}
}

func TestReverseKeepsHandles(t *testing.T) {
	original := constant("f", starlark.MakeInt(1))
	replacement := constant("g", starlark.MakeInt(2))
	module := NewModule("lib", "", starlark.StringDict{
		"f": original,
	})
	registry := NewRegistry()
	u, err := registry.Install(module, "f", replacement)
	if err != nil {
		t.Fatal(err)
	}
	if err := registry.Reverse(func() {}); err != nil {
		t.Fatal(err)
	}
	if u.Restored() {
		t.Fatal("handle should be live again")
	}
	if err := u.Restore(); err != nil {
		t.Fatal(err)
	}
	if v, _ := module.Slot("f"); v != original {
		t.Fatal("not restored through the held handle")
	}
	// restoring the registry afterwards is a no-op
	if err := registry.RestoreAll(); err != nil {
		t.Fatal(err)
	}
}

func TestReverseSkipsRestored(t *testing.T) {
	original := constant("f", starlark.MakeInt(1))
	module := NewModule("lib", "", starlark.StringDict{
		"f": original,
	})
	registry := NewRegistry()
	u, err := registry.Install(module, "f", constant("g", starlark.MakeInt(2)))
	if err != nil {
		t.Fatal(err)
	}
	if err := u.Restore(); err != nil {
		t.Fatal(err)
	}
	if err := registry.Reverse(func() {}); err != nil {
		t.Fatal(err)
	}
	if v, _ := module.Slot("f"); v != original {
		t.Fatal("a restored install should not come back")
	}
	if registry.Len() != 0 {
		t.Fatalf("got %d", registry.Len())
	}
}

func TestSuspendBypassesWrappers(t *testing.T) {
	var applied int
	wrapped := Wrapper("f", constant("f", starlark.MakeInt(1)), ScopeAll,
		func(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			applied++
			return starlark.MakeInt(2), nil
		})
	registry := NewRegistry()
	thread := new(starlark.Thread)
	registry.Bind(thread)

	v, err := starlark.Call(thread, wrapped, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "2" || applied != 1 {
		t.Fatalf("got %v", v)
	}

	RegistryFromThread(thread).Suspend(func() {
		v, err = starlark.Call(thread, wrapped, nil, nil)
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "1" || applied != 1 {
		t.Fatalf("got %v", v)
	}

	// unbound threads have no registry
	ran := false
	RegistryFromThread(new(starlark.Thread)).Suspend(func() {
		ran = true
	})
	if !ran {
		t.Fatal()
	}
}
