package intercept

import (
	"testing"

	"go.starlark.net/starlark"
)

func TestCalledFromUser(t *testing.T) {
	var fromUser []bool
	detect := starlark.NewBuiltin("detect", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		fromUser = append(fromUser, CalledFromUser(thread))
		return starlark.None, nil
	})
	// a library function calling detect
	helper := starlark.NewBuiltin("helper", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return starlark.Call(thread, detect, nil, nil)
	})
	class := NewClass("Thing", "")
	class.Define("detect", detect)
	thing := starlark.NewBuiltin("thing", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		m, _ := class.Method(starlark.None, "detect")
		return m, nil
	})

	thread := &starlark.Thread{Name: "test"}
	MarkUserFile(thread, "user.star")
	_, err := starlark.ExecFile(thread, "user.star", `
detect()
helper()
def f():
    detect()
f()
thing()()
`, starlark.StringDict{
		"detect":  detect,
		"helper": helper,
		"thing":  thing,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []bool{true, false, true, true}
	if len(fromUser) != len(want) {
		t.Fatalf("got %v", fromUser)
	}
	for i := range want {
		if fromUser[i] != want[i] {
			t.Fatalf("got %v", fromUser)
		}
	}

	// other files are trusted
	fromUser = nil
	if _, err := starlark.ExecFile(thread, "internal.star", "detect()", starlark.StringDict{"detect": detect}); err != nil {
		t.Fatal(err)
	}
	if fromUser[0] {
		t.Fatal()
	}
}

func TestWrapper(t *testing.T) {
	original := constant("original", starlark.String("original"))
	wrapped := Wrapper("f", original, ScopeUser, func(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return starlark.String("rule"), nil
	})
	registry := NewRegistry()
	thread := &starlark.Thread{Name: "test"}
	MarkUserFile(thread, "user.star")
	registry.Bind(thread)

	run := func() starlark.Value {
		globals, err := starlark.ExecFile(thread, "user.star", "x = f()", starlark.StringDict{"f": wrapped})
		if err != nil {
			t.Fatal(err)
		}
		return globals["x"]
	}
	if got := run(); got != starlark.String("rule") {
		t.Fatalf("got %v", got)
	}
	registry.Suspend(func() {
		if got := run(); got != starlark.String("original") {
			t.Fatalf("got %v", got)
		}
	})
}
