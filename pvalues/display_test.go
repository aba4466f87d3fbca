package pvalues

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

func TestDisplayModes(t *testing.T) {
	d := NewDisplay()
	p := New(1e-9, "ttest_ind", d)

	if _, err := d.Format(p); err == nil {
		t.Fatal("raise mode should not format")
	}

	cases := []struct {
		mode Mode
		want string
	}{
		{ModeFloat, "1e-09"},
		{ModeSmallerThan, "<1e-06"},
		{ModeEpsilon, "1e-06"},
		{ModeVerbatim, "PValue(1e-09)"},
		{ModeDebug, "pvalue[ttest_ind]:1e-09"},
	}
	for _, c := range cases {
		d.With(c.mode, func() {
			if got := p.String(); got != c.want {
				t.Fatalf("%s: got %q", c.mode, got)
			}
		})
	}
	if d.Mode() != ModeRaise {
		t.Fatalf("got %v", d.Mode())
	}

	d.With(ModeSmallerThan, func() {
		if got := New(0.0312, "", d).String(); got != "0.0312" {
			t.Fatalf("got %q", got)
		}
	})
}

func TestDisplayRestoreOnPanic(t *testing.T) {
	d := NewDisplay()
	func() {
		defer func() {
			recover()
		}()
		d.With(ModeFloat, func() {
			d.With(ModeDebug, func() {
				panic("boom")
			})
		})
	}()
	if d.Mode() != ModeRaise {
		t.Fatalf("got %v", d.Mode())
	}
}

func TestStringifyInStarlark(t *testing.T) {
	d := NewDisplay()
	thread := &starlark.Thread{Name: "test"}
	d.Bind(thread)
	predeclared := Builtins()
	predeclared["p"] = New(0.001, "ttest_ind", d)

	_, err := starlark.ExecFileOptions(fileOptions, thread, "str.star", "s = str(p)", predeclared)
	var notPermitted *OperationNotPermittedError
	if !errors.As(err, &notPermitted) {
		t.Fatalf("got %v", err)
	}
	if notPermitted.Op != OpStr || notPermitted.CreatedBy != "ttest_ind" {
		t.Fatalf("got %+v", notPermitted)
	}

	// formatting goes through String and cancels the thread
	thread = &starlark.Thread{Name: "test"}
	d.Bind(thread)
	_, err = starlark.ExecFileOptions(fileOptions, thread, "fmt.star", `
s = "%s" % p
for i in range(10):
	pass
`, predeclared)
	if err == nil {
		t.Fatal("should fail")
	}
	if d.Violation() == nil {
		t.Fatal("violation should be recorded")
	}

	thread = &starlark.Thread{Name: "test"}
	d.Bind(thread)
	d.With(ModeSmallerThan, func() {
		globals, err := starlark.ExecFileOptions(fileOptions, thread, "ok.star", `
s = str(p)
small = __compare__("<", p, 0.05)
double = p * 2
`, predeclared)
		if err != nil {
			t.Fatal(err)
		}
		if s := globals["s"].(starlark.String); !strings.HasPrefix(string(s), "0.001") {
			t.Fatalf("got %s", s)
		}
		if globals["small"] != starlark.True {
			t.Fatal()
		}
		if !IsTainted(globals["double"]) {
			t.Fatal()
		}
	})
}

func TestOrderingBuiltins(t *testing.T) {
	d := NewDisplay()
	thread := &starlark.Thread{Name: "test"}
	d.Bind(thread)
	predeclared := Builtins()
	predeclared["p"] = New(0.03, "ttest_ind", d)
	predeclared["q"] = New(0.002, "pearsonr", d)

	globals, err := starlark.ExecFileOptions(fileOptions, thread, "order.star", `
hi = max(p, 0.01)
lo = min([0.5, p, q])
ordered = sorted([0.5, p, 0.001, q])
desc = sorted([p, q], reverse = True)
by_key = max([("a", p), ("b", 0.9)], key = lambda pair: pair[1])
plain = sorted([3, 1, 2])
`, predeclared)
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := globals["hi"].(PValue); !ok || p.CreatedBy != "ttest_ind" {
		t.Fatalf("got %v", globals["hi"])
	}
	if p, ok := globals["lo"].(PValue); !ok || p.CreatedBy != "pearsonr" {
		t.Fatalf("got %v", globals["lo"])
	}
	list := globals["ordered"].(*starlark.List)
	var got []float64
	for i := range list.Len() {
		f, _ := AsFloat(list.Index(i))
		got = append(got, f)
	}
	if fmt.Sprint(got) != "[0.001 0.002 0.03 0.5]" {
		t.Fatalf("got %v", got)
	}
	if first, _ := AsFloat(globals["desc"].(*starlark.List).Index(0)); first != 0.03 {
		t.Fatalf("got %v", first)
	}
	if pair := globals["by_key"].(starlark.Tuple); pair[0] != starlark.String("b") {
		t.Fatalf("got %v", pair)
	}
	if plain := globals["plain"].String(); plain != "[1, 2, 3]" {
		t.Fatalf("got %v", plain)
	}

	_, err = starlark.ExecFileOptions(fileOptions, thread, "bad.star", `x = max([])`, predeclared)
	if err == nil || !strings.Contains(err.Error(), "empty sequence") {
		t.Fatalf("got %v", err)
	}
}
