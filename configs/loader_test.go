package configs

import (
	"errors"
	"fmt"
	"testing"
)

var testSchema = `
timeout?: string
max_rows?: [...int]
`

func TestLoaderAssignFirst(t *testing.T) {
	loader := NewLoader([]string{"test.cue"}, testSchema)

	var timeout string
	err := loader.AssignFirst("timeout", &timeout)
	if err != nil {
		t.Fatal(err)
	}
	if timeout != "30s" {
		t.Fatalf("got %q", timeout)
	}

	var rows []int
	err = loader.AssignFirst("max_rows", &rows)
	if err != nil {
		t.Fatal(err)
	}
	if str := fmt.Sprintf("%v", rows); str != "[20 30 40]" {
		t.Fatalf("got %s", str)
	}

	err = loader.AssignFirst("not", &rows)
	if !errors.Is(err, ErrValueNotFound) {
		t.Fatalf("got %v", err)
	}

}

func TestLoaderIterCueValues(t *testing.T) {
	loader := NewLoader([]string{
		"test.cue",
		"test2.cue",
	}, testSchema)

	var timeouts []string
	for value, err := range loader.IterCueValues("timeout") {
		if err != nil {
			t.Fatal(err)
		}
		var s string
		if err := value.Decode(&s); err != nil {
			t.Fatal(err)
		}
		timeouts = append(timeouts, s)
	}
	if str := fmt.Sprintf("%v", timeouts); str != "[30s 5m]" {
		t.Fatalf("got %q", str)
	}

	timeouts = timeouts[:0]
	for str := range All[string](loader, "timeout") {
		timeouts = append(timeouts, str)
	}
	if str := fmt.Sprintf("%v", timeouts); str != "[30s 5m]" {
		t.Fatalf("got %q", str)
	}

}

func TestUnknownField(t *testing.T) {
	loader := NewLoader([]string{
		"bad.cue",
	}, testSchema)
	var str string
	err := loader.AssignFirst("unknown_field", &str)
	if err == nil {
		t.Fatal("should error")
	}
}

func TestMissingFile(t *testing.T) {
	loader := NewLoader([]string{"no-such-file.cue"}, testSchema)
	var str string
	if err := loader.AssignFirst("timeout", &str); err == nil {
		t.Fatal("should error")
	}
}

func TestLoaderOverlay(t *testing.T) {
	loader := NewLoader([]string{"test.cue"}, testSchema).
		WithOverlay("flags", `timeout: "1s"`, testSchema)

	if timeout := First[string](loader, "timeout"); timeout != "1s" {
		t.Fatalf("got %v", timeout)
	}
	if rows := First[[]int](loader, "max_rows"); len(rows) != 3 {
		t.Fatalf("got %v", rows)
	}
	paths, err := loader.Paths()
	if err != nil {
		t.Fatal(err)
	}
	if str := fmt.Sprintf("%v", paths); str != "[flags test.cue]" {
		t.Fatalf("got %v", str)
	}

	bad := NewLoader(nil, testSchema).WithOverlay("flags", `max_columns: 3`, testSchema)
	var n int
	if err := bad.AssignFirst("max_columns", &n); err == nil {
		t.Fatal("should error")
	}
}
