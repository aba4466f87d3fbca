package debugs

import (
	"testing"

	"go.starlark.net/starlark"
)

func TestToValue(t *testing.T) {
	type entry struct {
		Name   string
		Size   int64
		hidden int
	}

	for _, c := range []struct {
		name  string
		input any
		want  string
	}{
		{"nil", nil, "None"},
		{"bool", true, "True"},
		{"bytes", []byte("abc"), `b"abc"`},
		{"string", "hello", `"hello"`},
		{"int8", int8(42), "42"},
		{"uint64", uint64(42), "42"},
		{"float", 0.5, "0.5"},
		{"strings", []string{"a", "b"}, `["a", "b"]`},
		{"map", map[string]int{"b": 2, "a": 1}, `{"a": 1, "b": 2}`},
		{"struct", entry{Name: "df_1.pkl", Size: 10, hidden: 1}, `{"Name": "df_1.pkl", "Size": 10}`},
		{"pointer", &entry{Name: "x"}, `{"Name": "x", "Size": 0}`},
		{"nil pointer", (*entry)(nil), "None"},
		{"starlark", starlark.MakeInt(3), "3"},
	} {
		got, err := ToValue(c.input)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got.String() != c.want {
			t.Fatalf("%s: got %s", c.name, got.String())
		}
	}

	if _, err := ToValue(make(chan int)); err == nil {
		t.Fatal("should fail")
	}

	fn, err := ToValue(func(a, b int) int { return a + b })
	if err != nil {
		t.Fatal(err)
	}
	ret, err := starlark.Call(&starlark.Thread{}, fn, starlark.Tuple{starlark.MakeInt(1), starlark.MakeInt(2)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ret.String() != "3" {
		t.Fatalf("got %s", ret)
	}
}
