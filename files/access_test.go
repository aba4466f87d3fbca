package files

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.starlark.net/starlark"
)

type onlyTxt struct{}

var errDenied = errors.New("denied")

func (onlyTxt) CheckRead(thread *starlark.Thread, path string) error {
	if !strings.HasSuffix(path, ".txt") {
		return errDenied
	}
	return nil
}

func (onlyTxt) CheckWrite(thread *starlark.Thread, path string) error {
	return onlyTxt{}.CheckRead(thread, path)
}

func TestAccess(t *testing.T) {
	dir := t.TempDir()
	thread := &starlark.Thread{Name: "test"}

	// unbound threads are unrestricted
	if err := WriteFile(thread, filepath.Join(dir, "a.bin"), []byte("a")); err != nil {
		t.Fatal(err)
	}

	Bind(thread, onlyTxt{})
	if err := WriteFile(thread, filepath.Join(dir, "b.bin"), []byte("b")); !errors.Is(err, errDenied) {
		t.Fatalf("got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.bin")); !os.IsNotExist(err) {
		t.Fatal("file should not exist")
	}
	if err := WriteFile(thread, filepath.Join(dir, "sub", "c.txt"), []byte("c")); err != nil {
		t.Fatal(err)
	}
	content, err := ReadFile(thread, filepath.Join(dir, "sub", "c.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "c" {
		t.Fatalf("got %s", content)
	}
	if _, err := ReadFile(thread, filepath.Join(dir, "a.bin")); !errors.Is(err, errDenied) {
		t.Fatalf("got %v", err)
	}
}

func TestDirectoryHelpers(t *testing.T) {
	dir := t.TempDir()
	thread := &starlark.Thread{Name: "test"}
	for _, name := range []string{"b.txt", "a.txt", "c.bin"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	names, err := ReadDir(thread, dir)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, ",") != "a.txt,b.txt,c.bin" {
		t.Fatalf("got %v", names)
	}

	Bind(thread, onlyTxt{})
	if _, err := ReadDir(thread, dir); !errors.Is(err, errDenied) {
		t.Fatalf("got %v", err)
	}
	if ok, err := Exists(thread, filepath.Join(dir, "a.txt")); err != nil || !ok {
		t.Fatalf("got %v %v", ok, err)
	}
	if ok, err := Exists(thread, filepath.Join(dir, "missing.txt")); err != nil || ok {
		t.Fatalf("got %v %v", ok, err)
	}
	if err := Remove(thread, filepath.Join(dir, "c.bin")); !errors.Is(err, errDenied) {
		t.Fatalf("got %v", err)
	}
	if err := Remove(thread, filepath.Join(dir, "a.txt")); err != nil {
		t.Fatal(err)
	}
	if ok, _ := Exists(thread, filepath.Join(dir, "a.txt")); ok {
		t.Fatal("should be removed")
	}
}
