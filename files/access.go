package files

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.starlark.net/starlark"
)

// Access decides whether library code may touch a path on behalf of a run.
type Access interface {
	CheckRead(thread *starlark.Thread, path string) error
	CheckWrite(thread *starlark.Thread, path string) error
}

const accessKey = "files.access"

func Bind(thread *starlark.Thread, access Access) {
	thread.SetLocal(accessKey, access)
}

func FromThread(thread *starlark.Thread) Access {
	if thread == nil {
		return nil
	}
	a, _ := thread.Local(accessKey).(Access)
	return a
}

func ReadFile(thread *starlark.Thread, path string) ([]byte, error) {
	if access := FromThread(thread); access != nil {
		if err := access.CheckRead(thread, path); err != nil {
			return nil, err
		}
	}
	return os.ReadFile(path)
}

func WriteFile(thread *starlark.Thread, path string, content []byte) error {
	if access := FromThread(thread); access != nil {
		if err := access.CheckWrite(thread, path); err != nil {
			return err
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, content, 0644)
}

func Unbind(thread *starlark.Thread) {
	thread.SetLocal(accessKey, nil)
}

// ReadDir lists the names in a directory, sorted.
func ReadDir(thread *starlark.Thread, path string) ([]string, error) {
	if access := FromThread(thread); access != nil {
		if err := access.CheckRead(thread, path); err != nil {
			return nil, err
		}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

func Remove(thread *starlark.Thread, path string) error {
	if access := FromThread(thread); access != nil {
		if err := access.CheckWrite(thread, path); err != nil {
			return err
		}
	}
	return os.Remove(path)
}

func Exists(thread *starlark.Thread, path string) (bool, error) {
	if access := FromThread(thread); access != nil {
		if err := access.CheckRead(thread, path); err != nil {
			return false, err
		}
	}
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
