package guards

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/reusee/scisandbox/files"
	"github.com/reusee/scisandbox/issues"
	"go.starlark.net/starlark"
)

// FileGuard restricts the paths library code may read or write on behalf of a run.
// Patterns are relative to the run directory, except SystemAllow which holds absolute patterns.
type FileGuard struct {
	ReadAllow   []string
	WriteAllow  []string
	SystemAllow []string
	// Denied holds every rejected access.
	Denied []ForbiddenFileAccessError

	dir string
}

var _ Guard = new(FileGuard)

var _ files.Access = new(FileGuard)

func (f *FileGuard) GuardName() string {
	return "files"
}

func (f *FileGuard) Enter(env *Env) error {
	f.dir = env.Dir
	files.Bind(env.Thread, f)
	return nil
}

func (f *FileGuard) Exit(env *Env) error {
	if files.FromThread(env.Thread) == files.Access(f) {
		files.Unbind(env.Thread)
	}
	return nil
}

func (f *FileGuard) Issues() []issues.Issue {
	return nil
}

func (f *FileGuard) CheckRead(thread *starlark.Thread, path string) error {
	if Loading(thread) {
		return nil
	}
	if f.allowed(path, f.ReadAllow) {
		return nil
	}
	return f.deny(path, false)
}

func (f *FileGuard) CheckWrite(thread *starlark.Thread, path string) error {
	if f.allowed(path, f.WriteAllow) {
		return nil
	}
	return f.deny(path, true)
}

func (f *FileGuard) deny(path string, write bool) error {
	e := ForbiddenFileAccessError{
		Path:  path,
		Write: write,
	}
	f.Denied = append(f.Denied, e)
	return &e
}

func (f *FileGuard) allowed(path string, patterns []string) bool {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(f.dir, path)
	}
	abs = filepath.Clean(abs)

	for _, pattern := range f.SystemAllow {
		if ok, _ := doublestar.PathMatch(pattern, abs); ok {
			return true
		}
	}

	rel, err := filepath.Rel(f.dir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		// outside the run directory
		return false
	}
	for _, pattern := range patterns {
		if ok, _ := doublestar.PathMatch(pattern, rel); ok {
			return true
		}
	}
	return false
}

const loadingKey = "guards.loading"

// WithLoading runs fn as part of resolving a load statement. File reads made meanwhile are not restricted.
func WithLoading(thread *starlark.Thread, fn func() error) error {
	n, _ := thread.Local(loadingKey).(int)
	thread.SetLocal(loadingKey, n+1)
	defer thread.SetLocal(loadingKey, n)
	return fn()
}

func Loading(thread *starlark.Thread) bool {
	if thread == nil {
		return false
	}
	n, _ := thread.Local(loadingKey).(int)
	return n > 0
}
