package guards

import (
	"fmt"
	"time"

	"github.com/reusee/scisandbox/warnings"
)

type ForbiddenCallError struct {
	Module string
	Name   string
}

func (f *ForbiddenCallError) Error() string {
	if f.Module == "" {
		return fmt.Sprintf("calling %s() is not allowed", f.Name)
	}
	return fmt.Sprintf("calling %s.%s() is not allowed", f.Module, f.Name)
}

type ForbiddenImportError struct {
	Module string
}

func (f *ForbiddenImportError) Error() string {
	return fmt.Sprintf("importing %q is not allowed", f.Module)
}

type ForbiddenFileAccessError struct {
	Path  string
	Write bool
}

func (f *ForbiddenFileAccessError) Error() string {
	if f.Write {
		return fmt.Sprintf("writing to %q is not allowed", f.Path)
	}
	return fmt.Sprintf("reading %q is not allowed", f.Path)
}

type WarningError struct {
	Warning warnings.Warning
}

func (w *WarningError) Error() string {
	return w.Warning.String()
}

type TimeoutError struct {
	Timeout time.Duration
}

func (t *TimeoutError) Error() string {
	return fmt.Sprintf("code execution timed out after %s", t.Timeout)
}
