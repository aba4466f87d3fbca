package guards

import (
	"fmt"
	"strings"

	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/intercept"
	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/pvalues"
	"github.com/reusee/scisandbox/stats"
	"go.starlark.net/starlark"
)

// Env is what guards act on: the thread of one run and the libraries it sees.
type Env struct {
	Thread   *starlark.Thread
	Registry *intercept.Registry
	// Builtins are the predeclared names of submitted code.
	Builtins *intercept.Dict
	// Modules are the loadable roots by name.
	Modules map[string]starlark.Value
	Frames  *frames.Library
	Stats   *stats.Library
	Display *pvalues.Display
	Dir     string
	Logger  logs.Logger

	importChecks []ImportCheck
}

type ImportCheck func(thread *starlark.Thread, module string) error

func (e *Env) AddImportCheck(check ImportCheck) {
	e.importChecks = append(e.importChecks, check)
}

func (e *Env) CheckImport(thread *starlark.Thread, module string) error {
	for _, check := range e.importChecks {
		if err := check(thread, module); err != nil {
			return err
		}
	}
	return nil
}

// ResolveModule finds a module by dotted path under Modules.
func (e *Env) ResolveModule(path string) (starlark.Value, error) {
	parts := strings.Split(path, ".")
	v, ok := e.Modules[parts[0]]
	if !ok {
		return nil, fmt.Errorf("no module named %q", path)
	}
	for i, part := range parts[1:] {
		holder, ok := v.(starlark.HasAttrs)
		if !ok {
			return nil, fmt.Errorf("no module named %q", strings.Join(parts[:i+2], "."))
		}
		next, err := holder.Attr(part)
		if err != nil || next == nil {
			return nil, fmt.Errorf("no module named %q", strings.Join(parts[:i+2], "."))
		}
		v = next
	}
	return v, nil
}
