package guards

import (
	"strings"

	"github.com/reusee/scisandbox/intercept"
	"github.com/reusee/scisandbox/issues"
	"go.starlark.net/starlark"
)

// ImportGuard rejects loads of forbidden modules, and their submodules, requested by submitted code.
// Loads made while loading an allowed module pass.
type ImportGuard struct {
	Forbidden []string
	Rejected  []string
}

var _ Guard = new(ImportGuard)

func (i *ImportGuard) GuardName() string {
	return "imports"
}

func (i *ImportGuard) Enter(env *Env) error {
	env.AddImportCheck(i.check)
	return nil
}

func (i *ImportGuard) Forbids(module string) bool {
	for _, f := range i.Forbidden {
		if module == f || strings.HasPrefix(module, f+".") {
			return true
		}
	}
	return false
}

func (i *ImportGuard) check(thread *starlark.Thread, module string) error {
	if !intercept.LoadedFromUser(thread) {
		return nil
	}
	if !i.Forbids(module) {
		return nil
	}
	i.Rejected = append(i.Rejected, module)
	return &ForbiddenImportError{
		Module: module,
	}
}

func (i *ImportGuard) Exit(env *Env) error {
	return nil
}

func (i *ImportGuard) Issues() []issues.Issue {
	return nil
}
