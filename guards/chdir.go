package guards

import (
	"os"
	"sync"

	"github.com/reusee/scisandbox/issues"
)

// the working directory is process-wide
var cwdMu sync.Mutex

// ChdirGuard runs the code inside a directory. Runs holding it are serialized.
type ChdirGuard struct {
	// Dir defaults to the run directory.
	Dir string

	previous string
}

var _ Guard = new(ChdirGuard)

func (c *ChdirGuard) GuardName() string {
	return "chdir"
}

func (c *ChdirGuard) Enter(env *Env) error {
	dir := c.Dir
	if dir == "" {
		dir = env.Dir
	}
	cwdMu.Lock()
	previous, err := os.Getwd()
	if err != nil {
		cwdMu.Unlock()
		return err
	}
	if err := os.Chdir(dir); err != nil {
		cwdMu.Unlock()
		return err
	}
	c.previous = previous
	return nil
}

func (c *ChdirGuard) Exit(env *Env) error {
	defer cwdMu.Unlock()
	return os.Chdir(c.previous)
}

func (c *ChdirGuard) Issues() []issues.Issue {
	return nil
}
