package nets

import (
	"github.com/reusee/dscope"
	"github.com/reusee/scisandbox/sandboxconfigs"
)

type Module struct {
	dscope.Module
	Configs sandboxconfigs.Module
}
