package reviews

import (
	"github.com/reusee/dscope"
	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/sandboxconfigs"
)

type Module struct {
	dscope.Module
	Logs    logs.Module
	Configs sandboxconfigs.Module
}
