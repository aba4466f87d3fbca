package debugs

import (
	"github.com/reusee/dscope"
	"github.com/reusee/scisandbox/logs"
)

type Module struct {
	dscope.Module
	Logs logs.Module
}
