package sandboxconfigs

import (
	"fmt"
	"time"

	"github.com/reusee/scisandbox/cmds"
	"github.com/reusee/scisandbox/configs"
)

type Timeout time.Duration

var _ configs.Configurable = Timeout(0)

func (Timeout) ConfigKey() string {
	return "timeout"
}

const DefaultTimeout = Timeout(time.Minute)

var timeoutFlag = cmds.Var[time.Duration]("-timeout", "run timeout")

func (Module) Timeout(
	loader configs.Loader,
) Timeout {
	if *timeoutFlag > 0 {
		return Timeout(*timeoutFlag)
	}
	if str := configs.First[string](loader, "timeout"); str != "" {
		d, err := time.ParseDuration(str)
		if err != nil {
			panic(fmt.Errorf("bad timeout config: %w", err))
		}
		return Timeout(d)
	}
	return DefaultTimeout
}
