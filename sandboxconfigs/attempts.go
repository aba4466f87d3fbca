package sandboxconfigs

import (
	"github.com/reusee/scisandbox/cmds"
	"github.com/reusee/scisandbox/configs"
	"github.com/reusee/scisandbox/vars"
)

type MaxAttempts int

var _ configs.Configurable = MaxAttempts(0)

func (MaxAttempts) ConfigKey() string {
	return "max_attempts"
}

var maxAttemptsFlag = cmds.Var[int]("-max-attempts", "attempts of the retry loop")

func (Module) MaxAttempts(
	loader configs.Loader,
) MaxAttempts {
	return MaxAttempts(vars.FirstNonZero(
		*maxAttemptsFlag,
		configs.First[int](loader, "max_attempts"),
		5,
	))
}

// MaxTimeouts bounds consecutive timeouts before the retry loop gives up.
type MaxTimeouts int

func (MaxTimeouts) ConfigKey() string {
	return "max_timeouts"
}

func (Module) MaxTimeouts(
	loader configs.Loader,
) MaxTimeouts {
	return MaxTimeouts(vars.FirstNonZero(
		configs.First[int](loader, "max_timeouts"),
		2,
	))
}
