package sandboxconfigs

import (
	"runtime"

	"github.com/reusee/scisandbox/cmds"
	"github.com/reusee/scisandbox/configs"
	"github.com/reusee/scisandbox/modes"
	"github.com/reusee/scisandbox/vars"
)

// InProcess selects running sandboxed code on a goroutine of the current process.
type InProcess bool

func (InProcess) ConfigKey() string {
	return "in_process"
}

var inProcessFlag = cmds.Switch("-in-process", "run code on a goroutine instead of a child process")

func (Module) InProcess(
	mode modes.Mode,
	loader configs.Loader,
) InProcess {
	if *inProcessFlag {
		return true
	}
	var inProcess bool
	if err := loader.AssignFirst("in_process", &inProcess); err == nil {
		return InProcess(inProcess)
	}
	return InProcess(!mode.OutOfProcess())
}

type MaxParallel int

func (MaxParallel) ConfigKey() string {
	return "max_parallel"
}

func (Module) MaxParallel(
	loader configs.Loader,
) MaxParallel {
	return MaxParallel(vars.FirstNonZero(
		configs.First[int](loader, "max_parallel"),
		runtime.NumCPU(),
	))
}

type RunDir string

func (RunDir) ConfigKey() string {
	return "run_dir"
}

var runDirFlag = cmds.Var[string]("-dir", "run directory")

func (Module) RunDir(
	loader configs.Loader,
) RunDir {
	return RunDir(vars.FirstNonZero(
		*runDirFlag,
		configs.First[string](loader, "run_dir"),
		".",
	))
}

type CacheFile string

func (CacheFile) ConfigKey() string {
	return "cache_file"
}

var cacheFileFlag = cmds.Var[string]("-cache", "run cache file")

func (Module) CacheFile(
	loader configs.Loader,
) CacheFile {
	return CacheFile(vars.FirstNonZero(
		*cacheFileFlag,
		configs.First[string](loader, "cache_file"),
	))
}
