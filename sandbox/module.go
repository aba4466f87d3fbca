package sandbox

import (
	"fmt"
	"slices"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/scisandbox/cmds"
	"github.com/reusee/scisandbox/configs"
	"github.com/reusee/scisandbox/guards"
	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/overrides"
	"github.com/reusee/scisandbox/sandboxconfigs"
	"github.com/reusee/scisandbox/syncs"
)

type Module struct {
	dscope.Module
	Configs sandboxconfigs.Module
}

type callConfig struct {
	Module   string `json:"module"`
	Name     string `json:"name"`
	Severity string `json:"severity"`
}

var forbidImportFlag = cmds.Var[string]("-forbid-import", "forbid loading a module")

func (Module) Settings(
	loader configs.Loader,
	timeout sandboxconfigs.Timeout,
	runDir sandboxconfigs.RunDir,
) Settings {
	s := DefaultSettings(string(runDir))
	s.Timeout = time.Duration(timeout)

	if calls := configs.First[[]callConfig](loader, "forbidden_calls"); len(calls) > 0 {
		s.ForbiddenCalls = s.ForbiddenCalls[:0]
		for _, call := range calls {
			severity, err := guards.ParseSeverity(call.Severity)
			if err != nil {
				panic(fmt.Errorf("bad forbidden call config: %w", err))
			}
			s.ForbiddenCalls = append(s.ForbiddenCalls, guards.ForbiddenCall{
				Module:   call.Module,
				Name:     call.Name,
				Severity: severity,
			})
		}
	}
	// forbidden imports accumulate across config files
	var imports []string
	for list := range configs.All[[]string](loader, "forbidden_imports") {
		for _, name := range list {
			if !slices.Contains(imports, name) {
				imports = append(imports, name)
			}
		}
	}
	if len(imports) > 0 {
		s.ForbiddenImports = imports
	}
	if *forbidImportFlag != "" {
		s.ForbiddenImports = append(s.ForbiddenImports, *forbidImportFlag)
	}
	s.ReadAllow = configs.First[[]string](loader, "read_allow")
	s.WriteAllow = configs.First[[]string](loader, "write_allow")

	if rules := configs.First[map[string]string](loader, "warnings"); len(rules) > 0 {
		s.Warnings = make(map[string]guards.WarningAction, len(rules))
		for category, str := range rules {
			action, err := guards.ParseWarningAction(str)
			if err != nil {
				panic(fmt.Errorf("bad warning config: %w", err))
			}
			s.Warnings[category] = action
		}
	}

	if str := configs.First[string](loader, "mutation_policy"); str != "" {
		policy, err := overrides.ParseMutationPolicy(str)
		if err != nil {
			panic(fmt.Errorf("bad mutation policy config: %w", err))
		}
		s.MutationPolicy = policy
	}
	s.EnforceSavingAltered = configs.First[bool](loader, "enforce_saving_altered")
	if digits := configs.First[int](loader, "float_digits"); digits > 0 {
		s.FloatDigits = digits
	}
	if str := configs.First[string](loader, "unpack_prevention"); str != "" {
		prevention, err := overrides.ParseUnpackPrevention(str)
		if err != nil {
			panic(fmt.Errorf("bad unpack prevention config: %w", err))
		}
		s.UnpackPrevention = prevention
	}
	return s
}

// NewSandbox creates a sandbox for a coding step with its own file requirements.
type NewSandbox func(requirements Requirements) *Sandbox

func (Module) NewSandbox(
	settings Settings,
	logger logs.Logger,
	inProcess sandboxconfigs.InProcess,
	maxParallel sandboxconfigs.MaxParallel,
) NewSandbox {
	sem := syncs.NewSemaphore(int(maxParallel))
	return func(requirements Requirements) *Sandbox {
		s := New(settings, logger)
		s.Settings.Requirements = requirements
		s.Process = !bool(inProcess)
		s.Semaphore = sem
		return s
	}
}
