package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/reusee/dscope"
	"github.com/reusee/scisandbox/cmds"
	"github.com/reusee/scisandbox/codesources"
	"github.com/reusee/scisandbox/debugloop"
	"github.com/reusee/scisandbox/debugs"
	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/modes"
	"github.com/reusee/scisandbox/reviews"
	"github.com/reusee/scisandbox/runcache"
	"github.com/reusee/scisandbox/sandbox"
)

var (
	runFlag     = cmds.Var[string]("run", "run a code file and review it")
	solveFlag   = cmds.Var[string]("solve", "ask a model for code solving the task in a file")
	systemFlag  = cmds.Var[string]("-system", "file of the system prompt for solve")
	requireFlag = cmds.Collect[string]("-require", "require output files, as pattern or pattern=count")
	tapFlag     = cmds.Switch("-tap", "open a REPL over the globals after each run")
)

const (
	exitIssues   = 1
	exitInternal = 2
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// child processes get their work from the exchange directory, not arguments
	if os.Getenv(sandbox.ChildEnv) == "" {
		cmds.Execute(os.Args[1:])
	}

	scope := dscope.New(
		new(Module),
		modes.ForProduction(),
	)

	var code int
	scope.Call(func(
		logger logs.Logger,
	) {
		served, err := sandbox.ServeChild(ctx, logger)
		if served {
			if err != nil {
				logger.Error("child", "error", err)
				code = exitInternal
			}
			return
		}

		switch {
		case *runFlag != "":
			scope.Call(func(
				newSandbox sandbox.NewSandbox,
				engine *reviews.Engine,
				cache *runcache.Cache,
				tap debugs.Tap,
			) {
				code = run(ctx, newSandbox, engine, cache, tap, logger)
			})
		case *solveFlag != "":
			scope.Call(func(
				newLoop debugloop.NewLoop,
				source *codesources.OpenAI,
				cache *runcache.Cache,
				tap debugs.Tap,
			) {
				code = solve(ctx, newLoop, source, cache, tap, logger)
			})
		default:
			cmds.GlobalExecutor.PrintUsage()
		}
	})
	os.Exit(code)
}

func requirements() (sandbox.Requirements, error) {
	var reqs sandbox.Requirements
	for _, spec := range *requireFlag {
		req, err := parseRequirement(spec)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func prepare(s *sandbox.Sandbox, cache *runcache.Cache, tap debugs.Tap) {
	s.Cache = cache
	if *tapFlag {
		s.Process = false
		s.Tap = tap
	}
}

// run runs a code file once and reports its issues.
func run(
	ctx context.Context,
	newSandbox sandbox.NewSandbox,
	engine *reviews.Engine,
	cache *runcache.Cache,
	tap debugs.Tap,
	logger logs.Logger,
) int {
	defer cache.Close()

	src, err := os.ReadFile(*runFlag)
	if err != nil {
		logger.Error("read code", "error", err)
		return exitInternal
	}
	reqs, err := requirements()
	if err != nil {
		logger.Error("requirements", "error", err)
		return exitInternal
	}

	s := newSandbox(reqs)
	prepare(s, cache, tap)
	outcome, err := s.Run(ctx, string(src))
	if err != nil {
		logger.Error("run", "error", err)
		return exitInternal
	}
	list, err := engine.Check(ctx, outcome, reqs, nil)
	if err != nil {
		logger.Error("review", "error", err)
		return exitInternal
	}

	if err := newReport(outcome, list).Write(os.Stdout); err != nil {
		logger.Error("report", "error", err)
		return exitInternal
	}
	if issues.AnyBlocking(list) {
		return exitIssues
	}
	return 0
}

// solve asks a model for code until it runs cleanly.
func solve(
	ctx context.Context,
	newLoop debugloop.NewLoop,
	source *codesources.OpenAI,
	cache *runcache.Cache,
	tap debugs.Tap,
	logger logs.Logger,
) int {
	defer cache.Close()

	task, err := os.ReadFile(*solveFlag)
	if err != nil {
		logger.Error("read task", "error", err)
		return exitInternal
	}
	var system string
	if *systemFlag != "" {
		content, err := os.ReadFile(*systemFlag)
		if err != nil {
			logger.Error("read system prompt", "error", err)
			return exitInternal
		}
		system = string(content)
	}
	reqs, err := requirements()
	if err != nil {
		logger.Error("requirements", "error", err)
		return exitInternal
	}

	prompt := codesources.NewPrompt(system, string(task))
	loop, _ := newLoop(source, prompt, reqs)
	if s, ok := loop.Runner.(*sandbox.Sandbox); ok {
		prepare(s, cache, tap)
	}

	result, err := loop.Run(ctx, prompt)
	var giveUp *debugloop.GiveUpError
	if errors.As(err, &giveUp) {
		report := Report{
			Summary: giveUp.Summary(),
		}
		if n := len(giveUp.Attempts); n > 0 {
			last := giveUp.Attempts[n-1]
			if last.Outcome != nil {
				report = newReport(last.Outcome, last.Issues)
				report.Summary = giveUp.Summary()
			}
			report.Code = last.Code
		}
		if err := report.Write(os.Stdout); err != nil {
			logger.Error("report", "error", err)
		}
		return exitIssues
	} else if err != nil {
		logger.Error("solve", "error", err)
		return exitInternal
	}

	report := newReport(result.Outcome, result.Attempts[len(result.Attempts)-1].Issues)
	report.Summary = result.Summary()
	report.Code = result.Code
	if err := report.Write(os.Stdout); err != nil {
		logger.Error("report", "error", err)
		return exitInternal
	}
	return 0
}
