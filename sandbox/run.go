package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"github.com/reusee/scisandbox/debugs"
	"github.com/reusee/scisandbox/guards"
	"github.com/reusee/scisandbox/intercept"
	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/overrides"
	"github.com/reusee/scisandbox/pvalues"
	"github.com/reusee/scisandbox/syncs"
	"go.starlark.net/starlark"
)

// Cache replays outcomes of earlier runs.
type Cache interface {
	Get(ctx context.Context, key string) (*Outcome, bool, error)
	Put(ctx context.Context, key string, outcome *Outcome) error
}

// Sandbox runs submitted code in one run directory.
type Sandbox struct {
	Settings Settings
	Logger   logs.Logger
	// Process runs each attempt in a child process.
	Process bool
	// Executable is the child binary. It defaults to the running one.
	Executable string
	Cache      Cache
	// Semaphore bounds concurrent runs across sandboxes.
	Semaphore syncs.Semaphore
	// Tap, when set, is called with the globals of each in-process run.
	Tap debugs.Tap

	mu      sync.Mutex
	state   State
	reloads int

	// prepared sees the guards of a run before they are entered
	prepared func(guards.Stack)
}

func New(settings Settings, logger logs.Logger) *Sandbox {
	return &Sandbox{
		Settings: settings,
		Logger:   logger,
	}
}

func (s *Sandbox) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sandbox) transit(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanTransit(to) {
		return fmt.Errorf("bad state transition: %s -> %s", s.state, to)
	}
	s.state = to
	return nil
}

// load moves to the loaded state and returns how many times code has been loaded.
func (s *Sandbox) load() (int, error) {
	if err := s.transit(StateLoaded); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
	return s.reloads, nil
}

func (s *Sandbox) logger() logs.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// runs in the same directory are serialized
var dirLocks sync.Map

func dirLock(dir string) *sync.Mutex {
	v, _ := dirLocks.LoadOrStore(dir, new(sync.Mutex))
	return v.(*sync.Mutex)
}

// Run executes code and reports what it did. Failures of the code are part of the Outcome;
// the returned error is about the sandbox itself.
func (s *Sandbox) Run(ctx context.Context, code string) (outcome *Outcome, err error) {
	settings := s.Settings
	dir, err := filepath.Abs(settings.Dir)
	if err != nil {
		return nil, err
	}
	settings.Dir = dir

	lock := dirLock(dir)
	lock.Lock()
	defer lock.Unlock()
	if err := s.Semaphore.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.Semaphore.Release()

	ctx = logs.With(ctx, "dir", dir)
	logger := s.logger()

	var key string
	if s.Cache != nil {
		key, err = CacheKey(code, settings)
		if err != nil {
			return nil, err
		}
		cached, ok, err := s.Cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := replay(dir, cached); err != nil {
				return nil, err
			}
			logger.InfoContext(ctx, "replay cached run",
				"id", cached.ID,
				"files", cached.CreatedFiles,
			)
			return cached, nil
		}
	}

	reloads, err := s.load()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = s.transit(StateFailed)
		}
	}()

	if s.Process {
		outcome, err = s.runProcess(ctx, settings, code)
	} else {
		outcome, _, err = s.execute(ctx, settings, code)
	}
	if err != nil {
		return nil, err
	}
	outcome.Reloads = reloads
	if err := s.transit(endState(outcome)); err != nil {
		return nil, err
	}

	if outcome.Failure != nil {
		logger.InfoContext(ctx, "run failed",
			"id", outcome.ID,
			"kind", outcome.Failure.Kind,
			"message", outcome.Failure.Message,
		)
	} else {
		logger.InfoContext(ctx, "run completed",
			"id", outcome.ID,
			"files", outcome.CreatedFiles,
			"issues", len(outcome.Issues),
		)
	}

	if s.Cache != nil {
		if err := s.Cache.Put(ctx, key, outcome); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// replay recreates the files of a cached outcome in dir.
func replay(dir string, outcome *Outcome) error {
	for _, name := range outcome.CreatedFiles {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, outcome.Files[name], 0644); err != nil {
			return err
		}
	}
	return nil
}

// execute runs code on a goroutine of this process inside the guards of the settings.
func (s *Sandbox) execute(ctx context.Context, settings Settings, code string) (_ *Outcome, _ guards.Stack, err error) {
	dir := settings.Dir
	outcome := &Outcome{
		ID:   uuid.NewString(),
		Code: code,
	}

	before, err := takeSnapshot(dir)
	if err != nil {
		return nil, nil, err
	}

	modulePath := filepath.Join(dir, ModuleFile)
	if err := os.WriteFile(modulePath, []byte(code), 0644); err != nil {
		return nil, nil, err
	}
	defer func() {
		// stale code must not run again
		if e := os.WriteFile(modulePath, []byte(placeholder), 0644); e != nil {
			err = errors.Join(err, e)
		}
	}()
	src, err := os.ReadFile(modulePath)
	if err != nil {
		return nil, nil, err
	}

	rt := newRuntime(settings, s.logger())
	thread := rt.env.Thread
	stack := settings.Stack()
	if s.prepared != nil {
		s.prepared(stack)
	}
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	defer stop()

	if err := s.transit(StateRunning); err != nil {
		return nil, nil, err
	}
	var setupErr, runErr error
	var globals starlark.StringDict
	guardErr := stack.Run(rt.env, func() {
		defer func() {
			if p := recover(); p != nil {
				setupErr = fmt.Errorf("panic in sandboxed run: %v\n%s", p, debug.Stack())
			}
		}()
		if setupErr = rt.preload(); setupErr != nil {
			setupErr = fmt.Errorf("preload: %w", setupErr)
			return
		}
		intercept.MarkUserFile(thread, ModuleFile)
		globals, runErr = rt.exec(src)
	})
	if err := errors.Join(guardErr, setupErr, context.Cause(ctx)); err != nil {
		created, e := before.created(dir)
		if e == nil {
			e = removeCreated(dir, before, created)
		}
		return nil, nil, errors.Join(err, e)
	}

	outcome.Output = rt.Output()
	outcome.Failure = classify(rt, stack, runErr)

	created, err := before.created(dir)
	if err != nil {
		return nil, nil, err
	}
	if outcome.Failure == nil {
		outcome.Failure = checkCreated(settings, created)
	}
	if outcome.Failure != nil {
		if err := removeCreated(dir, before, created); err != nil {
			return nil, nil, err
		}
	} else {
		outcome.CreatedFiles = created
		outcome.Files, outcome.FileSizes, err = readCreated(dir, created)
		if err != nil {
			return nil, nil, err
		}
	}

	outcome.Issues = stack.Issues()
	outcome.Artifacts = rt.artifacts.Artifacts()
	if o, ok := guards.Find[*overrides.FrameOverride](stack); ok {
		outcome.Operations = o.Operations
	}

	if s.Tap != nil {
		if err := s.Tap(ctx, outcome.ID, globals, map[string]any{
			"failure": outcome.Failure,
			"files":   outcome.CreatedFiles,
			"output":  outcome.Output,
		}); err != nil {
			return nil, nil, err
		}
	}

	return outcome, stack, nil
}

func (r *runtime) exec(src []byte) (starlark.StringDict, error) {
	f, err := FileOptions.Parse(ModuleFile, src, 0)
	if err != nil {
		return nil, err
	}
	pvalues.RewriteComparisons(f)
	predeclared := r.env.Builtins.Members()
	prog, err := starlark.FileProgram(f, predeclared.Has)
	if err != nil {
		return nil, err
	}
	return prog.Init(r.env.Thread, predeclared)
}

// classify turns the error of submitted code into a failure. Nil means the run succeeded.
func classify(rt *runtime, stack guards.Stack, err error) *Failure {
	if t, ok := guards.Find[*guards.TimeoutGuard](stack); ok && t.Expired() {
		t.Sample(err)
		return &Failure{
			Kind:      FailureTimeout,
			Message:   (&guards.TimeoutError{Timeout: t.Timeout}).Error(),
			Backtrace: t.Backtrace,
		}
	}
	if err == nil || errors.Is(err, errExit) {
		return nil
	}

	backtrace := backtraceOf(err)
	// cancellations carry their cause out of band
	if aborted := intercept.Aborted(rt.env.Thread); aborted != nil {
		err = aborted
	} else if violation := rt.env.Display.Violation(); violation != nil {
		err = violation
	}

	var callErr *guards.ForbiddenCallError
	if errors.As(err, &callErr) {
		return &Failure{
			Kind:      FailureForbiddenFunctionCall,
			Message:   callErr.Error(),
			Backtrace: backtrace,
		}
	}
	var importErr *guards.ForbiddenImportError
	if errors.As(err, &importErr) {
		return &Failure{
			Kind:      FailureForbiddenImport,
			Message:   importErr.Error(),
			Backtrace: backtrace,
		}
	}
	var fileErr *guards.ForbiddenFileAccessError
	if errors.As(err, &fileErr) {
		return &Failure{
			Kind:      FailureForbiddenFileAccess,
			Message:   fileErr.Error(),
			Backtrace: backtrace,
			Files:     []string{fileErr.Path},
		}
	}
	if list := runIssues(err); len(list) > 0 {
		return &Failure{
			Kind:      FailureRunIssue,
			Message:   err.Error(),
			Backtrace: backtrace,
			Issues:    list,
		}
	}
	return &Failure{
		Kind:      FailureUnexpectedException,
		Message:   err.Error(),
		Backtrace: backtrace,
	}
}

func backtraceOf(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Backtrace()
	}
	return ""
}
