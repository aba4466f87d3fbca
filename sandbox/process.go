package sandbox

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/reusee/scisandbox/guards"
	"github.com/reusee/scisandbox/logs"
)

// ChildEnv names the environment variable that makes a process serve one run.
// Its value is the directory the request and response are exchanged in.
const ChildEnv = "SCISANDBOX_CHILD"

const (
	requestFile  = "request.gob"
	responseFile = "response.gob"
	// childGrace is how long the parent waits past the timeout before each escalation
	childGrace = time.Second
	// maxStderr bounds the child output kept for diagnostics
	maxStderr = 64 << 10
)

type request struct {
	Settings Settings
	Code     string
}

type response struct {
	Outcome *Outcome
	// Guards are the encoded guards after the run.
	Guards []byte
	// Err is an internal failure of the child.
	Err string
}

func writeGob(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(); e != nil {
			err = errors.Join(err, e)
		}
	}()
	return gob.NewEncoder(f).Encode(v)
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}

// tailBuffer keeps the last bytes written to it.
type tailBuffer struct {
	bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n, err := t.Buffer.Write(p)
	if over := t.Len() - maxStderr; over > 0 {
		t.Next(over)
	}
	return n, err
}

// runProcess runs code in a child process and waits for it at most the timeout plus some grace.
// A child that does not stop is interrupted, asked to dump its stacks, then killed.
func (s *Sandbox) runProcess(ctx context.Context, settings Settings, code string) (*Outcome, error) {
	logger := s.logger()
	dir := settings.Dir

	before, err := takeSnapshot(dir)
	if err != nil {
		return nil, err
	}

	exchange, err := os.MkdirTemp("", "scisandbox-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(exchange)
	if err := writeGob(filepath.Join(exchange, requestFile), request{
		Settings: settings,
		Code:     code,
	}); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	executable := s.Executable
	if executable == "" {
		executable, err = os.Executable()
		if err != nil {
			return nil, err
		}
	}
	cmd := exec.Command(executable)
	cmd.Env = append(os.Environ(), ChildEnv+"="+exchange)
	stderr := new(tailBuffer)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start child: %w", err)
	}
	if err := s.transit(StateRunning); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	logger.DebugContext(ctx, "child started", "pid", cmd.Process.Pid)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()
	escalate := func(signal func() error) bool {
		if err := signal(); err != nil {
			logger.WarnContext(ctx, "signal child", "error", err)
		}
		select {
		case <-done:
			return true
		case <-time.After(childGrace):
			return false
		}
	}

	timer := time.NewTimer(settings.Timeout + childGrace)
	defer timer.Stop()
	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return nil, context.Cause(ctx)
	case <-timer.C:
		if !escalate(func() error { return interrupt(cmd.Process) }) {
			if !escalate(func() error { return dumpStacks(cmd.Process) }) {
				_ = cmd.Process.Kill()
				<-done
			}
			// the child did not report, so its files are cleaned here
			created, err := before.created(dir)
			if err != nil {
				return nil, err
			}
			if err := removeCreated(dir, before, created); err != nil {
				return nil, err
			}
			if err := os.WriteFile(filepath.Join(dir, ModuleFile), []byte(placeholder), 0644); err != nil {
				return nil, err
			}
			return &Outcome{
				Code: code,
				Failure: &Failure{
					Kind:      FailureTimeout,
					Message:   (&guards.TimeoutError{Timeout: settings.Timeout}).Error(),
					Backtrace: stderr.String(),
				},
			}, nil
		}
	}

	var resp response
	if err := readGob(filepath.Join(exchange, responseFile), &resp); err != nil {
		return nil, fmt.Errorf("child exited without response: %w: %v\n%s", err, waitErr, stderr.String())
	}
	if resp.Err != "" {
		return nil, fmt.Errorf("child: %s", resp.Err)
	}
	stack, err := guards.Decode(resp.Guards)
	if err != nil {
		return nil, err
	}
	outcome := resp.Outcome
	if t, ok := guards.Find[*guards.TimeoutGuard](stack); ok && t.TimedOut &&
		outcome.Failure != nil && outcome.Failure.Backtrace == "" {
		outcome.Failure.Backtrace = t.Backtrace
	}
	return outcome, nil
}

// ServeChild runs the request of the parent when the process was started as a sandbox child.
// It reports whether it did; the caller should exit afterwards.
func ServeChild(ctx context.Context, logger logs.Logger) (bool, error) {
	exchange := os.Getenv(ChildEnv)
	if exchange == "" {
		return false, nil
	}
	resp := serve(ctx, logger, exchange)
	if err := writeGob(filepath.Join(exchange, responseFile), resp); err != nil {
		return true, fmt.Errorf("write response: %w", err)
	}
	if resp.Err != "" {
		return true, errors.New(resp.Err)
	}
	return true, nil
}

func serve(ctx context.Context, logger logs.Logger, exchange string) (resp response) {
	var req request
	if err := readGob(filepath.Join(exchange, requestFile), &req); err != nil {
		resp.Err = fmt.Sprintf("read request: %v", err)
		return
	}
	if err := guards.Landlock(logger, req.Settings.Dir, exchange); err != nil {
		resp.Err = fmt.Sprintf("landlock: %v", err)
		return
	}

	var timeout atomic.Pointer[guards.TimeoutGuard]
	stop := notifyAlarm(func() {
		if t := timeout.Load(); t != nil {
			t.Expire()
		}
	})
	defer stop()

	s := &Sandbox{
		Settings: req.Settings,
		Logger:   logger,
		prepared: func(stack guards.Stack) {
			if t, ok := guards.Find[*guards.TimeoutGuard](stack); ok {
				timeout.Store(t)
			}
		},
	}
	if _, err := s.load(); err != nil {
		resp.Err = err.Error()
		return
	}
	outcome, stack, err := s.execute(ctx, req.Settings, req.Code)
	if err != nil {
		resp.Err = err.Error()
		return
	}
	data, err := guards.Encode(stack)
	if err != nil {
		// guard state that cannot cross the boundary is a bug
		resp.Err = err.Error()
		return
	}
	resp.Outcome = outcome
	resp.Guards = data
	return
}
