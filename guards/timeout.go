package guards

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/reusee/scisandbox/issues"
	"go.starlark.net/starlark"
)

// TimeoutGuard cancels the run thread once the wall-clock budget is spent.
type TimeoutGuard struct {
	Timeout  time.Duration
	TimedOut bool
	// Backtrace is the stack of submitted code sampled when the budget ran out.
	Backtrace string

	mu     sync.Mutex
	timer  *time.Timer
	done   chan struct{}
	thread *starlark.Thread
}

var _ Guard = new(TimeoutGuard)

func (t *TimeoutGuard) GuardName() string {
	return "timeout"
}

const timeoutKey = "guards.timeout"

func (t *TimeoutGuard) Enter(env *Env) error {
	if t.Timeout <= 0 {
		return fmt.Errorf("bad timeout: %s", t.Timeout)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = make(chan struct{})
	t.thread = env.Thread
	t.TimedOut = false
	t.Backtrace = ""
	env.Thread.SetLocal(timeoutKey, t)
	t.timer = time.AfterFunc(t.Timeout, t.Expire)
	return nil
}

// Expire ends the budget now.
func (t *TimeoutGuard) Expire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.TimedOut || t.done == nil {
		return
	}
	t.TimedOut = true
	close(t.done)
	t.thread.Cancel((&TimeoutError{Timeout: t.Timeout}).Error())
}

func (t *TimeoutGuard) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.TimedOut
}

// Sample keeps the backtrace carried by err, the error the cancelled thread returned.
func (t *TimeoutGuard) Sample(err error) {
	var evalErr *starlark.EvalError
	if !errors.As(err, &evalErr) {
		return
	}
	var b strings.Builder
	for _, frame := range evalErr.CallStack {
		fmt.Fprintf(&b, "%s: in %s\n", frame.Pos, frame.Name)
	}
	t.mu.Lock()
	t.Backtrace = b.String()
	t.mu.Unlock()
}

func (t *TimeoutGuard) Exit(env *Env) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if !t.TimedOut && t.done != nil {
		close(t.done)
	}
	t.done = nil
	t.thread = nil
	env.Thread.SetLocal(timeoutKey, nil)
	return nil
}

func (t *TimeoutGuard) Issues() []issues.Issue {
	return nil
}

// Done returns a channel closed when the budget of the thread's run is spent, or nil without a budget.
func Done(thread *starlark.Thread) <-chan struct{} {
	t, _ := thread.Local(timeoutKey).(*TimeoutGuard)
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Sleep pauses the run, returning early with a TimeoutError when the budget runs out.
func Sleep(thread *starlark.Thread, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	done := Done(thread)
	select {
	case <-timer.C:
		return nil
	case <-done:
		t, _ := thread.Local(timeoutKey).(*TimeoutGuard)
		return &TimeoutError{Timeout: t.Timeout}
	}
}
