package pvalues

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"go.starlark.net/starlark"
)

type Mode uint8

const (
	ModeRaise Mode = iota
	ModeFloat
	ModeSmallerThan
	ModeEpsilon
	ModeVerbatim
	ModeDebug
)

func (m Mode) String() string {
	switch m {
	case ModeRaise:
		return "raise"
	case ModeFloat:
		return "float"
	case ModeSmallerThan:
		return "smaller-than"
	case ModeEpsilon:
		return "epsilon"
	case ModeVerbatim:
		return "verbatim"
	case ModeDebug:
		return "debug"
	}
	return fmt.Sprintf("mode(%d)", m)
}

const (
	DefaultMinThreshold = 1e-6
	DefaultEpsilon      = 1e-6
)

// Display is the scoped rendering mode of one run.
// The mode can only be changed for the extent of With.
type Display struct {
	MinThreshold float64
	Epsilon      float64

	mu        sync.Mutex
	stack     []Mode
	thread    *starlark.Thread
	violation error
}

func NewDisplay() *Display {
	return &Display{
		MinThreshold: DefaultMinThreshold,
		Epsilon:      DefaultEpsilon,
	}
}

const threadKey = "pvalues.display"

// Bind attaches the display to a thread. A violation in raise mode cancels the thread.
func (d *Display) Bind(thread *starlark.Thread) {
	d.mu.Lock()
	d.thread = thread
	d.mu.Unlock()
	thread.SetLocal(threadKey, d)
}

func FromThread(thread *starlark.Thread) *Display {
	if thread == nil {
		return nil
	}
	d, _ := thread.Local(threadKey).(*Display)
	return d
}

func (d *Display) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.stack) == 0 {
		return ModeRaise
	}
	return d.stack[len(d.stack)-1]
}

// With runs fn with mode active and restores the previous mode afterwards, even on panic.
func (d *Display) With(mode Mode, fn func()) {
	d.mu.Lock()
	d.stack = append(d.stack, mode)
	depth := len(d.stack)
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.stack = d.stack[:depth-1]
		d.mu.Unlock()
	}()
	fn()
}

func (d *Display) Format(v PValue) (string, error) {
	switch mode := d.Mode(); mode {
	case ModeFloat:
		return formatG(v.Value), nil
	case ModeSmallerThan:
		if v.Value < d.MinThreshold {
			return "<" + strconv.FormatFloat(d.MinThreshold, 'g', -1, 64), nil
		}
		return formatG(v.Value), nil
	case ModeEpsilon:
		return formatG(math.Max(v.Value, d.Epsilon)), nil
	case ModeVerbatim:
		return v.verbatim(), nil
	case ModeDebug:
		return fmt.Sprintf("pvalue[%s]:%v", v.CreatedBy, v.Value), nil
	}
	return "", &OperationNotPermittedError{
		Op:        OpStr,
		CreatedBy: v.CreatedBy,
	}
}

func formatG(f float64) string {
	return strconv.FormatFloat(f, 'g', 3, 64)
}

func (d *Display) violate(err error) {
	d.mu.Lock()
	if d.violation == nil {
		d.violation = err
	}
	thread := d.thread
	d.mu.Unlock()
	if thread != nil {
		thread.Cancel(err.Error())
	}
}

// Violation returns the first forbidden rendering seen during the run.
func (d *Display) Violation() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.violation
}
