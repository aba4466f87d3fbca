package guards

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/reusee/scisandbox/issues"
)

// Guard is one constraint applied around a run.
// Exported fields are the guard's configuration and what it recorded; they must be gob-encodable.
type Guard interface {
	GuardName() string
	Enter(env *Env) error
	Exit(env *Env) error
	Issues() []issues.Issue
}

// Stack enters guards in order and exits the entered ones in reverse order.
type Stack []Guard

// Run calls fn inside every guard. The returned error is about the guards themselves;
// fn reports failures of the guarded code on its own.
// Every entered guard is exited, also when fn panics.
func (s Stack) Run(env *Env, fn func()) (err error) {
	entered := 0
	defer func() {
		for i := entered - 1; i >= 0; i-- {
			if e := s[i].Exit(env); e != nil {
				err = errors.Join(err, fmt.Errorf("exit %s: %w", s[i].GuardName(), e))
			}
		}
	}()
	for _, g := range s {
		if err := g.Enter(env); err != nil {
			return fmt.Errorf("enter %s: %w", g.GuardName(), err)
		}
		entered++
	}
	fn()
	return nil
}

func (s Stack) Issues() []issues.Issue {
	var ret []issues.Issue
	for _, g := range s {
		ret = append(ret, g.Issues()...)
	}
	return ret
}

// Find returns the first guard of type T.
func Find[T Guard](s Stack) (T, bool) {
	for _, g := range s {
		if t, ok := g.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

type encodedStack struct {
	Guards []Guard
}

// Encode serializes the guards after a run. Guards holding state that cannot cross a
// process boundary make it fail.
func Encode(s Stack) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(encodedStack{Guards: s}); err != nil {
		return nil, fmt.Errorf("encode guards: %w", err)
	}
	return buf.Bytes(), nil
}

func Decode(data []byte) (Stack, error) {
	var e encodedStack
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return nil, fmt.Errorf("decode guards: %w", err)
	}
	return e.Guards, nil
}

func init() {
	gob.Register(new(CallGuard))
	gob.Register(new(ImportGuard))
	gob.Register(new(FileGuard))
	gob.Register(new(WarningGuard))
	gob.Register(new(TimeoutGuard))
	gob.Register(new(ChdirGuard))
}
