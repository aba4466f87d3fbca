package modes

import (
	"testing"

	"github.com/reusee/dscope"
)

func TestModes(t *testing.T) {
	for _, c := range []struct {
		module       any
		mode         Mode
		outOfProcess bool
		hasT         bool
	}{
		{ForProduction(), ModeProduction, true, false},
		{ForTest(t), ModeDevelopment, false, true},
	} {
		dscope.New(c.module).Call(func(
			got *testing.T,
			mode Mode,
		) {
			if mode != c.mode {
				t.Fatalf("got %v", mode)
			}
			if mode.OutOfProcess() != c.outOfProcess {
				t.Fatalf("%v: got %v", mode, mode.OutOfProcess())
			}
			if (got != nil) != c.hasT {
				t.Fatalf("%v: got %v", mode, got)
			}
		})
	}
	if Mode(0).String() != "unknown" {
		t.Fatal()
	}
}
