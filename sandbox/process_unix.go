//go:build unix

package sandbox

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// interrupt asks the child to expire its timeout.
func interrupt(p *os.Process) error {
	return p.Signal(unix.SIGALRM)
}

// dumpStacks makes the Go runtime of the child print every goroutine and exit.
func dumpStacks(p *os.Process) error {
	return p.Signal(unix.SIGQUIT)
}

func notifyAlarm(fn func()) (stop func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, unix.SIGALRM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-c:
				fn()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(c)
		close(done)
	}
}
