//go:build !unix

package sandbox

import "os"

func interrupt(p *os.Process) error {
	return p.Kill()
}

func dumpStacks(p *os.Process) error {
	return nil
}

func notifyAlarm(fn func()) (stop func()) {
	return func() {}
}
