//go:build !linux

package guards

import "github.com/reusee/scisandbox/logs"

func Landlock(logger logs.Logger, dirs ...string) error {
	return nil
}
