package intercept

import "go.starlark.net/starlark"

const abortKey = "intercept.abort"

// Abort cancels the run on thread with err as the reason.
// Used where the interpreter offers no error return, such as iteration.
func Abort(thread *starlark.Thread, err error) {
	if thread == nil {
		return
	}
	if _, ok := thread.Local(abortKey).(error); !ok {
		thread.SetLocal(abortKey, err)
	}
	thread.Cancel(err.Error())
}

// Aborted returns the first error passed to Abort on thread.
func Aborted(thread *starlark.Thread) error {
	if thread == nil {
		return nil
	}
	err, _ := thread.Local(abortKey).(error)
	return err
}
