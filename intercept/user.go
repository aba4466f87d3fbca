package intercept

import "go.starlark.net/starlark"

const userFileKey = "intercept.user_file"

// MarkUserFile records the filename of submitted code on the thread.
func MarkUserFile(thread *starlark.Thread, filename string) {
	thread.SetLocal(userFileKey, filename)
}

func UserFile(thread *starlark.Thread) string {
	if thread == nil {
		return ""
	}
	s, _ := thread.Local(userFileKey).(string)
	return s
}

// CalledFromUser reports whether the innermost builtin was called directly from submitted code.
// Calls made by library code, including wrappers calling what they wrap, report false.
func CalledFromUser(thread *starlark.Thread) bool {
	file := UserFile(thread)
	if file == "" {
		return false
	}
	if thread.CallStackDepth() < 2 {
		return false
	}
	return thread.CallFrame(1).Pos.Filename() == file
}

// InUserCode reports whether submitted code is anywhere on the call stack.
func InUserCode(thread *starlark.Thread) bool {
	file := UserFile(thread)
	if file == "" {
		return false
	}
	for i := range thread.CallStackDepth() {
		if thread.CallFrame(i).Pos.Filename() == file {
			return true
		}
	}
	return false
}

// LoadedFromUser reports whether the load being resolved was requested by a load statement of submitted code.
func LoadedFromUser(thread *starlark.Thread) bool {
	file := UserFile(thread)
	if file == "" || thread.CallStackDepth() < 1 {
		return false
	}
	return thread.CallFrame(0).Pos.Filename() == file
}
