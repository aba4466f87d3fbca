package cmds

// Var defines a command that sets a value from its argument, and "name." that resets it.
func Var[T any](name string, desc ...string) *T {
	var value T
	Define(name, describe(Func(func(v T) {
		value = v
	}), desc))
	var zero T
	Define(name+".", Func(func() {
		value = zero
	}).Hide())
	return &value
}

// Switch defines a command that turns a flag on, and "!name" that turns it off.
func Switch(name string, desc ...string) *bool {
	var value bool
	Define(name, describe(Func(func() {
		value = true
	}), desc))
	Define("!"+name, Func(func() {
		value = false
	}).Hide())
	return &value
}

// Collect defines a command that may be repeated, appending each argument.
func Collect[T any](name string, desc ...string) *[]T {
	var value []T
	Define(name, describe(Func(func(v T) {
		value = append(value, v)
	}), desc))
	return &value
}

func describe(command *Command, desc []string) *Command {
	if len(desc) > 0 {
		command.Desc(desc[0])
	}
	return command
}
