package debugs

import (
	"context"
	"maps"
	"slices"

	"github.com/reusee/scisandbox/logs"
	"go.starlark.net/repl"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Tap opens a REPL over the globals left by a run.
type Tap func(ctx context.Context, what string, globals starlark.StringDict, extra map[string]any) error

func (Module) Tap(
	logger logs.Logger,
) Tap {
	return func(ctx context.Context, what string, globals starlark.StringDict, extra map[string]any) error {
		logger.InfoContext(ctx, "tap: "+what,
			"globals", slices.Sorted(maps.Keys(globals)),
		)
		defer func() {
			logger.InfoContext(ctx, "tap end: "+what)
		}()

		mappings := maps.Clone(globals)
		if mappings == nil {
			mappings = make(starlark.StringDict)
		}
		for name, value := range extra {
			v, err := ToValue(value)
			if err != nil {
				return err
			}
			mappings[name] = v
		}

		thread := &starlark.Thread{
			Name: "repl",
		}
		repl.REPLOptions(&syntax.FileOptions{
			Set:             true,
			While:           true,
			TopLevelControl: true,
			GlobalReassign:  true,
		}, thread, mappings)
		return nil
	}
}
