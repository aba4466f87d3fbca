package sandbox

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/reusee/scisandbox/artifacts"
	"github.com/reusee/scisandbox/debugs"
	"github.com/reusee/scisandbox/files"
	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/guards"
	"github.com/reusee/scisandbox/intercept"
	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/pvalues"
	"github.com/reusee/scisandbox/stats"
	"github.com/reusee/scisandbox/warnings"
	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// FileOptions are the dialect options submitted code is parsed with.
var FileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// HelpersModule is the trusted module of helper functions submitted code may load.
const HelpersModule = "helpers"

const helpersFile = "helpers.star"

//go:embed helpers.star
var helpersSource string

var errExit = errors.New("exit() called")

// runtime is what one run of submitted code sees: fresh library instances, builtins and a loader.
type runtime struct {
	env       *guards.Env
	artifacts *artifacts.Library
	// str renders values for print, honoring the display mode of p-values
	str starlark.Value

	mu     sync.Mutex
	output strings.Builder
	loaded map[string]*loadEntry
}

type loadEntry struct {
	globals starlark.StringDict
	err     error
}

func newRuntime(settings Settings, logger logs.Logger) *runtime {
	r := &runtime{
		loaded: make(map[string]*loadEntry),
	}

	thread := &starlark.Thread{
		Name: "sandbox",
		Load: r.load,
	}
	registry := intercept.NewRegistry()
	registry.Bind(thread)
	display := pvalues.NewDisplay()
	display.Bind(thread)

	frameLib := frames.New()
	statsLib := stats.New(frameLib)
	r.artifacts = artifacts.New(settings.Digits)

	modules := map[string]starlark.Value{
		frames.ModuleName:    frameLib.Module,
		artifacts.ModuleName: r.artifacts.Module,
		"math":               starlarkmath.Module,
		"json":               starlarkjson.Module,
		"time":               timeModule(),
		"os":                 osModule(),
	}
	for name, module := range statsLib.Modules() {
		modules[name] = module
	}

	members := starlark.StringDict{
		"print": starlark.NewBuiltin("print", r.print),
		"input": starlark.NewBuiltin("input", input),
		"exit":  starlark.NewBuiltin("exit", exit),
		"eval":  starlark.NewBuiltin("eval", r.eval),
		"warn":  warnings.Builtin(),
		"pd":    frameLib.Module,
		"sm":    statsLib.Models,
		"stats": statsLib.Tests,
		"utils": r.artifacts.Module,
	}
	for name, value := range pvalues.Builtins() {
		members[name] = value
	}
	r.str = members["str"]

	r.env = &guards.Env{
		Thread:   thread,
		Registry: registry,
		Builtins: intercept.NewDict("builtins", members),
		Modules:  modules,
		Frames:   frameLib,
		Stats:    statsLib,
		Display:  display,
		Dir:      settings.Dir,
		Logger:   logger,
	}
	return r
}

func (r *runtime) Output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output.String()
}

func (r *runtime) print(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	sep := " "
	if err := starlark.UnpackArgs(fn.Name(), nil, kwargs, "sep?", &sep); err != nil {
		return nil, err
	}
	var b strings.Builder
	for i, arg := range args {
		if i > 0 {
			b.WriteString(sep)
		}
		if s, ok := starlark.AsString(arg); ok {
			b.WriteString(s)
			continue
		}
		v, err := starlark.Call(thread, r.str, starlark.Tuple{arg}, nil)
		if err != nil {
			return nil, err
		}
		s, _ := starlark.AsString(v)
		b.WriteString(s)
	}
	b.WriteByte('\n')
	r.mu.Lock()
	r.output.WriteString(b.String())
	r.mu.Unlock()
	return starlark.None, nil
}

func input(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return nil, fmt.Errorf("%s: code runs unattended and cannot read input", fn.Name())
}

func exit(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return nil, errExit
}

func (r *runtime) eval(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var src string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &src); err != nil {
		return nil, err
	}
	return starlark.EvalOptions(FileOptions, thread, "<eval>", src, r.env.Builtins.Members())
}

// load resolves load statements. Loads requested by submitted code pass the import checks of the guards first.
func (r *runtime) load(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	if err := r.env.CheckImport(thread, module); err != nil {
		return nil, err
	}
	if entry, ok := r.loaded[module]; ok {
		if entry == nil {
			return nil, fmt.Errorf("cycle in load graph: %s", module)
		}
		return entry.globals, entry.err
	}
	r.loaded[module] = nil

	var globals starlark.StringDict
	err := guards.WithLoading(thread, func() (err error) {
		if module == HelpersModule {
			globals, err = starlark.ExecFileOptions(FileOptions, thread, helpersFile, helpersSource, nil)
			return err
		}
		value, err := r.env.ResolveModule(module)
		if err != nil {
			return err
		}
		globals, err = exports(module, value)
		return err
	})
	r.loaded[module] = &loadEntry{
		globals: globals,
		err:     err,
	}
	return globals, err
}

// preload loads the trusted helpers during setup, inside the guards.
func (r *runtime) preload() error {
	_, err := r.load(r.env.Thread, HelpersModule)
	return err
}

// exports are the names a load statement can bind: the members of the module, and the module itself by its last path element.
func exports(path string, value starlark.Value) (starlark.StringDict, error) {
	ret := starlark.StringDict{
		path[strings.LastIndex(path, ".")+1:]: value,
	}
	holder, ok := value.(starlark.HasAttrs)
	if !ok {
		return ret, nil
	}
	for _, name := range holder.AttrNames() {
		member, err := holder.Attr(name)
		if err != nil {
			return nil, err
		}
		if member != nil {
			ret[name] = member
		}
	}
	return ret, nil
}

func timeModule() *intercept.Module {
	start := time.Now()
	return intercept.NewModule("time", "Time access and sleeping.", starlark.StringDict{
		"sleep": intercept.NewFunc("sleep", "Pause for the given number of seconds.", func(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var seconds starlark.Value
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &seconds); err != nil {
				return nil, err
			}
			f, ok := starlark.AsFloat(seconds)
			if !ok || f < 0 {
				return nil, fmt.Errorf("%s: want non-negative number, got %s", fn.Name(), seconds.Type())
			}
			if err := guards.Sleep(thread, time.Duration(f*float64(time.Second))); err != nil {
				return nil, err
			}
			return starlark.None, nil
		}),
		"time": intercept.NewFunc("time", "Seconds since the epoch.", func(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			return starlark.Float(float64(time.Now().UnixNano()) / 1e9), nil
		}),
		"perf_counter": intercept.NewFunc("perf_counter", "Monotonic seconds for measuring durations.", func(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			return starlark.Float(time.Since(start).Seconds()), nil
		}),
	})
}

func osModule() *intercept.Module {
	stringFunc := func(name string, doc string, fn func(thread *starlark.Thread, arg string) (any, error)) *intercept.Func {
		return intercept.NewFunc(name, doc, func(thread *starlark.Thread, f *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var arg string
			if err := starlark.UnpackPositionalArgs(f.Name(), args, kwargs, 1, &arg); err != nil {
				return nil, err
			}
			ret, err := fn(thread, arg)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name(), err)
			}
			return debugs.ToValue(ret)
		})
	}

	path := intercept.NewModule("path", "Path name manipulation.", starlark.StringDict{
		"join": intercept.NewFunc("join", "Join path elements.", func(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if len(kwargs) > 0 {
				return nil, fmt.Errorf("%s: unexpected keyword arguments", fn.Name())
			}
			parts := make([]string, 0, len(args))
			for _, arg := range args {
				s, ok := starlark.AsString(arg)
				if !ok {
					return nil, fmt.Errorf("%s: want string, got %s", fn.Name(), arg.Type())
				}
				parts = append(parts, s)
			}
			return starlark.String(filepath.Join(parts...)), nil
		}),
		"exists": stringFunc("exists", "Whether the path exists.", func(thread *starlark.Thread, p string) (any, error) {
			return files.Exists(thread, p)
		}),
		"basename": stringFunc("basename", "Final element of the path.", func(thread *starlark.Thread, p string) (any, error) {
			return filepath.Base(p), nil
		}),
		"splitext": stringFunc("splitext", "Split the extension from the path.", func(thread *starlark.Thread, p string) (any, error) {
			ext := filepath.Ext(p)
			return starlark.Tuple{starlark.String(strings.TrimSuffix(p, ext)), starlark.String(ext)}, nil
		}),
	})

	return intercept.NewModule("os", "Operating system access.", starlark.StringDict{
		"path": path,
		"getcwd": intercept.NewFunc("getcwd", "Current working directory.", func(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			dir, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			return starlark.String(dir), nil
		}),
		"listdir": intercept.NewFunc("listdir", "Names in a directory, sorted.", func(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			dir := "."
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0, &dir); err != nil {
				return nil, err
			}
			names, err := files.ReadDir(thread, dir)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", fn.Name(), err)
			}
			return debugs.ToValue(names)
		}),
		"remove": stringFunc("remove", "Delete a file.", func(thread *starlark.Thread, p string) (any, error) {
			return nil, files.Remove(thread, p)
		}),
	})
}
