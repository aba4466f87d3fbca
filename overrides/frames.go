package overrides

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/guards"
	"github.com/reusee/scisandbox/intercept"
	"github.com/reusee/scisandbox/issues"
	"go.starlark.net/starlark"
)

type MutationPolicy uint8

const (
	AllowAlways MutationPolicy = iota + 1
	DenyAlways
	// AllowUnlessFromFile denies changing columns of frames loaded from a file.
	AllowUnlessFromFile
)

func ParseMutationPolicy(s string) (MutationPolicy, error) {
	switch s {
	case "allow":
		return AllowAlways, nil
	case "deny":
		return DenyAlways, nil
	case "allow-unless-from-file":
		return AllowUnlessFromFile, nil
	}
	return 0, fmt.Errorf("unknown mutation policy: %s", s)
}

type OperationKind uint8

const (
	Creation OperationKind = iota + 1
	ColumnAdded
	ColumnChanged
	ColumnRemoved
	SavedToFile
)

var operationKindNames = map[OperationKind]string{
	Creation:      "creation",
	ColumnAdded:   "column-added",
	ColumnChanged: "column-changed",
	ColumnRemoved: "column-removed",
	SavedToFile:   "saved-to-file",
}

func (o OperationKind) String() string {
	return operationKindNames[o]
}

type Operation struct {
	Kind    OperationKind
	FrameID uint64
	Column  string
	// Path is the source file of a creation or the target of a save.
	Path      string
	CreatedBy string
}

// FrameOverride tracks frame provenance and gates in-place column changes.
type FrameOverride struct {
	MutationPolicy       MutationPolicy
	EnforceSavingAltered bool
	// FloatDigits, when positive, is the number of significant digits to_string and to_csv render floats with.
	FloatDigits int

	Operations []Operation
	IssueList  issues.List

	uninstallers []*intercept.Uninstaller
}

var _ guards.Guard = new(FrameOverride)

func (o *FrameOverride) GuardName() string {
	return "frame-override"
}

// loaderPathParams are the parameter names loaders take their source path by.
var loaderPathParams = []string{"filepath_or_buffer", "io", "path_or_buf"}

func (o *FrameOverride) Enter(env *guards.Env) (err error) {
	lib := env.Frames
	defer func() {
		if err != nil {
			_ = intercept.RestoreAll(o.uninstallers)
			o.uninstallers = nil
		}
	}()

	install := func(table intercept.Table, name string, rule intercept.Rule) error {
		original, ok := table.Slot(name)
		if !ok {
			return fmt.Errorf("%s.%s: %w", table.TableName(), name, intercept.ErrSlotMissing)
		}
		u, err := env.Registry.Install(table, name, intercept.Wrapper(name, original, intercept.ScopeAll, rule))
		if err != nil {
			return err
		}
		o.uninstallers = append(o.uninstallers, u)
		return nil
	}

	class := lib.FrameClass
	for _, slot := range []struct {
		name string
		rule intercept.Rule
	}{
		{"__init__", o.init(class.Name())},
		{"__setitem__", o.setItem},
		{"__getitem__", o.getItem},
		{"__delitem__", o.delItem},
		{"to_string", o.formatted},
		{"to_csv", o.toCSV},
		{"to_pickle", o.toPickle},
	} {
		if err := install(class, slot.name, slot.rule); err != nil {
			return err
		}
	}
	for _, name := range frames.LoaderNames {
		if name == "read_pickle" {
			// read_pickle records its own path and keeps the saved provenance
			continue
		}
		if err := install(lib.Module, name, o.loader(name)); err != nil {
			return err
		}
	}
	return nil
}

func (o *FrameOverride) record(op Operation) {
	o.Operations = append(o.Operations, op)
}

func (o *FrameOverride) init(className string) intercept.Rule {
	return func(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		ret, err := starlark.Call(thread, original, args, kwargs)
		if err != nil {
			return nil, err
		}
		f, ok := args[0].(*frames.Frame)
		if !ok {
			return ret, nil
		}
		if f.CreatedBy == "" && thread.CallStackDepth() > 1 {
			// the frame below the wrapper is the constructing function
			if name := thread.CallFrame(1).Name; name != className {
				f.CreatedBy = name
			}
		}
		o.record(Operation{
			Kind:      Creation,
			FrameID:   f.ID,
			Path:      f.FilePath,
			CreatedBy: f.CreatedBy,
		})
		return ret, nil
	}
}

func (o *FrameOverride) loader(name string) intercept.Rule {
	return func(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		ret, err := starlark.Call(thread, original, args, kwargs)
		if err != nil {
			return nil, err
		}
		f, ok := ret.(*frames.Frame)
		if !ok {
			return ret, nil
		}
		f.CreatedBy = name
		f.FilePath = pathArg(args, kwargs, loaderPathParams)
		for i := len(o.Operations) - 1; i >= 0; i-- {
			op := &o.Operations[i]
			if op.Kind == Creation && op.FrameID == f.ID {
				op.Path = f.FilePath
				op.CreatedBy = name
				break
			}
		}
		return ret, nil
	}
}

func pathArg(args starlark.Tuple, kwargs []starlark.Tuple, names []string) string {
	if len(args) > 0 {
		if s, ok := starlark.AsString(args[0]); ok {
			return s
		}
		return ""
	}
	for _, kv := range kwargs {
		key, _ := starlark.AsString(kv[0])
		if slices.Contains(names, key) {
			s, _ := starlark.AsString(kv[1])
			return s
		}
	}
	return ""
}

type SeriesChangedError struct {
	Column   string
	FilePath string
}

func (s *SeriesChangedError) Error() string {
	if s.FilePath != "" {
		return fmt.Sprintf("changing the existing column %q of a dataframe loaded from %q is not allowed; add a new column with a new name instead", s.Column, s.FilePath)
	}
	return fmt.Sprintf("changing the existing column %q is not allowed; add a new column with a new name instead", s.Column)
}

func (o *FrameOverride) changeAllowed(f *frames.Frame) bool {
	switch o.MutationPolicy {
	case DenyAlways:
		return false
	case AllowUnlessFromFile:
		return f.FilePath == ""
	}
	return true
}

func (o *FrameOverride) setItem(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) < 2 {
		return starlark.Call(thread, original, args, kwargs)
	}
	f, ok := args[0].(*frames.Frame)
	if !ok {
		return starlark.Call(thread, original, args, kwargs)
	}
	column, _ := starlark.AsString(args[1])
	kind := ColumnAdded
	if f.HasColumn(column) {
		kind = ColumnChanged
		if !o.changeAllowed(f) {
			return nil, &SeriesChangedError{
				Column:   column,
				FilePath: f.FilePath,
			}
		}
	}
	ret, err := starlark.Call(thread, original, args, kwargs)
	if err != nil {
		return nil, err
	}
	o.record(Operation{
		Kind:    kind,
		FrameID: f.ID,
		Column:  column,
	})
	return ret, nil
}

type MissingColumnError struct {
	Key       string
	Available []string
}

func (m *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not found; available columns are: %s", m.Key, strings.Join(m.Available, ", "))
}

func (o *FrameOverride) getItem(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	ret, err := starlark.Call(thread, original, args, kwargs)
	var keyErr *frames.KeyError
	if errors.As(err, &keyErr) {
		missing := &MissingColumnError{
			Key: keyErr.Key,
		}
		if f, ok := args[0].(*frames.Frame); ok {
			missing.Available = f.Columns()
		}
		return nil, missing
	}
	return ret, err
}

func (o *FrameOverride) delItem(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	ret, err := starlark.Call(thread, original, args, kwargs)
	if err != nil {
		return nil, err
	}
	if f, ok := args[0].(*frames.Frame); ok && len(args) > 1 {
		column, _ := starlark.AsString(args[1])
		o.record(Operation{
			Kind:    ColumnRemoved,
			FrameID: f.ID,
			Column:  column,
		})
	}
	return ret, nil
}

func (o *FrameOverride) formatted(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (ret starlark.Value, err error) {
	if o.FloatDigits <= 0 {
		return starlark.Call(thread, original, args, kwargs)
	}
	err = frames.WithFloatDigits(thread, o.FloatDigits, func() error {
		ret, err = starlark.Call(thread, original, args, kwargs)
		return err
	})
	return
}

func (o *FrameOverride) saved(args starlark.Tuple, kwargs []starlark.Tuple, params []string) {
	f, ok := args[0].(*frames.Frame)
	if !ok {
		return
	}
	path := pathArg(args[1:], kwargs, params)
	if path == "" {
		return
	}
	o.record(Operation{
		Kind:    SavedToFile,
		FrameID: f.ID,
		Path:    path,
	})
}

func (o *FrameOverride) toCSV(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	ret, err := o.formatted(thread, original, args, kwargs)
	if err != nil {
		return nil, err
	}
	o.saved(args, kwargs, []string{"path_or_buf"})
	return ret, nil
}

func (o *FrameOverride) toPickle(thread *starlark.Thread, original starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	ret, err := starlark.Call(thread, original, args, kwargs)
	if err != nil {
		return nil, err
	}
	o.saved(args, kwargs, []string{"path"})
	return ret, nil
}

// Unsaved returns the ids of frames loaded from a file, changed, and not saved since.
func (o *FrameOverride) Unsaved() []uint64 {
	fromFile := make(map[uint64]string)
	dirty := make(map[uint64]bool)
	var order []uint64
	for _, op := range o.Operations {
		switch op.Kind {
		case Creation:
			if op.Path != "" {
				fromFile[op.FrameID] = op.Path
			}
		case ColumnAdded, ColumnChanged, ColumnRemoved:
			if _, ok := fromFile[op.FrameID]; ok && !dirty[op.FrameID] {
				dirty[op.FrameID] = true
				order = append(order, op.FrameID)
			}
		case SavedToFile:
			dirty[op.FrameID] = false
		}
	}
	var ret []uint64
	for _, id := range order {
		if dirty[id] && !slices.Contains(ret, id) {
			ret = append(ret, id)
		}
	}
	return ret
}

func (o *FrameOverride) Exit(env *guards.Env) error {
	err := intercept.RestoreAll(o.uninstallers)
	o.uninstallers = nil
	if o.EnforceSavingAltered {
		for _, id := range o.Unsaved() {
			path := ""
			for _, op := range o.Operations {
				if op.Kind == Creation && op.FrameID == id {
					path = op.Path
					break
				}
			}
			o.IssueList.AddIssue(issues.Issue{
				Category:     "Unsaved modified dataframe",
				Item:         path,
				IssueText:    fmt.Sprintf("The dataframe loaded from %q was modified but not saved to a file.", path),
				Instructions: "Save every dataframe you modify, or do not modify dataframes you do not save.",
				CodeProblem:  issues.CodeProblemOutputDesign,
			})
		}
	}
	return err
}

func (o *FrameOverride) Issues() []issues.Issue {
	return o.IssueList
}
