package frames

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/reusee/scisandbox/intercept"
	"go.starlark.net/starlark"
)

// ModuleName is the name submitted code loads the library by.
const ModuleName = "pandas"

// Library is one instance of the data library. Each run gets its own, so patches do not leak across runs.
type Library struct {
	Module      *intercept.Module
	FrameClass  *intercept.Class
	SeriesClass *intercept.Class

	nextID atomic.Uint64
}

func New() *Library {
	lib := new(Library)

	lib.FrameClass = intercept.NewClass("DataFrame", "Two-dimensional table with labeled columns.")
	lib.FrameClass.SetAlloc(func(thread *starlark.Thread) starlark.Value {
		return lib.alloc(thread)
	})
	for name, fn := range frameMethods(lib) {
		lib.FrameClass.Define(name, starlark.NewBuiltin(name, fn))
	}

	lib.SeriesClass = intercept.NewClass("Series", "One-dimensional labeled array.")
	lib.SeriesClass.SetAlloc(func(thread *starlark.Thread) starlark.Value {
		return &Series{lib: lib}
	})
	for name, fn := range seriesMethods(lib) {
		lib.SeriesClass.Define(name, starlark.NewBuiltin(name, fn))
	}

	lib.Module = intercept.NewModule(ModuleName, "Tabular data structures and IO.", starlark.StringDict{
		"DataFrame":   lib.FrameClass,
		"Series":      lib.SeriesClass,
		"read_csv":    starlark.NewBuiltin("read_csv", lib.readCSV),
		"read_excel":  starlark.NewBuiltin("read_excel", lib.readExcel),
		"read_json":   starlark.NewBuiltin("read_json", lib.readJSON),
		"read_pickle": starlark.NewBuiltin("read_pickle", lib.readPickle),
		"concat":      starlark.NewBuiltin("concat", lib.concat),
		"isna":        starlark.NewBuiltin("isna", isNABuiltin),
	})

	return lib
}

func (l *Library) alloc(thread *starlark.Thread) *Frame {
	return &Frame{
		ID:     l.nextID.Add(1),
		data:   make(map[string][]starlark.Value),
		lib:    l,
		thread: thread,
	}
}

// construct runs the constructor slot on a prefilled frame.
func (l *Library) construct(thread *starlark.Thread, f *Frame) (*Frame, error) {
	if err := l.FrameClass.Init(thread, f, nil, nil); err != nil {
		return nil, err
	}
	return f, nil
}

// NewFrame builds a frame from ordered columns, running the constructor slot.
func (l *Library) NewFrame(thread *starlark.Thread, columns []string, data map[string][]starlark.Value, index []starlark.Value) (*Frame, error) {
	f := l.alloc(thread)
	for _, c := range columns {
		if err := f.SetColumnDirect(c, data[c]); err != nil {
			return nil, err
		}
	}
	if index != nil {
		if len(columns) > 0 && len(index) != len(f.index) {
			return nil, fmt.Errorf("length of index (%d) does not match length of values (%d)", len(index), len(f.index))
		}
		f.index = index
	}
	return l.construct(thread, f)
}

func (l *Library) transpose(thread *starlark.Thread, f *Frame) (*Frame, error) {
	ret := l.alloc(thread)
	ret.index = make([]starlark.Value, 0, len(f.columns))
	for _, c := range f.columns {
		ret.index = append(ret.index, starlark.String(c))
	}
	for i, label := range f.index {
		name := keyString(label)
		if ret.HasColumn(name) {
			name = fmt.Sprintf("%s_%d", name, i)
		}
		values := make([]starlark.Value, 0, len(f.columns))
		for _, c := range f.columns {
			values = append(values, f.data[c][i])
		}
		ret.columns = append(ret.columns, name)
		ret.data[name] = values
	}
	return l.construct(thread, ret)
}

func (l *Library) selectRows(thread *starlark.Thread, f *Frame, rows []int) (*Frame, error) {
	ret := l.alloc(thread)
	ret.columns = slices.Clone(f.columns)
	ret.indexName = f.indexName
	ret.index = make([]starlark.Value, 0, len(rows))
	for _, i := range rows {
		ret.index = append(ret.index, f.index[i])
	}
	for _, c := range f.columns {
		values := make([]starlark.Value, 0, len(rows))
		for _, i := range rows {
			values = append(values, f.data[c][i])
		}
		ret.data[c] = values
	}
	return l.construct(thread, ret)
}

func isNABuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	if s, ok := v.(*Series); ok {
		return s.mapValues(func(v starlark.Value) starlark.Value {
			return starlark.Bool(IsNA(v))
		}), nil
	}
	return starlark.Bool(IsNA(v)), nil
}
