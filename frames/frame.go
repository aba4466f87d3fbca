package frames

import (
	"fmt"
	"slices"

	"github.com/reusee/scisandbox/pvalues"
	"go.starlark.net/starlark"
)

// Frame is a table of named columns sharing a row index.
// Item access goes through the __getitem__, __setitem__ and __delitem__ slots of its class.
type Frame struct {
	ID        uint64
	CreatedBy string
	FilePath  string

	columns   []string
	data      map[string][]starlark.Value
	index     []starlark.Value
	indexName string

	lib    *Library
	thread *starlark.Thread
}

var (
	_ starlark.Value     = new(Frame)
	_ starlark.HasAttrs  = new(Frame)
	_ starlark.Mapping   = new(Frame)
	_ starlark.HasSetKey = new(Frame)
	_ starlark.Sequence  = new(Frame)
	_ pvalues.Walker     = new(Frame)
)

func (f *Frame) Columns() []string {
	return slices.Clone(f.columns)
}

func (f *Frame) HasColumn(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Column returns the cells of a column. The slice must not be modified.
func (f *Frame) Column(name string) ([]starlark.Value, bool) {
	values, ok := f.data[name]
	return values, ok
}

func (f *Frame) Index() []starlark.Value {
	return slices.Clone(f.index)
}

func (f *Frame) IndexName() string {
	return f.indexName
}

func (f *Frame) NumRows() int {
	return len(f.index)
}

func (f *Frame) Thread() *starlark.Thread {
	return f.thread
}

func (f *Frame) Library() *Library {
	return f.lib
}

// Cell returns the value at row i of a column.
func (f *Frame) Cell(column string, i int) starlark.Value {
	return f.data[column][i]
}

// SetColumnDirect writes a column without going through the __setitem__ slot.
func (f *Frame) SetColumnDirect(name string, values []starlark.Value) error {
	if len(f.columns) == 0 && len(f.index) == 0 {
		f.index = rangeIndex(len(values))
	}
	if len(values) != len(f.index) {
		return fmt.Errorf("length of values (%d) does not match length of index (%d)", len(values), len(f.index))
	}
	if _, ok := f.data[name]; !ok {
		f.columns = append(f.columns, name)
	}
	f.data[name] = values
	return nil
}

// DeleteColumnDirect removes a column without going through the __delitem__ slot.
func (f *Frame) DeleteColumnDirect(name string) bool {
	if _, ok := f.data[name]; !ok {
		return false
	}
	delete(f.data, name)
	f.columns = slices.DeleteFunc(f.columns, func(c string) bool {
		return c == name
	})
	return true
}

func (f *Frame) String() string {
	return f.Render(FloatDigits(f.thread))
}

// Render formats the frame as text with floats shown with digits significant digits.
func (f *Frame) Render(digits int) string {
	header := append([]string{f.indexName}, f.columns...)
	rows := make([][]string, 0, len(f.index))
	for i, label := range f.index {
		row := make([]string, 0, len(header))
		row = append(row, FormatCell(label, digits))
		for _, column := range f.columns {
			row = append(row, FormatCell(f.data[column][i], digits))
		}
		rows = append(rows, row)
	}
	return renderTable(header, rows)
}

func (f *Frame) Type() string {
	return "DataFrame"
}

func (f *Frame) Freeze() {}

func (f *Frame) Truth() starlark.Bool {
	return true
}

func (f *Frame) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable: DataFrame")
}

var frameAttrs = []string{"columns", "empty", "index", "shape", "T"}

func (f *Frame) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		ret := make([]starlark.Value, 0, len(f.columns))
		for _, c := range f.columns {
			ret = append(ret, starlark.String(c))
		}
		return starlark.NewList(ret), nil
	case "empty":
		return starlark.Bool(len(f.index) == 0 || len(f.columns) == 0), nil
	case "index":
		return toList(f.index), nil
	case "shape":
		return starlark.Tuple{
			starlark.MakeInt(len(f.index)),
			starlark.MakeInt(len(f.columns)),
		}, nil
	case "T":
		return f.lib.transpose(f.thread, f)
	}
	if m, ok := f.lib.FrameClass.Method(f, name); ok {
		return m, nil
	}
	return nil, nil
}

func (f *Frame) AttrNames() []string {
	names := slices.Clone(frameAttrs)
	for _, name := range f.lib.FrameClass.SlotNames() {
		if len(name) > 1 && name[0] == '_' {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (f *Frame) Get(key starlark.Value) (starlark.Value, bool, error) {
	ret, _, err := f.lib.FrameClass.CallMethod(f.thread, f, "__getitem__", starlark.Tuple{key}, nil)
	if err != nil {
		return nil, true, err
	}
	return ret, true, nil
}

func (f *Frame) SetKey(key, value starlark.Value) error {
	_, _, err := f.lib.FrameClass.CallMethod(f.thread, f, "__setitem__", starlark.Tuple{key, value}, nil)
	return err
}

func (f *Frame) Iterate() starlark.Iterator {
	names := make([]starlark.Value, 0, len(f.columns))
	for _, c := range f.columns {
		names = append(names, starlark.String(c))
	}
	return starlark.NewList(names).Iterate()
}

func (f *Frame) Len() int {
	return len(f.index)
}

func (f *Frame) WalkValues(fn func(starlark.Value) bool) {
	for _, label := range f.index {
		if !fn(label) {
			return
		}
	}
	for _, column := range f.columns {
		for _, v := range f.data[column] {
			if !fn(v) {
				return
			}
		}
	}
}

func (f *Frame) clone(thread *starlark.Thread) *Frame {
	ret := f.lib.alloc(thread)
	ret.columns = slices.Clone(f.columns)
	for _, c := range f.columns {
		ret.data[c] = slices.Clone(f.data[c])
	}
	ret.index = slices.Clone(f.index)
	ret.indexName = f.indexName
	return ret
}

// KeyError is returned by __getitem__ and __delitem__ for a missing column.
type KeyError struct {
	Key string
}

func (k *KeyError) Error() string {
	return fmt.Sprintf("KeyError: %q", k.Key)
}
