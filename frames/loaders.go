package frames

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"slices"
	"strings"

	"github.com/reusee/scisandbox/files"
	"github.com/tealeg/xlsx/v2"
	"github.com/tidwall/gjson"
	"go.starlark.net/starlark"
)

// LoaderNames are the library functions that create frames from files.
var LoaderNames = []string{
	"read_csv",
	"read_excel",
	"read_json",
	"read_pickle",
}

func (l *Library) fromRecords(thread *starlark.Thread, header []string, records [][]string, indexCol starlark.Value) (*Frame, error) {
	f := l.alloc(thread)
	f.index = rangeIndex(len(records))
	for j, name := range header {
		if f.HasColumn(name) {
			name = fmt.Sprintf("%s.%d", name, j)
		}
		values := make([]starlark.Value, len(records))
		for i, record := range records {
			if j < len(record) {
				values[i] = ParseCell(record[j])
			} else {
				values[i] = NaN
			}
		}
		f.columns = append(f.columns, name)
		f.data[name] = values
	}
	if err := f.applyIndexCol(indexCol); err != nil {
		return nil, err
	}
	return l.construct(thread, f)
}

func (f *Frame) applyIndexCol(indexCol starlark.Value) error {
	var name string
	switch v := indexCol.(type) {
	case starlark.NoneType:
		return nil
	case starlark.String:
		name = string(v)
	case starlark.Int:
		i, err := starlark.AsInt32(v)
		if err != nil || i < 0 || i >= len(f.columns) {
			return fmt.Errorf("index_col %v out of range", v)
		}
		name = f.columns[i]
	default:
		return fmt.Errorf("index_col: got %s, want int or str", v.Type())
	}
	values, ok := f.data[name]
	if !ok {
		return &KeyError{Key: name}
	}
	f.index = values
	f.indexName = name
	f.DeleteColumnDirect(name)
	return nil
}

func (l *Library) readCSV(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	sep := ","
	var indexCol starlark.Value = starlark.None
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"filepath_or_buffer", &path,
		"sep?", &sep,
		"index_col?", &indexCol,
	); err != nil {
		return nil, err
	}
	content, err := files.ReadFile(thread, path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(content))
	if sep != "" {
		r.Comma = []rune(sep)[0]
	}
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", fn.Name(), path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %s: no columns to parse", fn.Name(), path)
	}
	return l.fromRecords(thread, records[0], records[1:], indexCol)
}

func (l *Library) readExcel(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	var sheetName starlark.Value = starlark.MakeInt(0)
	var indexCol starlark.Value = starlark.None
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"io", &path,
		"sheet_name?", &sheetName,
		"index_col?", &indexCol,
	); err != nil {
		return nil, err
	}
	content, err := files.ReadFile(thread, path)
	if err != nil {
		return nil, err
	}
	book, err := xlsx.OpenBinary(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", fn.Name(), path, err)
	}
	var sheet *xlsx.Sheet
	switch v := sheetName.(type) {
	case starlark.String:
		var ok bool
		sheet, ok = book.Sheet[string(v)]
		if !ok {
			return nil, fmt.Errorf("%s: worksheet named %q not found", fn.Name(), string(v))
		}
	default:
		i, err := starlark.AsInt32(v)
		if err != nil {
			return nil, fmt.Errorf("%s: sheet_name: %w", fn.Name(), err)
		}
		if i < 0 || i >= len(book.Sheets) {
			return nil, fmt.Errorf("%s: worksheet index %d is invalid, %d worksheets found", fn.Name(), i, len(book.Sheets))
		}
		sheet = book.Sheets[i]
	}
	var records [][]string
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %s: empty worksheet", fn.Name(), path)
	}
	return l.fromRecords(thread, records[0], records[1:], indexCol)
}

func jsonCell(r gjson.Result) starlark.Value {
	switch r.Type {
	case gjson.Null:
		return NaN
	case gjson.True:
		return starlark.True
	case gjson.False:
		return starlark.False
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			return starlark.MakeInt64(r.Int())
		}
		return starlark.Float(r.Float())
	case gjson.String:
		return starlark.String(r.String())
	}
	return starlark.String(r.Raw)
}

func (l *Library) readJSON(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "path_or_buf", &path); err != nil {
		return nil, err
	}
	content, err := files.ReadFile(thread, path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(content) {
		return nil, fmt.Errorf("%s: %s: invalid json", fn.Name(), path)
	}
	root := gjson.ParseBytes(content)
	f := l.alloc(thread)

	switch {
	case root.IsArray():
		// records
		var names []string
		data := make(map[string][]starlark.Value)
		n := 0
		var rowErr error
		root.ForEach(func(_, row gjson.Result) bool {
			if !row.IsObject() {
				rowErr = fmt.Errorf("%s: row %d is not an object", fn.Name(), n)
				return false
			}
			row.ForEach(func(key, value gjson.Result) bool {
				name := key.String()
				if _, ok := data[name]; !ok {
					names = append(names, name)
					data[name] = slices.Repeat([]starlark.Value{NaN}, n)
				}
				data[name] = append(data[name], jsonCell(value))
				return true
			})
			n++
			for _, name := range names {
				for len(data[name]) < n {
					data[name] = append(data[name], NaN)
				}
			}
			return true
		})
		if rowErr != nil {
			return nil, rowErr
		}
		f.index = rangeIndex(n)
		for _, name := range names {
			f.columns = append(f.columns, name)
			f.data[name] = data[name]
		}

	case root.IsObject():
		// columns, as {column: {label: value}} or {column: [values]}
		var labels []string
		labelPos := make(map[string]int)
		type column struct {
			name   string
			values map[string]starlark.Value
		}
		var columns []column
		var err error
		root.ForEach(func(key, col gjson.Result) bool {
			c := column{
				name:   key.String(),
				values: make(map[string]starlark.Value),
			}
			switch {
			case col.IsObject():
				col.ForEach(func(label, value gjson.Result) bool {
					if _, ok := labelPos[label.String()]; !ok {
						labelPos[label.String()] = len(labels)
						labels = append(labels, label.String())
					}
					c.values[label.String()] = jsonCell(value)
					return true
				})
			case col.IsArray():
				i := 0
				col.ForEach(func(_, value gjson.Result) bool {
					label := fmt.Sprint(i)
					if _, ok := labelPos[label]; !ok {
						labelPos[label] = len(labels)
						labels = append(labels, label)
					}
					c.values[label] = jsonCell(value)
					i++
					return true
				})
			default:
				err = fmt.Errorf("%s: column %q is not an object or array", fn.Name(), c.name)
				return false
			}
			columns = append(columns, c)
			return true
		})
		if err != nil {
			return nil, err
		}
		for _, label := range labels {
			f.index = append(f.index, ParseCell(label))
		}
		for _, c := range columns {
			values := make([]starlark.Value, len(labels))
			for i, label := range labels {
				v, ok := c.values[label]
				if !ok {
					v = NaN
				}
				values[i] = v
			}
			f.columns = append(f.columns, c.name)
			f.data[c.name] = values
		}

	default:
		return nil, fmt.Errorf("%s: %s: want a json array or object", fn.Name(), path)
	}

	return l.construct(thread, f)
}

func (l *Library) readPickle(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "filepath_or_buffer", &path); err != nil {
		return nil, err
	}
	content, err := files.ReadFile(thread, path)
	if err != nil {
		return nil, err
	}
	env, err := DecodeEnvelope(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", fn.Name(), path, err)
	}
	f, err := l.FrameFromEnvelope(thread, env)
	if err != nil {
		return nil, err
	}
	f.FilePath = path
	return l.construct(thread, f)
}

func (l *Library) concat(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var objs starlark.Value
	axis := 0
	ignoreIndex := false
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"objs", &objs,
		"axis?", &axis,
		"ignore_index?", &ignoreIndex,
	); err != nil {
		return nil, err
	}
	items, ok := fromIterable(objs)
	if !ok {
		return nil, fmt.Errorf("%s: objs must be a sequence of DataFrames", fn.Name())
	}
	var parts []*Frame
	for _, item := range items {
		f, ok := item.(*Frame)
		if !ok {
			return nil, fmt.Errorf("%s: got %s, want DataFrame", fn.Name(), item.Type())
		}
		parts = append(parts, f)
	}

	ret := l.alloc(thread)
	switch axis {
	case 0:
		for _, part := range parts {
			for _, c := range part.columns {
				if !ret.HasColumn(c) {
					ret.columns = append(ret.columns, c)
					ret.data[c] = slices.Repeat([]starlark.Value{NaN}, len(ret.index))
				}
			}
			for _, c := range ret.columns {
				values, ok := part.data[c]
				if !ok {
					values = slices.Repeat([]starlark.Value{NaN}, len(part.index))
				}
				ret.data[c] = append(ret.data[c], values...)
			}
			ret.index = append(ret.index, part.index...)
		}
		if ignoreIndex {
			ret.index = rangeIndex(len(ret.index))
		}
	case 1:
		for i, part := range parts {
			if i == 0 {
				ret.index = slices.Clone(part.index)
				ret.indexName = part.indexName
			} else if len(part.index) != len(ret.index) {
				return nil, fmt.Errorf("%s: frames have different lengths", fn.Name())
			}
			for _, c := range part.columns {
				name := c
				if ret.HasColumn(name) {
					name = fmt.Sprintf("%s_%d", c, i)
				}
				ret.columns = append(ret.columns, name)
				ret.data[name] = slices.Clone(part.data[c])
			}
		}
	default:
		return nil, fmt.Errorf("%s: axis must be 0 or 1", fn.Name())
	}
	return l.construct(thread, ret)
}
