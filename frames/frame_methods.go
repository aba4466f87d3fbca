package frames

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"slices"
	"sort"

	"github.com/reusee/scisandbox/files"
	"github.com/reusee/scisandbox/pvalues"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"gonum.org/v1/gonum/stat"
)

type builtinFunc = func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

func recvFrame(fn *starlark.Builtin, args starlark.Tuple) (*Frame, starlark.Tuple, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("%s: missing receiver", fn.Name())
	}
	f, ok := args[0].(*Frame)
	if !ok {
		return nil, nil, fmt.Errorf("%s: got %s, want DataFrame", fn.Name(), args[0].Type())
	}
	return f, args[1:], nil
}

func frameMethods(lib *Library) map[string]builtinFunc {
	return map[string]builtinFunc{
		"__init__":    lib.frameInit,
		"__getitem__": lib.frameGetItem,
		"__setitem__": lib.frameSetItem,
		"__delitem__": lib.frameDelItem,
		"to_string":   lib.frameToString,
		"to_csv":      lib.frameToCSV,
		"to_pickle":   lib.frameToPickle,
		"head":        lib.frameHead,
		"copy":        lib.frameCopy,
		"drop":        lib.frameDrop,
		"pop":         lib.framePop,
		"rename":      lib.frameRename,
		"dropna":      lib.frameDropNA,
		"set_index":   lib.frameSetIndex,
		"reset_index": lib.frameResetIndex,
		"describe":    lib.frameDescribe,
		"mean":        lib.frameMean,
		"sort_values": lib.frameSortValues,
		"transpose":   lib.frameTranspose,
	}
}

// frameInit fills a frame from data. Frames prefilled by library functions are called with no data.
func (l *Library) frameInit(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	var data, index, columns starlark.Value = starlark.None, starlark.None, starlark.None
	if err := starlark.UnpackArgs("DataFrame", args, kwargs,
		"data?", &data,
		"index?", &index,
		"columns?", &columns,
	); err != nil {
		return nil, err
	}
	if f.thread == nil {
		f.thread = thread
	}

	switch data := data.(type) {
	case starlark.NoneType:
	case *Frame:
		src := data.clone(thread)
		f.columns, f.data, f.index, f.indexName = src.columns, src.data, src.index, src.indexName
	case *starlark.Dict:
		if err := f.fillFromDict(data); err != nil {
			return nil, err
		}
	default:
		rows, ok := fromIterable(data)
		if !ok {
			return nil, fmt.Errorf("DataFrame: unsupported data type %s", data.Type())
		}
		if err := f.fillFromRows(rows, columns); err != nil {
			return nil, err
		}
	}

	if columns != starlark.None {
		if _, isDict := data.(*starlark.Dict); isDict {
			names, ok := stringList(columns)
			if !ok {
				return nil, fmt.Errorf("DataFrame: bad columns")
			}
			for _, name := range names {
				if !f.HasColumn(name) {
					return nil, &KeyError{Key: name}
				}
			}
			f.columns = names
		}
	}

	if index != starlark.None {
		labels, ok := fromIterable(index)
		if !ok {
			return nil, fmt.Errorf("DataFrame: bad index")
		}
		if len(f.columns) > 0 && len(labels) != len(f.index) {
			return nil, fmt.Errorf("DataFrame: length of index (%d) does not match length of values (%d)", len(labels), len(f.index))
		}
		f.index = labels
	}
	return starlark.None, nil
}

func (f *Frame) fillFromDict(d *starlark.Dict) error {
	n := -1
	for _, item := range d.Items() {
		if values, ok := fromIterable(item[1]); ok {
			if n >= 0 && len(values) != n {
				return fmt.Errorf("DataFrame: all arrays must be of the same length")
			}
			n = len(values)
		}
	}
	if n < 0 {
		n = 1
	}
	for _, item := range d.Items() {
		values, ok := fromIterable(item[1])
		if !ok {
			values = slices.Repeat([]starlark.Value{item[1]}, n)
		}
		if err := f.SetColumnDirect(keyString(item[0]), values); err != nil {
			return err
		}
	}
	if len(f.columns) == 0 {
		f.index = rangeIndex(0)
	}
	return nil
}

func (f *Frame) fillFromRows(rows []starlark.Value, columns starlark.Value) error {
	var names []string
	if columns != starlark.None {
		var ok bool
		names, ok = stringList(columns)
		if !ok {
			return fmt.Errorf("DataFrame: bad columns")
		}
	}
	data := make(map[string][]starlark.Value)
	for i, row := range rows {
		switch row := row.(type) {
		case *starlark.Dict:
			for _, item := range row.Items() {
				name := keyString(item[0])
				if _, ok := data[name]; !ok {
					if columns == starlark.None {
						names = append(names, name)
					}
					data[name] = slices.Repeat([]starlark.Value{NaN}, i)
				}
			}
			for _, name := range names {
				v, found, _ := row.Get(starlark.String(name))
				if !found {
					v = NaN
				}
				data[name] = append(data[name], v)
			}
		default:
			cells, ok := fromIterable(row)
			if !ok {
				return fmt.Errorf("DataFrame: row %d is %s, want sequence or dict", i, row.Type())
			}
			if names == nil {
				for j := range cells {
					names = append(names, fmt.Sprint(j))
				}
			}
			if len(cells) != len(names) {
				return fmt.Errorf("DataFrame: row %d has %d values, want %d", i, len(cells), len(names))
			}
			for j, name := range names {
				data[name] = append(data[name], cells[j])
			}
		}
	}
	f.index = rangeIndex(len(rows))
	for _, name := range names {
		values := data[name]
		for len(values) < len(rows) {
			values = append(values, NaN)
		}
		f.columns = append(f.columns, name)
		f.data[name] = values
	}
	return nil
}

func (l *Library) frameGetItem(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	var key starlark.Value
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &key); err != nil {
		return nil, err
	}
	switch key := key.(type) {
	case starlark.String:
		values, ok := f.data[string(key)]
		if !ok {
			return nil, &KeyError{Key: string(key)}
		}
		return l.NewSeries(string(key), slices.Clone(values), slices.Clone(f.index)), nil
	case *Series:
		rows, err := maskRows(key, len(f.index))
		if err != nil {
			return nil, err
		}
		return l.selectRows(thread, f, rows)
	}
	names, ok := stringList(key)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported key type %s", fn.Name(), key.Type())
	}
	ret := l.alloc(thread)
	ret.index = slices.Clone(f.index)
	ret.indexName = f.indexName
	for _, name := range names {
		values, ok := f.data[name]
		if !ok {
			return nil, &KeyError{Key: name}
		}
		ret.columns = append(ret.columns, name)
		ret.data[name] = slices.Clone(values)
	}
	return l.construct(thread, ret)
}

func (l *Library) frameSetItem(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	var key, value starlark.Value
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &key, &value); err != nil {
		return nil, err
	}
	name, ok := starlark.AsString(key)
	if !ok {
		return nil, fmt.Errorf("%s: column name must be a string, got %s", fn.Name(), key.Type())
	}
	values, ok := fromIterable(value)
	if !ok {
		n := len(f.index)
		values = slices.Repeat([]starlark.Value{value}, n)
	}
	if err := f.SetColumnDirect(name, values); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (l *Library) frameDelItem(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	var name string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	if !f.DeleteColumnDirect(name) {
		return nil, &KeyError{Key: name}
	}
	return starlark.None, nil
}

func digitsArg(thread *starlark.Thread, v starlark.Value) (int, error) {
	if v == starlark.None {
		return FloatDigits(thread), nil
	}
	n, err := starlark.AsInt32(v)
	if err != nil {
		return 0, fmt.Errorf("float_format: want number of significant digits: %w", err)
	}
	return n, nil
}

func (l *Library) frameToString(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	var floatFormat starlark.Value = starlark.None
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "float_format?", &floatFormat); err != nil {
		return nil, err
	}
	digits, err := digitsArg(thread, floatFormat)
	if err != nil {
		return nil, err
	}
	return starlark.String(f.Render(digits)), nil
}

// CSV renders the frame as CSV text.
func (f *Frame) CSV(digits int, withIndex bool) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	var header []string
	if withIndex {
		header = append(header, f.indexName)
	}
	header = append(header, f.columns...)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for i, label := range f.index {
		var record []string
		if withIndex {
			record = append(record, FormatCell(label, digits))
		}
		for _, c := range f.columns {
			v := f.data[c][i]
			if IsNA(v) {
				record = append(record, "")
				continue
			}
			record = append(record, FormatCell(v, digits))
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

func (l *Library) frameToCSV(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	var path starlark.Value = starlark.None
	var floatFormat starlark.Value = starlark.None
	withIndex := true
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"path_or_buf?", &path,
		"index?", &withIndex,
		"float_format?", &floatFormat,
	); err != nil {
		return nil, err
	}
	digits, err := digitsArg(thread, floatFormat)
	if err != nil {
		return nil, err
	}
	text, err := f.CSV(digits, withIndex)
	if err != nil {
		return nil, err
	}
	if path == starlark.None {
		return starlark.String(text), nil
	}
	p, ok := starlark.AsString(path)
	if !ok {
		return nil, fmt.Errorf("%s: path must be a string", fn.Name())
	}
	if err := files.WriteFile(thread, p, []byte(text)); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (l *Library) frameToPickle(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	var path string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "path", &path); err != nil {
		return nil, err
	}
	content, err := EncodeEnvelope(f)
	if err != nil {
		return nil, err
	}
	if err := files.WriteFile(thread, path, content); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (l *Library) frameHead(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	n := 5
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	n = max(0, min(n, len(f.index)))
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return l.selectRows(thread, f, rows)
}

func (l *Library) frameCopy(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	deep := true
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "deep?", &deep); err != nil {
		return nil, err
	}
	return l.construct(thread, f.clone(thread))
}

// deleteColumns removes columns through the __delitem__ slot.
func (l *Library) deleteColumns(thread *starlark.Thread, f *Frame, names []string) error {
	for _, name := range names {
		if _, _, err := l.FrameClass.CallMethod(thread, f, "__delitem__", starlark.Tuple{starlark.String(name)}, nil); err != nil {
			return err
		}
	}
	return nil
}

func (l *Library) frameDrop(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	var labels, columns starlark.Value = starlark.None, starlark.None
	axis := 0
	inplace := false
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"labels?", &labels,
		"axis?", &axis,
		"columns?", &columns,
		"inplace?", &inplace,
	); err != nil {
		return nil, err
	}
	if columns == starlark.None && axis == 1 {
		columns = labels
	}
	if columns == starlark.None {
		return nil, fmt.Errorf("%s: only dropping columns is supported, pass columns=", fn.Name())
	}
	names, ok := stringList(columns)
	if !ok {
		return nil, fmt.Errorf("%s: bad columns", fn.Name())
	}
	target := f
	if !inplace {
		target, err = l.construct(thread, f.clone(thread))
		if err != nil {
			return nil, err
		}
	}
	if err := l.deleteColumns(thread, target, names); err != nil {
		return nil, err
	}
	if inplace {
		return starlark.None, nil
	}
	return target, nil
}

func (l *Library) framePop(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	var name string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	values, ok := f.data[name]
	if !ok {
		return nil, &KeyError{Key: name}
	}
	ret := l.NewSeries(name, slices.Clone(values), slices.Clone(f.index))
	if err := l.deleteColumns(thread, f, []string{name}); err != nil {
		return nil, err
	}
	return ret, nil
}

func (l *Library) frameRename(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	var columns, index *starlark.Dict
	inplace := false
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"columns?", &columns,
		"index?", &index,
		"inplace?", &inplace,
	); err != nil {
		return nil, err
	}
	target := f
	if !inplace {
		target = f.clone(thread)
	}
	if columns != nil {
		renamed := make(map[string][]starlark.Value, len(target.data))
		for i, c := range target.columns {
			name := c
			if v, found, _ := columns.Get(starlark.String(c)); found {
				name = keyString(v)
			}
			target.columns[i] = name
			renamed[name] = target.data[c]
		}
		target.data = renamed
	}
	if index != nil {
		for i, label := range target.index {
			if v, found, _ := index.Get(label); found {
				target.index[i] = v
			}
		}
	}
	if inplace {
		return starlark.None, nil
	}
	return l.construct(thread, target)
}

func (l *Library) frameDropNA(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	var subset starlark.Value = starlark.None
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "subset?", &subset); err != nil {
		return nil, err
	}
	columns := f.columns
	if subset != starlark.None {
		var ok bool
		columns, ok = stringList(subset)
		if !ok {
			return nil, fmt.Errorf("%s: bad subset", fn.Name())
		}
	}
	var rows []int
rows:
	for i := range f.index {
		for _, c := range columns {
			values, ok := f.data[c]
			if !ok {
				return nil, &KeyError{Key: c}
			}
			if IsNA(values[i]) {
				continue rows
			}
		}
		rows = append(rows, i)
	}
	return l.selectRows(thread, f, rows)
}

func (l *Library) frameSetIndex(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	var name string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "keys", &name); err != nil {
		return nil, err
	}
	ret := f.clone(thread)
	values, ok := ret.data[name]
	if !ok {
		return nil, &KeyError{Key: name}
	}
	ret.index = values
	ret.indexName = name
	ret.DeleteColumnDirect(name)
	return l.construct(thread, ret)
}

func (l *Library) frameResetIndex(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	drop := false
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "drop?", &drop); err != nil {
		return nil, err
	}
	ret := l.alloc(thread)
	if !drop {
		name := f.indexName
		if name == "" {
			name = "index"
		}
		ret.columns = append(ret.columns, name)
		ret.data[name] = slices.Clone(f.index)
	}
	for _, c := range f.columns {
		ret.columns = append(ret.columns, c)
		ret.data[c] = slices.Clone(f.data[c])
	}
	ret.index = rangeIndex(len(f.index))
	return l.construct(thread, ret)
}

var describeLabels = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

func (l *Library) frameDescribe(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	ret := l.alloc(thread)
	for _, label := range describeLabels {
		ret.index = append(ret.index, starlark.String(label))
	}
	for _, c := range f.columns {
		x, ok := Numeric(f.data[c])
		if !ok {
			continue
		}
		values := make([]starlark.Value, 0, len(describeLabels))
		values = append(values, starlark.Float(len(x)))
		if len(x) == 0 {
			for range describeLabels[1:] {
				values = append(values, NaN)
			}
		} else {
			sorted := slices.Clone(x)
			sort.Float64s(sorted)
			values = append(values,
				starlark.Float(stat.Mean(x, nil)),
				stdDev(x),
				starlark.Float(sorted[0]),
				starlark.Float(stat.Quantile(0.25, stat.LinInterp, sorted, nil)),
				starlark.Float(stat.Quantile(0.5, stat.LinInterp, sorted, nil)),
				starlark.Float(stat.Quantile(0.75, stat.LinInterp, sorted, nil)),
				starlark.Float(sorted[len(sorted)-1]),
			)
		}
		ret.columns = append(ret.columns, c)
		ret.data[c] = values
	}
	return l.construct(thread, ret)
}

func stdDev(x []float64) starlark.Value {
	if len(x) < 2 {
		return NaN
	}
	return starlark.Float(stat.StdDev(x, nil))
}

func (l *Library) frameMean(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	numericOnly := true
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "numeric_only?", &numericOnly); err != nil {
		return nil, err
	}
	var labels, values []starlark.Value
	for _, c := range f.columns {
		x, ok := Numeric(f.data[c])
		if !ok {
			if !numericOnly {
				return nil, fmt.Errorf("%s: column %q is not numeric", fn.Name(), c)
			}
			continue
		}
		labels = append(labels, starlark.String(c))
		if len(x) == 0 {
			values = append(values, NaN)
		} else {
			values = append(values, starlark.Float(stat.Mean(x, nil)))
		}
	}
	return l.NewSeries("", values, labels), nil
}

func (l *Library) frameSortValues(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	var by string
	ascending := true
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "by", &by, "ascending?", &ascending); err != nil {
		return nil, err
	}
	values, ok := f.data[by]
	if !ok {
		return nil, &KeyError{Key: by}
	}
	rows := make([]int, len(values))
	for i := range rows {
		rows[i] = i
	}
	var sortErr error
	sort.SliceStable(rows, func(a, b int) bool {
		x, y := values[rows[a]], values[rows[b]]
		// missing values last
		if IsNA(x) || IsNA(y) {
			return !IsNA(x) && IsNA(y)
		}
		if !ascending {
			x, y = y, x
		}
		less, err := pvalues.Compare(syntax.LT, x, y)
		if err != nil {
			if sortErr == nil {
				sortErr = err
			}
			return false
		}
		return less == starlark.True
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return l.selectRows(thread, f, rows)
}

func (l *Library) frameTranspose(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, args, err := recvFrame(fn, args)
	if err != nil {
		return nil, err
	}
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return l.transpose(thread, f)
}
