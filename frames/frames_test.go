package frames

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reusee/scisandbox/intercept"
	"github.com/reusee/scisandbox/pvalues"
	"github.com/tealeg/xlsx/v2"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

func newThread() *starlark.Thread {
	thread := &starlark.Thread{Name: "test"}
	pvalues.NewDisplay().Bind(thread)
	return thread
}

func exec(t *testing.T, lib *Library, src string) starlark.StringDict {
	t.Helper()
	globals, err := starlark.ExecFileOptions(fileOptions, newThread(), "test.star", src, starlark.StringDict{
		"pd": lib.Module,
	})
	if err != nil {
		t.Fatal(err)
	}
	return globals
}

func TestFrameBasics(t *testing.T) {
	globals := exec(t, New(), `
df = pd.DataFrame({"a": [1, 2, 3], "b": [0.5, 1.5, 2.5]})
shape = df.shape
a = df["a"].tolist()
df["c"] = 7
cols = df.columns
sub = df[["b", "c"]]
mean_b = df["b"].mean()
popped = df.pop("c").tolist()
after = df.columns
`)
	if got := globals["shape"].String(); got != "(3, 2)" {
		t.Fatalf("got %s", got)
	}
	if got := globals["a"].String(); got != "[1, 2, 3]" {
		t.Fatalf("got %s", got)
	}
	if got := globals["cols"].String(); got != `["a", "b", "c"]` {
		t.Fatalf("got %s", got)
	}
	if got := globals["sub"].(*Frame).Columns(); strings.Join(got, ",") != "b,c" {
		t.Fatalf("got %v", got)
	}
	if got := globals["mean_b"]; got != starlark.Float(1.5) {
		t.Fatalf("got %v", got)
	}
	if got := globals["popped"].String(); got != "[7, 7, 7]" {
		t.Fatalf("got %s", got)
	}
	if got := globals["after"].String(); got != `["a", "b"]` {
		t.Fatalf("got %s", got)
	}
}

func TestFrameKeyError(t *testing.T) {
	_, err := starlark.ExecFileOptions(fileOptions, newThread(), "test.star", `
df = pd.DataFrame({"a": [1]})
df["missing"]
`, starlark.StringDict{"pd": New().Module})
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("got %v", err)
	}
}

func TestItemAccessGoesThroughSlots(t *testing.T) {
	lib := New()
	var deleted []string
	original, _ := lib.FrameClass.Slot("__delitem__")
	u, err := intercept.Install(lib.FrameClass, "__delitem__", starlark.NewBuiltin("__delitem__",
		func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			deleted = append(deleted, string(args[1].(starlark.String)))
			return starlark.Call(thread, original, args, kwargs)
		}))
	if err != nil {
		t.Fatal(err)
	}
	defer u.Restore()

	exec(t, lib, `
df = pd.DataFrame({"a": [1], "b": [2], "c": [3]})
df.pop("a")
df.drop(columns=["b"], inplace=True)
`)
	if strings.Join(deleted, ",") != "a,b" {
		t.Fatalf("got %v", deleted)
	}
}

func TestReadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("id,group,score\n1,x,0.5\n2,y,\n3,x,1.5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	lib := New()
	globals, err := starlark.ExecFileOptions(fileOptions, newThread(), "test.star", `
df = pd.read_csv(path, index_col="id")
n = df["score"].count()
groups = df["group"].unique()
`, starlark.StringDict{
		"pd":   lib.Module,
		"path": starlark.String(path),
	})
	if err != nil {
		t.Fatal(err)
	}
	df := globals["df"].(*Frame)
	if df.IndexName() != "id" {
		t.Fatalf("got %q", df.IndexName())
	}
	if strings.Join(df.Columns(), ",") != "group,score" {
		t.Fatalf("got %v", df.Columns())
	}
	if !IsNA(df.Cell("score", 1)) {
		t.Fatalf("got %v", df.Cell("score", 1))
	}
	if got := globals["n"].String(); got != "2" {
		t.Fatalf("got %s", got)
	}
	if got := globals["groups"].String(); got != `["x", "y"]` {
		t.Fatalf("got %s", got)
	}
}

func TestReadJSON(t *testing.T) {
	dir := t.TempDir()
	records := filepath.Join(dir, "records.json")
	columns := filepath.Join(dir, "columns.json")
	if err := os.WriteFile(records, []byte(`[{"b": 1, "a": "x"}, {"a": "y", "c": 2.5}]`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(columns, []byte(`{"z": {"r1": 1, "r2": 2}, "y": {"r2": true}}`), 0644); err != nil {
		t.Fatal(err)
	}
	lib := New()
	thread := newThread()
	for _, c := range []struct {
		path    string
		columns string
		rows    int
	}{
		{records, "b,a,c", 2},
		{columns, "z,y", 2},
	} {
		ret, err := starlark.Call(thread, lib.Module.Members()["read_json"], starlark.Tuple{starlark.String(c.path)}, nil)
		if err != nil {
			t.Fatal(err)
		}
		f := ret.(*Frame)
		if got := strings.Join(f.Columns(), ","); got != c.columns {
			t.Fatalf("got %s", got)
		}
		if f.NumRows() != c.rows {
			t.Fatalf("got %d", f.NumRows())
		}
	}
}

func TestReadExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	book := xlsx.NewFile()
	sheet, err := book.AddSheet("results")
	if err != nil {
		t.Fatal(err)
	}
	for _, record := range [][]string{
		{"name", "value"},
		{"alpha", "1"},
		{"beta", "2.5"},
	} {
		row := sheet.AddRow()
		for _, s := range record {
			row.AddCell().SetString(s)
		}
	}
	if err := book.Save(path); err != nil {
		t.Fatal(err)
	}

	lib := New()
	ret, err := starlark.Call(newThread(), lib.Module.Members()["read_excel"], starlark.Tuple{starlark.String(path)}, []starlark.Tuple{
		{starlark.String("sheet_name"), starlark.String("results")},
	})
	if err != nil {
		t.Fatal(err)
	}
	f := ret.(*Frame)
	if got := f.Cell("value", 1); got != starlark.Float(2.5) {
		t.Fatalf("got %v", got)
	}
	if got := f.Cell("name", 0); got != starlark.String("alpha") {
		t.Fatalf("got %v", got)
	}
}

func TestPickleKeepsPValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pkl")
	lib := New()
	thread := newThread()
	display := pvalues.FromThread(thread)
	f, err := lib.NewFrame(thread, []string{"stat", "p"}, map[string][]starlark.Value{
		"stat": {starlark.Float(2.1), starlark.Float(0.3)},
		"p":    {pvalues.New(0.04, "ttest_ind", display), NaN},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	f.CreatedBy = "read_csv"
	f.FilePath = "in.csv"
	toPickle, _ := f.Attr("to_pickle")
	if _, err := starlark.Call(thread, toPickle, starlark.Tuple{starlark.String(path)}, nil); err != nil {
		t.Fatal(err)
	}

	ret, err := starlark.Call(thread, lib.Module.Members()["read_pickle"], starlark.Tuple{starlark.String(path)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	loaded := ret.(*Frame)
	p, ok := loaded.Cell("p", 0).(pvalues.PValue)
	if !ok {
		t.Fatalf("got %T", loaded.Cell("p", 0))
	}
	if p.Value != 0.04 || p.CreatedBy != "ttest_ind" {
		t.Fatalf("got %+v", p)
	}
	if !IsNA(loaded.Cell("p", 1)) {
		t.Fatal("expected missing value")
	}
	// the path read from replaces the saved one
	if loaded.CreatedBy != "read_csv" || loaded.FilePath != path {
		t.Fatalf("got %q %q", loaded.CreatedBy, loaded.FilePath)
	}
	if !pvalues.ContainsTainted(loaded) {
		t.Fatal("expected tainted frame")
	}

	if _, err := DecodeEnvelope([]byte("junk")); err == nil {
		t.Fatal("expected error")
	}
}

func TestConcat(t *testing.T) {
	globals := exec(t, New(), `
a = pd.DataFrame({"x": [1, 2]})
b = pd.DataFrame({"x": [3], "y": ["q"]})
rows = pd.concat([a, b], ignore_index=True)
cols = pd.concat([a, pd.DataFrame({"z": [5, 6]})], axis=1)
`)
	rows := globals["rows"].(*Frame)
	if rows.NumRows() != 3 || strings.Join(rows.Columns(), ",") != "x,y" {
		t.Fatalf("got %d %v", rows.NumRows(), rows.Columns())
	}
	if !IsNA(rows.Cell("y", 0)) {
		t.Fatalf("got %v", rows.Cell("y", 0))
	}
	if got := rows.Index()[2].String(); got != "2" {
		t.Fatalf("got %s", got)
	}
	cols := globals["cols"].(*Frame)
	if strings.Join(cols.Columns(), ",") != "x,z" {
		t.Fatalf("got %v", cols.Columns())
	}
}

func TestToCSVFloatFormat(t *testing.T) {
	lib := New()
	thread := newThread()
	f, err := lib.NewFrame(thread, []string{"v"}, map[string][]starlark.Value{
		"v": {starlark.Float(1.23456789)},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	text, err := f.CSV(3, false)
	if err != nil {
		t.Fatal(err)
	}
	if text != "v\n1.23\n" {
		t.Fatalf("got %q", text)
	}
}
