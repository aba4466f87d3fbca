package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/pvalues"
	"github.com/reusee/scisandbox/renders"
	"go.starlark.net/starlark"
)

func exec(t *testing.T, lib *Library, src string) {
	t.Helper()
	thread := &starlark.Thread{Name: "test"}
	display := pvalues.NewDisplay()
	display.Bind(thread)
	_, err := starlark.ExecFile(thread, "test.star", src, starlark.StringDict{
		"pd":     frames.New().Module,
		"utils":  lib.Module,
		"PValue": pvalues.Builtins()["PValue"],
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestToTable(t *testing.T) {
	dir := t.TempDir()
	lib := New(3)
	exec(t, lib, `
df = pd.DataFrame({"coef": [1.23456, 2.5], "p": [PValue(1e-9), PValue(0.0312)]}, index=["age", "bmi"])
utils.to_table(df, "`+filepath.Join(dir, "table_1.tex")+`",
  caption="Association with outcome",
  glossary={"bmi": "Body mass index"},
)
utils.to_table(df, 42)
`)
	list := lib.Artifacts()
	if len(list) != 2 {
		t.Fatalf("got %d", len(list))
	}
	a := list[0]
	if a.Kind != KindTable || a.Pass != 2 || a.Caption == nil || a.Note != nil {
		t.Fatalf("got %+v", a)
	}
	if a.Glossary["bmi"] != "Body mass index" {
		t.Fatal()
	}
	content, err := os.ReadFile(filepath.Join(dir, "table_1.tex"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != a.Rendered {
		t.Fatal()
	}
	for _, want := range []string{"1.23", "<1e-06", "0.0312", `\caption{Association with outcome}`} {
		if !strings.Contains(a.Rendered, want) {
			t.Fatalf("missing %s in %s", want, a.Rendered)
		}
	}
	if err := renders.Compile(a.Rendered); err != nil {
		t.Fatal(err)
	}

	// wrong argument types are recorded, not raised
	bad := list[1]
	if bad.ArgTypes["filename"] != "int" || bad.Filename != "" || bad.Rendered != "" {
		t.Fatalf("got %+v", bad)
	}
}

func TestToFigure(t *testing.T) {
	dir := t.TempDir()
	lib := New(3)
	exec(t, lib, `
df = pd.DataFrame({"group": ["a", "b"], "mean": [1.5, 2.5], "ci": [0.1, 0.2]})
utils.to_figure(df, "`+filepath.Join(dir, "figure_1.tex")+`", x="group", y="mean", yerr="ci", caption="Means")
`)
	a := lib.Artifacts()[0]
	if a.Kind != KindFigure || a.PlotKind != "bar" {
		t.Fatalf("got %+v", a)
	}
	spec := a.FigureSpec()
	if strings.Join(spec.Labels, ",") != "a,b" || spec.Series[0][1] != 2.5 || spec.Errors[0][0] != 0.1 {
		t.Fatalf("got %+v", spec)
	}
	if err := renders.Compile(a.Rendered); err != nil {
		t.Fatal(err)
	}
}

func TestFromPickle(t *testing.T) {
	thread := &starlark.Thread{Name: "test"}
	lib := frames.New()
	f, err := lib.NewFrame(thread, []string{"x"}, map[string][]starlark.Value{
		"x": {starlark.MakeInt(1), starlark.Tuple{starlark.MakeInt(1), starlark.MakeInt(2)}},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	content, err := frames.EncodeEnvelope(f)
	if err != nil {
		t.Fatal(err)
	}
	a, err := FromPickle("df_1.pkl", content)
	if err != nil {
		t.Fatal(err)
	}
	if a.Pass != 1 || a.Filename != "df_1.pkl" {
		t.Fatalf("got %+v", a)
	}
	if cell := a.Frame.Data[0][1]; cell.Kind != frames.CellOther || cell.Type != "tuple" {
		t.Fatalf("got %+v", cell)
	}

	data, err := Encode([]*Artifact{a})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || decoded[0].Frame.Columns[0] != "x" {
		t.Fatalf("got %+v", decoded)
	}
}
