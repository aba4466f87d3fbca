package overrides

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/guards"
	"github.com/reusee/scisandbox/intercept"
	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/pvalues"
	"github.com/reusee/scisandbox/stats"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const userFile = "gpt_code.star"

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

func newEnv(t *testing.T) *guards.Env {
	thread := &starlark.Thread{Name: "test"}
	intercept.MarkUserFile(thread, userFile)
	registry := intercept.NewRegistry()
	registry.Bind(thread)
	display := pvalues.NewDisplay()
	display.Bind(thread)
	frameLib := frames.New()
	statsLib := stats.New(frameLib)
	return &guards.Env{
		Thread:   thread,
		Registry: registry,
		Builtins: intercept.NewDict("builtins", starlark.StringDict{
			"pd":    frameLib.Module,
			"sm":    statsLib.Models,
			"stats": statsLib.Tests,
		}),
		Modules: map[string]starlark.Value{
			frames.ModuleName:      frameLib.Module,
			stats.ModelsModuleName: statsLib.Models,
			stats.ScipyModuleName:  statsLib.Scipy,
		},
		Frames:  frameLib,
		Stats:   statsLib,
		Display: display,
		Dir:     t.TempDir(),
	}
}

func run(t *testing.T, env *guards.Env, g guards.Guard, src string) (starlark.StringDict, error) {
	t.Helper()
	var globals starlark.StringDict
	var err error
	if e := (guards.Stack{g}).Run(env, func() {
		globals, err = starlark.ExecFileOptions(fileOptions, env.Thread, userFile, src, env.Builtins.Members())
	}); e != nil {
		t.Fatal(e)
	}
	return globals, err
}

func writeCSV(t *testing.T, env *guards.Env) string {
	path := filepath.Join(env.Dir, "data.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2.5\n2,3.5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func count(ops []Operation, kind OperationKind) int {
	n := 0
	for _, op := range ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

func TestMutationPolicy(t *testing.T) {
	src := func(path string) string {
		return `
df = pd.read_csv("` + path + `")
df["a"] = [10, 20]
`
	}

	env := newEnv(t)
	deny := &FrameOverride{MutationPolicy: DenyAlways}
	_, err := run(t, env, deny, src(writeCSV(t, env)))
	var changed *SeriesChangedError
	if !errors.As(err, &changed) {
		t.Fatalf("got %v", err)
	}
	if changed.Column != "a" || changed.FilePath == "" {
		t.Fatalf("got %+v", changed)
	}
	if count(deny.Operations, ColumnChanged) != 0 {
		t.Fatal()
	}

	env = newEnv(t)
	allow := &FrameOverride{MutationPolicy: AllowAlways}
	globals, err := run(t, env, allow, src(writeCSV(t, env)))
	if err != nil {
		t.Fatal(err)
	}
	if n := count(allow.Operations, ColumnChanged); n != 1 {
		t.Fatalf("got %d", n)
	}
	col, _ := globals["df"].(*frames.Frame).Column("a")
	if col[0].String() != "10" {
		t.Fatalf("got %v", col)
	}

	// frames not loaded from a file may change
	env = newEnv(t)
	unlessFile := &FrameOverride{MutationPolicy: AllowUnlessFromFile}
	if _, err := run(t, env, unlessFile, `
df = pd.DataFrame({"a": [1, 2]})
df["a"] = [3, 4]
df["b"] = 1
`); err != nil {
		t.Fatal(err)
	}
	if count(unlessFile.Operations, ColumnChanged) != 1 || count(unlessFile.Operations, ColumnAdded) != 1 {
		t.Fatalf("got %v", unlessFile.Operations)
	}
	_, err = run(t, env, unlessFile, src(writeCSV(t, env)))
	if !errors.As(err, &changed) {
		t.Fatalf("got %v", err)
	}
}

func TestProvenance(t *testing.T) {
	env := newEnv(t)
	path := writeCSV(t, env)
	o := &FrameOverride{MutationPolicy: AllowAlways}
	globals, err := run(t, env, o, `
loaded = pd.read_csv(filepath_or_buffer="`+path+`")
direct = pd.DataFrame({"a": [1]})
direct.pop("a")
`)
	if err != nil {
		t.Fatal(err)
	}
	loaded := globals["loaded"].(*frames.Frame)
	if loaded.CreatedBy != "read_csv" || loaded.FilePath != path {
		t.Fatalf("got %q %q", loaded.CreatedBy, loaded.FilePath)
	}
	direct := globals["direct"].(*frames.Frame)
	if direct.CreatedBy != "" || direct.FilePath != "" {
		t.Fatalf("got %q %q", direct.CreatedBy, direct.FilePath)
	}
	if count(o.Operations, Creation) != 2 {
		t.Fatalf("got %v", o.Operations)
	}
	if o.Operations[0].Path != path {
		t.Fatalf("got %+v", o.Operations[0])
	}
	if count(o.Operations, ColumnRemoved) != 1 {
		t.Fatal()
	}
}

func TestRestoreOnError(t *testing.T) {
	env := newEnv(t)
	before := make(map[string]starlark.Value)
	for _, name := range env.Frames.FrameClass.SlotNames() {
		before[name], _ = env.Frames.FrameClass.Slot(name)
	}
	readCSV, _ := env.Frames.Module.Slot("read_csv")
	_, err := run(t, env, &FrameOverride{MutationPolicy: AllowAlways}, `fail()`)
	if err == nil {
		t.Fatal()
	}
	for name, v := range before {
		if got, _ := env.Frames.FrameClass.Slot(name); got != v {
			t.Fatalf("%s not restored", name)
		}
	}
	if got, _ := env.Frames.Module.Slot("read_csv"); got != readCSV {
		t.Fatal("read_csv not restored")
	}
}

func TestMissingColumn(t *testing.T) {
	env := newEnv(t)
	_, err := run(t, env, &FrameOverride{MutationPolicy: AllowAlways}, `
df = pd.DataFrame({"height": [1], "weight": [2]})
df["age"]
`)
	var missing *MissingColumnError
	if !errors.As(err, &missing) {
		t.Fatalf("got %v", err)
	}
	if missing.Key != "age" || strings.Join(missing.Available, ",") != "height,weight" {
		t.Fatalf("got %+v", missing)
	}
}

func TestUnsavedModified(t *testing.T) {
	env := newEnv(t)
	path := writeCSV(t, env)
	out := filepath.Join(env.Dir, "out.csv")
	o := &FrameOverride{
		MutationPolicy:       AllowAlways,
		EnforceSavingAltered: true,
	}
	if _, err := run(t, env, o, `
df = pd.read_csv("`+path+`")
df["c"] = 1
`); err != nil {
		t.Fatal(err)
	}
	if len(o.Issues()) != 1 || o.Issues()[0].Category != "Unsaved modified dataframe" {
		t.Fatalf("got %v", o.Issues())
	}

	env = newEnv(t)
	path = writeCSV(t, env)
	o = &FrameOverride{
		MutationPolicy:       AllowAlways,
		EnforceSavingAltered: true,
	}
	if _, err := run(t, env, o, `
df = pd.read_csv("`+path+`")
df["c"] = 1
df.to_csv("`+out+`")
`); err != nil {
		t.Fatal(err)
	}
	if len(o.Issues()) != 0 {
		t.Fatalf("got %v", o.Issues())
	}
	if count(o.Operations, SavedToFile) != 1 {
		t.Fatal()
	}
}

func TestFloatDigits(t *testing.T) {
	env := newEnv(t)
	o := &FrameOverride{
		MutationPolicy: AllowAlways,
		FloatDigits:    3,
	}
	globals, err := run(t, env, o, `
df = pd.DataFrame({"v": [1.23456]})
text = df.to_csv(index=False)
`)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(globals["text"].(starlark.String)); got != "v\n1.23\n" {
		t.Fatalf("got %q", got)
	}
	// values are untouched
	col, _ := globals["df"].(*frames.Frame).Column("v")
	if col[0].(starlark.Float) != 1.23456 {
		t.Fatal()
	}
	if frames.FloatDigits(env.Thread) != 0 {
		t.Fatal("digits not restored")
	}
}

const regression = `
df = pd.DataFrame({
  "x": [1, 2, 3, 4, 5, 6, 7, 8],
  "y": [1.2, 1.9, 3.4, 3.8, 5.3, 5.8, 7.1, 8.2],
})
model = sm.OLS(df["y"], sm.add_constant(df[["x"]]))
res = model.fit()
pv = res.pvalues
fp = res.f_pvalue
params = res.params
table = res.summary()
`

func TestFitTaint(t *testing.T) {
	env := newEnv(t)
	o := &StatsOverride{UnpackPrevention: UnpackNever}
	globals, err := run(t, env, o, regression)
	if err != nil {
		t.Fatal(err)
	}
	pv := globals["pv"].(*frames.Series)
	for _, v := range pv.Values {
		if !pvalues.IsTainted(v) {
			t.Fatalf("got %s", v.Type())
		}
	}
	if p := pv.Values[1].(pvalues.PValue); p.CreatedBy != "OLS" || p.VariableName != "pvalues[x]" {
		t.Fatalf("got %+v", p)
	}
	if !pvalues.IsTainted(globals["fp"]) {
		t.Fatal()
	}
	if pvalues.ContainsTainted(globals["params"]) {
		t.Fatal()
	}
	table := globals["table"].(*frames.Frame)
	col, ok := table.Column(stats.PColumn("t"))
	if !ok {
		t.Fatalf("got %v", table.Columns())
	}
	if !pvalues.IsTainted(col[0]) {
		t.Fatal()
	}
	if pvalues.IsTainted(table.Cell("coef", 0)) {
		t.Fatal()
	}
	if len(o.Issues()) != 0 {
		t.Fatalf("got %v", o.Issues())
	}
}

func TestRefit(t *testing.T) {
	env := newEnv(t)
	o := &StatsOverride{UnpackPrevention: UnpackNever}
	_, err := run(t, env, o, regression+`
res2 = model.fit()
`)
	var refit *RefitError
	if !errors.As(err, &refit) {
		t.Fatalf("got %v", err)
	}
	if refit.Class != "OLS" || len(o.Refits) != 1 {
		t.Fatalf("got %+v", refit)
	}
}

func TestTrustedFitsAreNotWrapped(t *testing.T) {
	env := newEnv(t)
	o := &StatsOverride{UnpackPrevention: UnpackNever}
	var globals starlark.StringDict
	var err error
	if e := (guards.Stack{o}).Run(env, func() {
		globals, err = starlark.ExecFileOptions(fileOptions, env.Thread, "helpers.star", regression, env.Builtins.Members())
	}); e != nil {
		t.Fatal(e)
	}
	if err != nil {
		t.Fatal(err)
	}
	if pvalues.ContainsTainted(globals["pv"]) {
		t.Fatal()
	}
}

const ttest = `
a = [1.0, 2.0, 3.0, 4.0, 5.0]
b = [2.5, 3.5, 4.5, 6.0, 7.5]
res = stats.ttest_ind(a, b)
p = res.pvalue
`

func TestTestFunctions(t *testing.T) {
	env := newEnv(t)
	o := &StatsOverride{UnpackPrevention: UnpackNever}
	globals, err := run(t, env, o, ttest+`
statistic, pvalue, df = res
z = stats.zscore(a)
`)
	if err != nil {
		t.Fatal(err)
	}
	if !pvalues.IsTainted(globals["p"]) || !pvalues.IsTainted(globals["pvalue"]) {
		t.Fatal()
	}
	if pvalues.IsTainted(globals["statistic"]) {
		t.Fatal()
	}
	// zscore does not return a p-value
	if pvalues.ContainsTainted(globals["z"]) {
		t.Fatal()
	}
	if p := globals["p"].(pvalues.PValue); p.CreatedBy != "ttest_ind" {
		t.Fatalf("got %s", p.CreatedBy)
	}
}

func TestUnpackPrevention(t *testing.T) {
	env := newEnv(t)
	o := &StatsOverride{UnpackPrevention: UnpackAlways}
	_, err := run(t, env, o, ttest+`
statistic, pvalue, df = res
`)
	if err == nil {
		t.Fatal()
	}
	var unpack *UnpackError
	if !errors.As(intercept.Aborted(env.Thread), &unpack) {
		t.Fatalf("got %v", intercept.Aborted(env.Thread))
	}
	if unpack.Func != "ttest_ind" {
		t.Fatal()
	}

	env = newEnv(t)
	o = &StatsOverride{UnpackPrevention: UnpackWarn}
	if _, err := run(t, env, o, ttest+`
statistic, pvalue, df = res
statistic, pvalue, df = res
`); err != nil {
		t.Fatal(err)
	}
	if len(o.Issues()) != 1 || o.Issues()[0].CodeProblem != issues.CodeProblemNonBreakingRuntime {
		t.Fatalf("got %v", o.Issues())
	}
}

func TestEncodeOverrides(t *testing.T) {
	env := newEnv(t)
	stack := guards.Stack{
		&FrameOverride{MutationPolicy: AllowAlways},
		&StatsOverride{UnpackPrevention: UnpackWarn},
	}
	if e := stack.Run(env, func() {
		starlark.ExecFileOptions(fileOptions, env.Thread, userFile, ttest+`
statistic, pvalue, df = res
d = pd.DataFrame({"a": [1]})
`, env.Builtins.Members())
	}); e != nil {
		t.Fatal(e)
	}
	data, err := guards.Encode(stack)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := guards.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	frameOverride, ok := guards.Find[*FrameOverride](decoded)
	if !ok || count(frameOverride.Operations, Creation) == 0 {
		t.Fatal()
	}
	if len(decoded.Issues()) != 1 {
		t.Fatalf("got %v", decoded.Issues())
	}
}
