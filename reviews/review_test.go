package reviews

import (
	"fmt"
	"strings"
	"testing"

	"github.com/reusee/scisandbox/artifacts"
	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/pvalues"
)

func str(s string) *string {
	return &s
}

// displayTable builds a table traced to df_age.pkl.
func displayTable(rows int) *artifacts.Artifact {
	env := &frames.Envelope{
		Format:    frames.EnvelopeFormat,
		Columns:   []string{"Mean age", "P-value"},
		IndexName: "Cohort",
		FilePath:  "df_age.pkl",
	}
	var ages, ps []frames.Cell
	for i := 0; i < rows; i++ {
		env.Index = append(env.Index, frames.Cell{Kind: frames.CellString, String: fmt.Sprintf("Cohort %d", i)})
		ages = append(ages, frames.Cell{Kind: frames.CellFloat, Float: 40 + float64(i)/3})
		ps = append(ps, frames.Cell{Kind: frames.CellPValue, PValue: pvalues.New(0.01*float64(i+1), "ttest_ind", nil)})
	}
	env.Data = [][]frames.Cell{ages, ps}
	return &artifacts.Artifact{
		Kind:     artifacts.KindTable,
		Pass:     2,
		Filename: "table_age.tex",
		Frame:    env,
		ArgTypes: map[string]string{
			"df":       "DataFrame",
			"filename": "string",
			"caption":  "string",
		},
		Caption:    str("Distribution of age by cohort"),
		SourceFile: "df_age.pkl",
	}
}

func check(t *testing.T, th Thresholds, a *artifacts.Artifact) issues.List {
	t.Helper()
	list, err := CheckArtifact(&Review{
		Artifact:   a,
		Thresholds: &th,
		Sources: map[string]*artifacts.Artifact{
			"df_age.pkl": {Kind: artifacts.KindTable, Pass: 1, Filename: "df_age.pkl"},
		},
	}, issues.NewTracker())
	if err != nil {
		t.Fatal(err)
	}
	return list
}

func TestCleanTable(t *testing.T) {
	if list := check(t, DefaultThresholds(), displayTable(3)); len(list) > 0 {
		t.Fatalf("got %v", list)
	}
}

func TestCaption(t *testing.T) {
	a := displayTable(3)
	a.Caption = nil
	a.ArgTypes["caption"] = "NoneType"
	list := check(t, DefaultThresholds(), a)
	n := 0
	for _, issue := range list {
		if strings.Contains(strings.ToLower(issue.Category), "caption") {
			n++
		}
	}
	if n != 1 || len(list) != 1 {
		t.Fatalf("got %v", list)
	}

	a = displayTable(3)
	a.Frame.Columns[0] = "BMI"
	a.Glossary = map[string]string{"BMI": "Body mass index"}
	if list := check(t, DefaultThresholds(), a); len(list) > 0 {
		t.Fatalf("got %v", list)
	}
}

func TestAnnotation(t *testing.T) {
	for _, c := range []struct {
		edit     func(a *artifacts.Artifact)
		category string
	}{
		{func(a *artifacts.Artifact) { a.Caption = str("Table of ages") }, "Caption wording"},
		{func(a *artifacts.Artifact) { a.Caption = str("Ages of <cohort>") }, "Caption placeholder"},
		{func(a *artifacts.Artifact) { a.Note = str("distribution of age, by cohort.") }, "Note repeats caption"},
		{func(a *artifacts.Artifact) { a.Frame.Columns[0] = "BMI" }, "Undefined abbreviations"},
		{func(a *artifacts.Artifact) { a.Glossary = map[string]string{"SD": "Standard deviation"} }, "Glossary keys not found"},
		{func(a *artifacts.Artifact) { a.Frame.Columns[1] = "P>|t|" }, "Label characters"},
	} {
		a := displayTable(3)
		c.edit(a)
		list := check(t, DefaultThresholds(), a)
		if len(list) != 1 || list[0].Category != c.category {
			t.Fatalf("%s: got %v", c.category, list)
		}
	}
}

func TestTooManyRows(t *testing.T) {
	th := DefaultThresholds()
	th.MaxTableRows = 20
	list := check(t, th, displayTable(30))
	var found []issues.Issue
	for _, issue := range list {
		if issue.Category == "Too many rows" {
			found = append(found, issue)
		}
	}
	if len(found) != 1 {
		t.Fatalf("got %v", list)
	}
	if !strings.Contains(found[0].IssueText, "20") || !strings.Contains(found[0].IssueText, "30") {
		t.Fatalf("got %s", found[0].IssueText)
	}
}

func TestValidateFilename(t *testing.T) {
	th := DefaultThresholds()
	for _, c := range []struct {
		kind     artifacts.Kind
		pass     int
		filename string
		ok       bool
	}{
		{artifacts.KindTable, 2, "table_1.tex", true},
		{artifacts.KindTable, 2, "figure_1.tex", false},
		{artifacts.KindTable, 2, "out/table_1.tex", false},
		{artifacts.KindTable, 2, "", false},
		{artifacts.KindFigure, 2, "figure_age.tex", true},
		{artifacts.KindTable, 1, "df_age.pkl", true},
		{artifacts.KindTable, 1, "age.pkl", false},
	} {
		list := ValidateFilename(&th, &artifacts.Artifact{
			Kind:     c.kind,
			Pass:     c.pass,
			Filename: c.filename,
		})
		if list.Clean() != c.ok {
			t.Fatalf("%s: got %v", c.filename, list)
		}
	}
}

func TestSyntaxStops(t *testing.T) {
	a := displayTable(3)
	a.ArgTypes["df"] = "list"
	a.Caption = nil
	list := check(t, DefaultThresholds(), a)
	if len(list) != 1 || list[0].Category != "Wrong argument types" {
		t.Fatalf("got %v", list)
	}
}

func TestContinuity(t *testing.T) {
	a := displayTable(3)
	a.SourceFile = ""
	list := check(t, DefaultThresholds(), a)
	if len(list) != 1 || list[0].Category != "Display item not traceable" {
		t.Fatalf("got %v", list)
	}

	a = displayTable(3)
	a.Filename = "table_2.tex"
	list = check(t, DefaultThresholds(), a)
	if len(list) != 1 || list[0].Category != "Display item naming" || !strings.Contains(list[0].Instructions, "table_age.tex") {
		t.Fatalf("got %v", list)
	}
}

func TestContent(t *testing.T) {
	a := displayTable(3)
	a.Frame.Data[0][1] = frames.Cell{Kind: frames.CellNone}
	list := check(t, DefaultThresholds(), a)
	if len(list) != 1 || list[0].Category != "NaN values" || !strings.Contains(list[0].IssueText, "Mean age") {
		t.Fatalf("got %v", list)
	}

	a = displayTable(3)
	a.Frame.Data[1][0] = frames.Cell{Kind: frames.CellOther, Type: "function", String: "<function f>"}
	list = check(t, DefaultThresholds(), a)
	if len(list) != 1 || list[0].Category != "Unsupported value types" {
		t.Fatalf("got %v", list)
	}

	a = displayTable(3)
	a.Frame.Index[0] = frames.Cell{Kind: frames.CellOther, Type: "tuple", String: `("a", 1)`}
	list = check(t, DefaultThresholds(), a)
	if len(list) != 1 || list[0].Category != "Multi-level index" {
		t.Fatalf("got %v", list)
	}
}

func TestDuplicates(t *testing.T) {
	th := DefaultThresholds()
	prior := displayTable(3)
	prior.Filename = "table_other.tex"
	a := displayTable(3)
	list, err := CheckArtifact(&Review{
		Artifact:   a,
		Thresholds: &th,
		Prior:      []*artifacts.Artifact{prior},
		Sources: map[string]*artifacts.Artifact{
			"df_age.pkl": {},
		},
	}, issues.NewTracker())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Category != "Duplicate dataframes" || list[0].ForgiveAfter == nil {
		t.Fatalf("got %v", list)
	}
}

func TestRefinement(t *testing.T) {
	a := displayTable(3)
	a.Frame.Data[0] = []frames.Cell{
		{Kind: frames.CellInt, Int: 1},
		{Kind: frames.CellInt, Int: 1},
		{Kind: frames.CellInt, Int: 1},
	}
	list := check(t, DefaultThresholds(), a)
	if len(list) != 1 || list[0].Category != "Constant columns" {
		t.Fatalf("got %v", list)
	}

	a = displayTable(3)
	for i := range a.Frame.Index {
		a.Frame.Index[i] = frames.Cell{Kind: frames.CellInt, Int: int64(i)}
	}
	list = check(t, DefaultThresholds(), a)
	if len(list) != 1 || list[0].Category != "Uninformative index" {
		t.Fatalf("got %v", list)
	}
}

func TestTooWide(t *testing.T) {
	th := DefaultThresholds()
	th.MaxWidth = 30
	a := displayTable(2)
	a.Frame.Columns[0] = "Mean age at first hospital admission in years"
	list := check(t, th, a)
	if len(list) != 1 || list[0].Category != "Table too wide" {
		t.Fatalf("got %v", list)
	}
	if !strings.Contains(list[0].Instructions, "Mean age at first hospital admission in years") {
		t.Fatalf("got %s", list[0].Instructions)
	}
}

func TestCompilationError(t *testing.T) {
	a := displayTable(3)
	a.Caption = str("Age in {years")
	list := check(t, DefaultThresholds(), a)
	if len(list) != 1 || list[0].Category != "LaTeX compilation" {
		t.Fatalf("got %v", list)
	}
}

func TestFirstPass(t *testing.T) {
	a := displayTable(3)
	a.Pass = 1
	a.Filename = "df_age.pkl"
	a.Caption = nil
	a.ArgTypes = nil
	if list := check(t, DefaultThresholds(), a); len(list) > 0 {
		t.Fatalf("got %v", list)
	}
}

func TestAbbreviated(t *testing.T) {
	for label, want := range map[string]bool{
		"Age":           false,
		"Mean age":      false,
		"BMI":           true,
		"age_group":     true,
		"Std. dev":      true,
		"P-value":       false,
		"CIs":           true,
		"Odds ratio OR": true,
	} {
		if Abbreviated(label) != want {
			t.Fatalf("%s: got %v", label, !want)
		}
	}
}
