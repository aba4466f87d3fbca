package renders

import (
	"errors"
	"strings"
	"testing"
)

func sampleTable() TableSpec {
	return TableSpec{
		Columns:   []string{"mean_age", "n"},
		IndexName: "cohort",
		Index:     []string{"A", "B"},
		Rows: [][]string{
			{"41.2", "120"},
			{"39.8", "95"},
		},
		Caption: "Age by cohort, $p<0.05$",
		Note:    "Values are means.",
		Label:   "table:age",
		Glossary: []GlossaryEntry{
			{Key: "n", Value: "Number of subjects"},
		},
	}
}

func TestTableCompiles(t *testing.T) {
	latex := Table(sampleTable())
	if err := Compile(latex); err != nil {
		t.Fatalf("%v\n%s", err, latex)
	}
	if !strings.Contains(latex, `mean\_age`) {
		t.Fatalf("got %s", latex)
	}
	if !strings.Contains(latex, `\item \textbf{n}: Number of subjects`) {
		t.Fatalf("got %s", latex)
	}
}

func TestCompileErrors(t *testing.T) {
	for _, c := range []struct {
		source string
		line   int
	}{
		{"\\caption{mean_age}", 1},
		{"ok\n\\caption{a", 2},
		{"$x", 1},
		{"\\begin{table}\n\\end{figure}", 2},
		{"\\begin{table}", 1},
		{"a}", 1},
		{"# of subjects", 1},
	} {
		err := Compile(c.source)
		var compileErr *CompileError
		if !errors.As(err, &compileErr) {
			t.Fatalf("%q: got %v", c.source, err)
		}
		if compileErr.Line != c.line {
			t.Fatalf("%q: got line %d", c.source, compileErr.Line)
		}
	}
	for _, source := range []string{
		`\% and \_ and $a_b^2$`,
		`50% % comment with _`,
		`\textbackslash{} \\`,
	} {
		if err := Compile(source); err != nil {
			t.Fatalf("%q: %v", source, err)
		}
	}
}

func TestWidth(t *testing.T) {
	if got := DisplayWidth("年齢"); got != 4 {
		t.Fatalf("got %d", got)
	}
	if got := DisplayWidth("age"); got != 3 {
		t.Fatalf("got %d", got)
	}
	spec := sampleTable()
	// cohort(6) + mean_age(8) + n(3) + gaps
	if got := TableWidth(spec); got != 6+8+3+2*2 {
		t.Fatalf("got %d", got)
	}
	transposed := spec.Transpose()
	if strings.Join(transposed.Columns, ",") != "A,B" || transposed.Rows[1][0] != "120" {
		t.Fatalf("got %+v", transposed)
	}
	if got := TableWidth(transposed); got != 8+4+4+2*2 {
		t.Fatalf("got %d", got)
	}
}

func TestLongLabels(t *testing.T) {
	spec := TableSpec{
		Columns: []string{"age", "sex", "bmi", "average systolic blood pressure"},
		Index:   []string{"a", "b"},
	}
	got := LongLabels(spec, 3)
	if len(got) != 1 || got[0] != "average systolic blood pressure" {
		t.Fatalf("got %v", got)
	}
}

func TestFigure(t *testing.T) {
	latex := Figure(FigureSpec{
		Kind:    "bar",
		X:       "group",
		Y:       []string{"mean_value"},
		Labels:  []string{"control", "treated"},
		Series:  [][]float64{{1.5, 2.5}},
		Errors:  [][]float64{{0.1, 0.2}},
		LogY:    true,
		Caption: "Mean value by group",
	})
	if err := Compile(latex); err != nil {
		t.Fatalf("%v\n%s", err, latex)
	}
	if !strings.Contains(latex, "semilogyaxis") || !strings.Contains(latex, "+- (0,0.2)") {
		t.Fatalf("got %s", latex)
	}
}
