package reviews

import (
	"bytes"
	"context"
	"encoding/gob"
	"strings"
	"testing"

	"github.com/reusee/dscope"
	"github.com/reusee/scisandbox/artifacts"
	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/modes"
	"github.com/reusee/scisandbox/sandbox"
)

func newEngine(t *testing.T) *Engine {
	var engine *Engine
	dscope.New(
		modes.ForTest(t),
		new(Module),
	).Call(func(e *Engine) {
		engine = e
	})
	return engine
}

func pickle(t *testing.T, source string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(frames.Envelope{
		Format:   frames.EnvelopeFormat,
		Columns:  []string{"age"},
		FilePath: source,
		Index:    []frames.Cell{{Kind: frames.CellInt, Int: 0}},
		Data:     [][]frames.Cell{{{Kind: frames.CellFloat, Float: 42}}},
	}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func categories(list issues.List) []string {
	var ret []string
	for _, issue := range list {
		ret = append(ret, issue.Category)
	}
	return ret
}

func TestEngineFailure(t *testing.T) {
	engine := newEngine(t)
	list, err := engine.Check(context.Background(), &sandbox.Outcome{
		Code: "x = 1\n",
		Failure: &sandbox.Failure{
			Kind:      sandbox.FailureTimeout,
			Message:   "timeout",
			Backtrace: "gpt_code.star:1:1",
		},
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("got %v", list)
	}
	if list[0].Category != "Timeout" || list[0].CodeProblem != issues.CodeProblemRuntimeError {
		t.Fatalf("got %+v", list[0])
	}
	if !strings.Contains(list[0].IssueText, "gpt_code.star:1:1") {
		t.Fatalf("got %s", list[0].IssueText)
	}

	raised := issues.Issue{Category: "Missing column", CodeProblem: issues.CodeProblemRuntimeError}
	list, err = engine.Check(context.Background(), &sandbox.Outcome{
		Failure: &sandbox.Failure{
			Kind:   sandbox.FailureRunIssue,
			Issues: []issues.Issue{raised},
		},
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Category != raised.Category {
		t.Fatalf("got %v", list)
	}
}

func TestEngineFiles(t *testing.T) {
	engine := newEngine(t)
	reqs := sandbox.Requirements{
		{Pattern: "df_*.pkl", MinimalCount: 2},
		{Pattern: "results.txt", MinimalCount: 1, KeepContent: true, MaxSize: 10, TargetPrecision: 3},
	}
	content := []byte("mean 12.34567\n")
	list, err := engine.Check(context.Background(), &sandbox.Outcome{
		CreatedFiles: []string{"df_age.pkl", "results.txt"},
		Files: map[string][]byte{
			"df_age.pkl":  pickle(t, "data.csv"),
			"results.txt": content,
		},
		FileSizes: map[string]int64{
			"df_age.pkl":  100,
			"results.txt": int64(len(content)),
		},
	}, reqs, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := categories(list)
	for _, want := range []string{
		sandbox.MissingFilesIssue(reqs[0], 1).Category,
		sandbox.OversizedFileIssue(reqs[1], "results.txt", int64(len(content))).Category,
		"Too many significant digits",
	} {
		n := 0
		for _, c := range got {
			if c == want {
				n++
			}
		}
		if n == 0 {
			t.Fatalf("%s not in %v", want, got)
		}
	}
}

func TestEngineArtifacts(t *testing.T) {
	engine := newEngine(t)
	engine.Parallel = 2

	// clean
	list, err := engine.Check(context.Background(), &sandbox.Outcome{
		CreatedFiles: []string{"df_age.pkl"},
		Files:        map[string][]byte{"df_age.pkl": pickle(t, "data.csv")},
		Artifacts:    []*artifacts.Artifact{displayTable(3)},
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) > 0 {
		t.Fatalf("got %v", list)
	}

	// source from a previous step
	prior := &artifacts.Artifact{Kind: artifacts.KindTable, Pass: 1, Filename: "df_age.pkl"}
	list, err = engine.Check(context.Background(), &sandbox.Outcome{
		Artifacts: []*artifacts.Artifact{displayTable(3)},
	}, nil, []*artifacts.Artifact{prior})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) > 0 {
		t.Fatalf("got %v", list)
	}

	// unreadable pickle
	list, err = engine.Check(context.Background(), &sandbox.Outcome{
		CreatedFiles: []string{"df_bad.pkl"},
		Files:        map[string][]byte{"df_bad.pkl": []byte("foo")},
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Category != "Unreadable dataframe file" {
		t.Fatalf("got %v", list)
	}
}

func TestEngineForgiveness(t *testing.T) {
	engine := newEngine(t)
	outcome := &sandbox.Outcome{
		Issues: []issues.Issue{{
			Category:     "Runtime warning",
			CodeProblem:  issues.CodeProblemNonBreakingRuntime,
			ForgiveAfter: issues.ForgiveAfter(1),
		}},
	}
	for i, want := range []int{1, 0, 0} {
		list, err := engine.Check(context.Background(), outcome, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != want {
			t.Fatalf("%d: got %v", i, list)
		}
	}
}

func TestStaticCheck(t *testing.T) {
	for _, c := range []struct {
		code string
		want []string
	}{
		{"x = 1\n", nil},
		{"pd = 1\npd = 2\n", []string{"Shadowing provided names"}},
		{"def print(x):\n    return x\n", []string{"Shadowing provided names"}},
		{"a, str = 1, 2\n", []string{"Shadowing provided names"}},
		{"r = {}\nr['p_value'] = 0.1\ny = round(r['p_value'], 2)\n", []string{"Rounding p-values"}},
		{"y = round(res.pvalues, 3)\n", []string{"Rounding p-values"}},
		{"y = round(mean, 3)\n", nil},
		{"x = [1, 2, 3, 4, 5, 6, 7, -8.5]\n", []string{"Hard-coded data"}},
		{"x = [1, 2, 3]\n", nil},
		{"x = (\n", nil},
	} {
		list := StaticCheck(c.code)
		got := categories(list)
		if strings.Join(got, ",") != strings.Join(c.want, ",") {
			t.Fatalf("%q: got %v", c.code, got)
		}
		for _, issue := range list {
			if issue.CodeProblem != issues.CodeProblemStaticCheck {
				t.Fatalf("got %v", issue)
			}
		}
	}
}

func TestSignificantDigits(t *testing.T) {
	for s, want := range map[string]int{
		"0.05":     1,
		"12.345":   5,
		"1.20":     3,
		"3.1e-05":  2,
		"100.5":    4,
		"0.000123": 3,
	} {
		if got := significantDigits(s); got != want {
			t.Fatalf("%s: got %d", s, got)
		}
	}
}
