package issues

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestMostSevere(t *testing.T) {
	list := []Issue{
		{Category: "a", CodeProblem: CodeProblemStaticCheck},
		{Category: "b", CodeProblem: CodeProblemOutputContentA},
		{Category: "c", CodeProblem: CodeProblemOutputContentA},
		{Category: "d", CodeProblem: CodeProblemOutputDesign},
	}
	got := MostSevere(list)
	if len(got) != 2 || got[0].Category != "b" || got[1].Category != "c" {
		t.Fatalf("got %v", got)
	}
	if MostSevere(nil) != nil {
		t.Fatal()
	}
}

func TestAnyBlocking(t *testing.T) {
	if AnyBlocking([]Issue{{CodeProblem: CodeProblemStaticCheck}}) {
		t.Fatal()
	}
	if !AnyBlocking([]Issue{{CodeProblem: CodeProblemNonBreakingRuntime}, {CodeProblem: CodeProblemRuntimeError}}) {
		t.Fatal()
	}
}

func TestRunIssueError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Raise(Issue{
		Category:  "Forbidden call",
		Item:      "print",
		IssueText: "do not print",
	}))
	var runErr *RunIssueError
	if !errors.As(err, &runErr) {
		t.Fatal()
	}
	if len(runErr.Issues) != 1 {
		t.Fatalf("got %v", runErr.Issues)
	}
	if !strings.Contains(err.Error(), "Forbidden call (print): do not print") {
		t.Fatalf("got %s", err.Error())
	}
}

func TestFormat(t *testing.T) {
	text := Format([]Issue{
		{Category: "Table", Item: "df_1", IssueText: "missing caption", Instructions: "add captions", CodeProblem: CodeProblemOutputContentC},
		{Category: "Table", Item: "df_2", IssueText: "missing caption", Instructions: "add captions", CodeProblem: CodeProblemOutputContentC},
		{Category: "Style", IssueText: "ignored", CodeProblem: CodeProblemStaticCheck},
	})
	if strings.Contains(text, "ignored") {
		t.Fatalf("got %s", text)
	}
	if strings.Count(text, "add captions") != 1 {
		t.Fatalf("got %s", text)
	}
	if !strings.HasPrefix(text, "# Table") {
		t.Fatalf("got %s", text)
	}
}

func TestIssueYAML(t *testing.T) {
	bs, err := yaml.Marshal(Issue{
		Category:     "a",
		IssueText:    "b",
		CodeProblem:  CodeProblemMissingOutputFiles,
		ForgiveAfter: ForgiveAfter(3),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bs), "code_problem: missing-output-files") {
		t.Fatalf("got %s", bs)
	}
	var issue Issue
	if err := yaml.Unmarshal(bs, &issue); err != nil {
		t.Fatal(err)
	}
	if issue.CodeProblem != CodeProblemMissingOutputFiles || *issue.ForgiveAfter != 3 {
		t.Fatalf("got %+v", issue)
	}
}
