package reviews

import (
	"fmt"
	"slices"
	"strings"

	"github.com/reusee/scisandbox/checks"
	"github.com/reusee/scisandbox/issues"
)

var argTypes = map[string][]string{
	"df":       {"DataFrame"},
	"filename": {"string"},
	"caption":  {"string", "NoneType"},
	"note":     {"string", "NoneType"},
	"glossary": {"dict", "NoneType"},
	"label":    {"string", "NoneType"},
}

var syntaxChecker = &checks.Checker[*Review]{
	Name: "syntax",
	Checks: []checks.Check[*Review]{
		{Name: "argument types", Run: checkArgTypes},
		{Name: "filename", Run: checkFilename},
		{Name: "label", Run: checkLabel},
		{Name: "stop on error", Run: stopOnIssues},
	},
}

func stopOnIssues(s *checks.State[*Review]) (checks.Flow, error) {
	if len(s.Issues) > 0 {
		return checks.Stop, nil
	}
	return checks.Continue, nil
}

func checkArgTypes(s *checks.State[*Review]) (checks.Flow, error) {
	a := s.Subject.Artifact
	if a.Pass == 1 {
		return checks.Continue, nil
	}
	var names []string
	for name := range a.ArgTypes {
		names = append(names, name)
	}
	slices.Sort(names)
	var wrong []string
	for _, name := range names {
		want, ok := argTypes[name]
		if !ok || slices.Contains(want, a.ArgTypes[name]) {
			continue
		}
		wrong = append(wrong, fmt.Sprintf("`%s` is %s, expected %s", name, a.ArgTypes[name], strings.Join(want, " or ")))
	}
	if len(wrong) == 0 {
		return checks.Continue, nil
	}
	s.AddIssue(issues.Issue{
		Category:     "Wrong argument types",
		Item:         s.Subject.item(),
		IssueText:    strings.Join(wrong, "; ") + ".",
		Instructions: fmt.Sprintf("Call `to_%s` with a DataFrame, a filename string, and string annotations.", a.Kind),
		CodeProblem:  issues.CodeProblemCallSyntax,
	})
	// later checks read the frame
	return checks.Stop, nil
}

func checkFilename(s *checks.State[*Review]) (checks.Flow, error) {
	for _, issue := range ValidateFilename(s.Subject.Thresholds, s.Subject.Artifact) {
		issue.Item = s.Subject.item()
		s.AddIssue(issue)
	}
	return checks.Continue, nil
}

func checkLabel(s *checks.State[*Review]) (checks.Flow, error) {
	a := s.Subject.Artifact
	if a.Label == nil || s.Subject.Thresholds.AllowLabel {
		return checks.Continue, nil
	}
	s.AddIssue(issues.Issue{
		Category:     "Disallowed argument",
		Item:         s.Subject.item(),
		IssueText:    "The `label` argument should not be given. Labels are derived from the filename.",
		Instructions: "Remove the `label` argument.",
		CodeProblem:  issues.CodeProblemCallSyntax,
	})
	return checks.Continue, nil
}
