package reviews

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/reusee/scisandbox/checks"
	"github.com/reusee/scisandbox/issues"
)

var continuityChecker = &checks.Checker[*Review]{
	Name: "continuity",
	Checks: []checks.Check[*Review]{
		{Name: "source", Run: checkSource},
		{Name: "naming", Run: checkSourceNaming},
	},
}

// stem returns the part of a filename after the first underscore and before the extension.
func stem(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if _, after, ok := strings.Cut(base, "_"); ok {
		return after
	}
	return base
}

func checkSource(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	a := r.Artifact
	if !r.displayItem() {
		return checks.Continue, nil
	}
	if a.SourceFile == "" {
		s.AddIssue(issues.Issue{
			Category:     "Display item not traceable",
			Item:         r.item(),
			IssueText:    "The dataframe was not loaded from a saved dataframe file.",
			Instructions: fmt.Sprintf("Load the dataframe with `pd.read_pickle` from a %q file and build the display item from it.", r.Thresholds.PicklePattern),
			CodeProblem:  issues.CodeProblemOutputContentA,
		})
		return checks.Stop, nil
	}
	if _, ok := r.Sources[filepath.Base(a.SourceFile)]; !ok {
		s.AddIssue(issues.Issue{
			Category:     "Display item not traceable",
			Item:         r.item(),
			IssueText:    fmt.Sprintf("The dataframe was loaded from %q, which is not a dataframe saved by the analysis code.", a.SourceFile),
			Instructions: fmt.Sprintf("Load one of the %q files created by the analysis code.", r.Thresholds.PicklePattern),
			CodeProblem:  issues.CodeProblemOutputContentA,
		})
		return checks.Stop, nil
	}
	return checks.Continue, nil
}

func checkSourceNaming(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	a := r.Artifact
	if !r.displayItem() || a.Filename == "" {
		return checks.Continue, nil
	}
	if stem(a.Filename) == stem(a.SourceFile) {
		return checks.Continue, nil
	}
	s.AddIssue(issues.Issue{
		Category:  "Display item naming",
		Item:      r.item(),
		IssueText: fmt.Sprintf("The display item is built from %q but is named %q.", filepath.Base(a.SourceFile), filepath.Base(a.Filename)),
		Instructions: fmt.Sprintf("Name the display item after its dataframe file, for example %q for %q.",
			strings.Replace(r.Thresholds.FilenamePattern(a), "*", stem(a.SourceFile), 1),
			filepath.Base(a.SourceFile)),
		CodeProblem:  issues.CodeProblemOutputDesign,
		ForgiveAfter: issues.ForgiveAfter(1),
	})
	return checks.Continue, nil
}
