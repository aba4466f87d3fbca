package reviews

import (
	"errors"
	"fmt"
	"slices"

	"github.com/reusee/scisandbox/artifacts"
	"github.com/reusee/scisandbox/checks"
	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/renders"
)

var compilationChecker = &checks.Checker[*Review]{
	Name: "compilation",
	Checks: []checks.Check[*Review]{
		{Name: "compile", Run: checkCompile},
		{Name: "width", Run: checkWidth},
	},
}

func checkCompile(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	a := r.Artifact
	if !r.displayItem() || a.Frame == nil {
		return checks.Stop, nil
	}
	err := renders.Compile(a.Render(r.Thresholds.Digits))
	if err == nil {
		return checks.Continue, nil
	}
	var compileErr *renders.CompileError
	if !errors.As(err, &compileErr) {
		return checks.Stop, err
	}
	s.AddIssue(issues.Issue{
		Category:     "LaTeX compilation",
		Item:         r.item(),
		IssueText:    compileErr.Error(),
		Instructions: "Captions and notes are LaTeX. Escape special characters, and put math in $...$.",
		CodeProblem:  issues.CodeProblemOutputContentA,
	})
	// nothing to measure
	return checks.Stop, nil
}

func checkWidth(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	a := r.Artifact
	if a.Kind != artifacts.KindTable {
		return checks.Continue, nil
	}
	spec := a.TableSpec(r.Thresholds.Digits)
	width := renders.TableWidth(spec)
	s.Intermediate[keyWidth] = width
	if width <= r.Thresholds.MaxWidth {
		return checks.Continue, nil
	}

	issue := issues.Issue{
		Category:    "Table too wide",
		Item:        r.item(),
		IssueText:   fmt.Sprintf("The table is %d characters wide, more than the maximum of %d.", width, r.Thresholds.MaxWidth),
		CodeProblem: issues.CodeProblemOutputContentC,
	}
	transposed := spec.Transpose()
	if tw := renders.TableWidth(transposed); tw <= r.Thresholds.MaxWidth && len(transposed.Rows) <= r.Thresholds.MaxTableRows {
		issue.Instructions = fmt.Sprintf("The transposed table is %d characters wide and fits. Transpose the dataframe with `df.T`.", tw)
		s.AddIssue(issue)
		return checks.Continue, nil
	}
	long := renders.LongLabels(spec, r.Thresholds.LongLabelFactor)
	for _, label := range labels(a) {
		if renders.DisplayWidth(label) > r.Thresholds.MaxLabelWidth && !slices.Contains(long, label) {
			long = append(long, label)
		}
	}
	if len(long) > 0 {
		issue.Instructions = fmt.Sprintf("Shorten the long labels %s, and define abbreviations in the glossary. Or drop less important columns.", quoteList(long))
	} else {
		issue.Instructions = "Drop less important columns, or split the table."
	}
	s.AddIssue(issue)
	return checks.Continue, nil
}
