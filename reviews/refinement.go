package reviews

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/reusee/scisandbox/artifacts"
	"github.com/reusee/scisandbox/checks"
	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/issues"
)

// refinementChecker reviews the content of display items once they are known to be well-formed.
var refinementChecker = &checks.Checker[*Review]{
	Name: "refinement",
	Checks: []checks.Check[*Review]{
		{Name: "labels", Run: checkUninterestingLabels},
		{Name: "range index", Run: checkRangeIndex},
		{Name: "log scale", Run: checkLogScale},
		{Name: "constant columns", Run: checkConstantColumns},
	},
}

var uninterestingLabel = regexp.MustCompile(`^(Unnamed: \d+|index|level_\d+|const)$`)

func checkUninterestingLabels(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	if !r.displayItem() || r.Artifact.Frame == nil {
		return checks.Continue, nil
	}
	var found []string
	for _, label := range labels(r.Artifact) {
		if uninterestingLabel.MatchString(label) {
			found = append(found, label)
		}
	}
	if len(found) == 0 {
		return checks.Continue, nil
	}
	s.AddIssue(issues.Issue{
		Category:     "Uninteresting labels",
		Item:         r.item(),
		IssueText:    fmt.Sprintf("The labels %s are not meaningful to a reader.", quoteList(found)),
		Instructions: "Drop these rows or columns, or rename them to describe what they show.",
		CodeProblem:  issues.CodeProblemOutputContentB,
	})
	return checks.Continue, nil
}

func checkRangeIndex(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	a := r.Artifact
	if !r.displayItem() || a.Kind != artifacts.KindTable || a.Frame == nil || len(a.Frame.Index) < 2 {
		return checks.Continue, nil
	}
	for i, c := range a.Frame.Index {
		if c.Kind != frames.CellInt || c.Int != int64(i) {
			return checks.Continue, nil
		}
	}
	s.AddIssue(issues.Issue{
		Category:     "Uninformative index",
		Item:         r.item(),
		IssueText:    "The table index is a plain row number.",
		Instructions: "Set the index to a column that names each row, using `set_index`.",
		CodeProblem:  issues.CodeProblemOutputContentC,
		ForgiveAfter: issues.ForgiveAfter(1),
	})
	return checks.Continue, nil
}

var ratioLabel = regexp.MustCompile(`(?i:\bratio\b|\bfold\b|p-?value)|\b(OR|HR|RR)\b|P>`)

func checkLogScale(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	a := r.Artifact
	if a.Kind != artifacts.KindFigure || a.LogY {
		return checks.Continue, nil
	}
	var found []string
	for _, y := range a.Y {
		if ratioLabel.MatchString(y) {
			found = append(found, y)
		}
	}
	if len(found) == 0 {
		return checks.Continue, nil
	}
	s.AddIssue(issues.Issue{
		Category:     "Consider log scale",
		Item:         r.item(),
		IssueText:    fmt.Sprintf("The plotted values %s look like ratios or p-values.", quoteList(found)),
		Instructions: "Plot them with `logy=True`.",
		CodeProblem:  issues.CodeProblemOutputDesign,
		ForgiveAfter: issues.ForgiveAfter(1),
	})
	return checks.Continue, nil
}

func checkConstantColumns(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	a := r.Artifact
	if !r.displayItem() || a.Kind != artifacts.KindTable || a.Frame == nil || len(a.Frame.Index) < 2 {
		return checks.Continue, nil
	}
	var found []string
	for i, column := range a.Frame.Columns {
		cells := a.Frame.Data[i]
		if !slices.ContainsFunc(cells[1:], func(c frames.Cell) bool {
			return !sameCell(c, cells[0])
		}) {
			found = append(found, column)
		}
	}
	if len(found) == 0 {
		return checks.Continue, nil
	}
	s.AddIssue(issues.Issue{
		Category:  "Constant columns",
		Item:      r.item(),
		IssueText: fmt.Sprintf("Columns %s have the same value in every row.", quoteList(found)),
		Instructions: strings.Join([]string{
			"Drop the constant columns from the table.",
			"If the value matters, state it in the table note instead.",
		}, " "),
		CodeProblem:  issues.CodeProblemOutputDesign,
		ForgiveAfter: issues.ForgiveAfter(1),
	})
	return checks.Continue, nil
}
