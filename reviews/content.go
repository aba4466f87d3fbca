package reviews

import (
	"fmt"
	"slices"
	"strings"

	"github.com/reusee/scisandbox/artifacts"
	"github.com/reusee/scisandbox/checks"
	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/issues"
)

var contentChecker = &checks.Checker[*Review]{
	Name: "content",
	Checks: []checks.Check[*Review]{
		{Name: "frame", Run: checkFrame},
		{Name: "index types", Run: checkIndexTypes},
		{Name: "nan", Run: checkNaN},
		{Name: "value types", Run: checkValueTypes},
		{Name: "size", Run: checkSize},
		{Name: "duplicates", Run: checkDuplicates},
	},
}

func checkFrame(s *checks.State[*Review]) (checks.Flow, error) {
	a := s.Subject.Artifact
	if a.Frame != nil && len(a.Frame.Columns) > 0 && len(a.Frame.Index) > 0 {
		return checks.Continue, nil
	}
	s.AddIssue(issues.Issue{
		Category:     "Empty dataframe",
		Item:         s.Subject.item(),
		IssueText:    "The dataframe has no rows or no columns.",
		Instructions: "Check the analysis steps that build the dataframe.",
		CodeProblem:  issues.CodeProblemOutputContentA,
	})
	return checks.Stop, nil
}

func checkIndexTypes(s *checks.State[*Review]) (checks.Flow, error) {
	env := s.Subject.Artifact.Frame
	var nested, other []string
	for _, c := range env.Index {
		switch c.Kind {
		case frames.CellString, frames.CellInt, frames.CellBool:
		case frames.CellOther:
			if c.Type == "tuple" {
				nested = append(nested, c.String)
			} else {
				other = append(other, c.Type)
			}
		default:
			other = append(other, kindName(c))
		}
	}
	if len(nested) > 0 {
		s.AddIssue(issues.Issue{
			Category:     "Multi-level index",
			Item:         s.Subject.item(),
			IssueText:    fmt.Sprintf("The index has tuple labels, like %s.", nested[0]),
			Instructions: "Use a single-level index of strings. Join the levels into one label if needed.",
			CodeProblem:  issues.CodeProblemOutputContentA,
		})
	}
	if len(other) > 0 {
		slices.Sort(other)
		s.AddIssue(issues.Issue{
			Category:     "Index types",
			Item:         s.Subject.item(),
			IssueText:    fmt.Sprintf("The index has labels of type %s.", strings.Join(slices.Compact(other), ", ")),
			Instructions: "Index labels should be strings or integers.",
			CodeProblem:  issues.CodeProblemOutputContentA,
		})
	}
	return checks.Continue, nil
}

func kindName(c frames.Cell) string {
	switch c.Kind {
	case frames.CellNone:
		return "NoneType"
	case frames.CellInt:
		return "int"
	case frames.CellFloat:
		return "float"
	case frames.CellString:
		return "string"
	case frames.CellBool:
		return "bool"
	case frames.CellPValue:
		return "PValue"
	}
	return c.Type
}

// usedColumns are the columns an artifact shows.
func usedColumns(a *artifacts.Artifact) []int {
	var ret []int
	for i, name := range a.Frame.Columns {
		if a.Kind == artifacts.KindFigure &&
			len(a.Y) > 0 &&
			name != a.X &&
			!slices.Contains(a.Y, name) &&
			!slices.Contains(a.YErr, name) {
			continue
		}
		ret = append(ret, i)
	}
	return ret
}

func checkNaN(s *checks.State[*Review]) (checks.Flow, error) {
	a := s.Subject.Artifact
	var columns []string
	for _, i := range usedColumns(a) {
		if slices.ContainsFunc(a.Frame.Data[i], isNaN) {
			columns = append(columns, a.Frame.Columns[i])
		}
	}
	if len(columns) == 0 {
		return checks.Continue, nil
	}
	s.AddIssue(issues.Issue{
		Category:     "NaN values",
		Item:         s.Subject.item(),
		IssueText:    fmt.Sprintf("Columns %s have NaN values.", quoteList(columns)),
		Instructions: "Drop or fill missing values before saving, or explain them in a note.",
		CodeProblem:  issues.CodeProblemOutputContentA,
	})
	return checks.Continue, nil
}

func checkValueTypes(s *checks.State[*Review]) (checks.Flow, error) {
	a := s.Subject.Artifact
	var found []string
	for _, i := range usedColumns(a) {
		for _, c := range a.Frame.Data[i] {
			if c.Kind == frames.CellOther && c.Type != "tuple" && !slices.Contains(found, c.Type) {
				found = append(found, c.Type)
			}
		}
	}
	if len(found) == 0 {
		return checks.Continue, nil
	}
	s.AddIssue(issues.Issue{
		Category:     "Unsupported value types",
		Item:         s.Subject.item(),
		IssueText:    fmt.Sprintf("The dataframe has values of type %s.", strings.Join(found, ", ")),
		Instructions: "Values should be numbers, strings, booleans, tuples or p-values.",
		CodeProblem:  issues.CodeProblemOutputContentA,
	})
	return checks.Continue, nil
}

func checkSize(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	a := r.Artifact
	rows := len(a.Frame.Index)
	if limit := r.Thresholds.MaxRows(a); limit > 0 && rows > limit {
		what := "table"
		if a.Kind == artifacts.KindFigure {
			what = a.PlotKind + " plot"
		}
		s.AddIssue(issues.Issue{
			Category:     "Too many rows",
			Item:         r.item(),
			IssueText:    fmt.Sprintf("The %s has %d rows, more than the maximum of %d.", what, rows, limit),
			Instructions: "Show only the most important rows, or summarize them.",
			CodeProblem:  issues.CodeProblemOutputContentB,
		})
	}
	columns := len(usedColumns(a))
	if limit := r.Thresholds.MaxTableColumns; a.Kind == artifacts.KindTable && limit > 0 && columns > limit {
		s.AddIssue(issues.Issue{
			Category:     "Too many columns",
			Item:         r.item(),
			IssueText:    fmt.Sprintf("The table has %d columns, more than the maximum of %d.", columns, limit),
			Instructions: "Drop less important columns, or split the table.",
			CodeProblem:  issues.CodeProblemOutputContentB,
		})
	}
	return checks.Continue, nil
}

func checkDuplicates(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	a := r.Artifact
	columns := a.Frame.Columns
	for i := range columns {
		for j := i + 1; j < len(columns); j++ {
			if len(a.Frame.Index) > 1 && sameColumn(a.Frame.Data[i], a.Frame.Data[j]) {
				s.AddIssue(issues.Issue{
					Category:     "Duplicate columns",
					Item:         r.item(),
					IssueText:    fmt.Sprintf("Columns %q and %q have the same values.", columns[i], columns[j]),
					Instructions: "Keep only one of the columns.",
					CodeProblem:  issues.CodeProblemOutputContentB,
				})
			}
		}
	}
	prior, _ := checks.Lookup[[]*artifacts.Artifact](s.Intermediate, keyPriorArtifacts)
	for _, p := range prior {
		if p.Pass == a.Pass && sameFrame(p.Frame, a.Frame) {
			s.AddIssue(issues.Issue{
				Category:     "Duplicate dataframes",
				Item:         r.item(),
				IssueText:    fmt.Sprintf("The dataframe has the same values as %s.", p.Filename),
				Instructions: "Each saved dataframe should present different results.",
				CodeProblem:  issues.CodeProblemOutputContentB,
				ForgiveAfter: issues.ForgiveAfter(2),
			})
			break
		}
	}
	return checks.Continue, nil
}

func quoteList(list []string) string {
	quoted := make([]string, 0, len(list))
	for _, s := range list {
		quoted = append(quoted, fmt.Sprintf("%q", s))
	}
	return strings.Join(quoted, ", ")
}
