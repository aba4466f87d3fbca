package reviews

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/reusee/scisandbox/artifacts"
	"github.com/reusee/scisandbox/checks"
	"github.com/reusee/scisandbox/issues"
)

var annotationChecker = &checks.Checker[*Review]{
	Name: "annotation",
	Checks: []checks.Check[*Review]{
		{Name: "caption", Run: checkCaption},
		{Name: "note", Run: checkNote},
		{Name: "glossary", Run: checkGlossary},
		{Name: "label characters", Run: checkLabelCharacters},
	},
}

var boilerplateOpenings = []string{
	"table",
	"this table",
	"the table",
	"figure",
	"this figure",
	"the figure",
	"caption",
}

var placeholder = regexp.MustCompile(`\.\.\.|…|<[^<>]+>`)

func checkCaption(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	a := r.Artifact
	if !r.displayItem() {
		return checks.Stop, nil
	}
	issue := issues.Issue{
		Item:        r.item(),
		CodeProblem: issues.CodeProblemOutputContentC,
	}
	caption := ""
	if a.Caption != nil {
		caption = strings.TrimSpace(*a.Caption)
	}
	if caption == "" {
		issue.Category = "Missing caption"
		issue.IssueText = "The display item has no caption."
		issue.Instructions = fmt.Sprintf("Pass a `caption` to `to_%s` that says what the display item shows.", a.Kind)
		s.AddIssue(issue)
		return checks.Continue, nil
	}
	lower := strings.ToLower(caption)
	for _, opening := range boilerplateOpenings {
		if lower == opening || strings.HasPrefix(lower, opening+" ") || strings.HasPrefix(lower, opening+":") {
			issue.Category = "Caption wording"
			issue.IssueText = fmt.Sprintf("The caption starts with %q.", opening)
			issue.Instructions = "Start the caption with what is shown, for example \"Association of age with outcome\"."
			s.AddIssue(issue)
			break
		}
	}
	if m := placeholder.FindString(caption); m != "" {
		issue.Category = "Caption placeholder"
		issue.IssueText = fmt.Sprintf("The caption contains the placeholder %q.", m)
		issue.Instructions = "Replace placeholders with the actual text."
		s.AddIssue(issue)
	}
	return checks.Continue, nil
}

func normalizeText(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

func checkNote(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	a := r.Artifact
	if a.Note == nil || a.Caption == nil {
		return checks.Continue, nil
	}
	note := normalizeText(*a.Note)
	caption := normalizeText(*a.Caption)
	if note == "" || caption == "" {
		return checks.Continue, nil
	}
	if note == caption || strings.Contains(caption, note) {
		s.AddIssue(issues.Issue{
			Category:     "Note repeats caption",
			Item:         r.item(),
			IssueText:    "The note says nothing beyond the caption.",
			Instructions: "Use the note for details the caption leaves out, or drop it.",
			CodeProblem:  issues.CodeProblemOutputContentC,
		})
	}
	if m := placeholder.FindString(*a.Note); m != "" {
		s.AddIssue(issues.Issue{
			Category:     "Note placeholder",
			Item:         r.item(),
			IssueText:    fmt.Sprintf("The note contains the placeholder %q.", m),
			Instructions: "Replace placeholders with the actual text.",
			CodeProblem:  issues.CodeProblemOutputContentC,
		})
	}
	return checks.Continue, nil
}

var acronym = regexp.MustCompile(`\b[A-Z][A-Z0-9]+s?\b`)

// Abbreviated reports whether a label needs a glossary definition.
func Abbreviated(label string) bool {
	if strings.Contains(label, "_") {
		return true
	}
	if acronym.MatchString(label) {
		return true
	}
	for _, word := range strings.Fields(label) {
		if len(word) > 1 && strings.HasSuffix(word, ".") {
			return true
		}
	}
	return false
}

func checkGlossary(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	a := r.Artifact
	present := labels(a)
	if a.Kind == artifacts.KindFigure {
		present = append(present, a.Y...)
		if a.X != "" {
			present = append(present, a.X)
		}
	}
	var missing []string
	for _, label := range present {
		if !Abbreviated(label) || slices.Contains(missing, label) {
			continue
		}
		if _, ok := a.Glossary[label]; !ok {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		s.AddIssue(issues.Issue{
			Category:     "Undefined abbreviations",
			Item:         r.item(),
			IssueText:    fmt.Sprintf("The labels %s are not self-explanatory and are not in the glossary.", quoteList(missing)),
			Instructions: "Rename the labels to full words, or define them in the `glossary` argument.",
			CodeProblem:  issues.CodeProblemOutputContentC,
		})
	}
	var orphans []string
	for key := range a.Glossary {
		if !slices.Contains(present, key) {
			orphans = append(orphans, key)
		}
	}
	if len(orphans) > 0 {
		slices.Sort(orphans)
		s.AddIssue(issues.Issue{
			Category:     "Glossary keys not found",
			Item:         r.item(),
			IssueText:    fmt.Sprintf("The glossary defines %s, which are not labels of the display item.", quoteList(orphans)),
			Instructions: "Glossary keys must be row or column labels of the display item.",
			CodeProblem:  issues.CodeProblemOutputContentC,
		})
	}
	return checks.Continue, nil
}

// disallowedLabelChars render wrongly in LaTeX text mode.
const disallowedLabelChars = `<>|\`

func checkLabelCharacters(s *checks.State[*Review]) (checks.Flow, error) {
	r := s.Subject
	var found []string
	for _, label := range labels(r.Artifact) {
		if strings.ContainsAny(label, disallowedLabelChars) {
			found = append(found, label)
		}
	}
	if len(found) == 0 {
		return checks.Continue, nil
	}
	s.AddIssue(issues.Issue{
		Category:     "Label characters",
		Item:         r.item(),
		IssueText:    fmt.Sprintf("The labels %s contain characters that cannot be shown as text: %s", quoteList(found), disallowedLabelChars),
		Instructions: "Rename the labels, for example \"P>|t|\" to \"P-value\".",
		CodeProblem:  issues.CodeProblemOutputContentC,
	})
	return checks.Continue, nil
}
