package reviews

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/reusee/scisandbox/artifacts"
	"github.com/reusee/scisandbox/issues"
)

// ValidateFilename checks the artifact filename against the naming pattern of its kind.
func ValidateFilename(t *Thresholds, a *artifacts.Artifact) issues.List {
	var ret issues.List
	pattern := t.FilenamePattern(a)
	issue := func(text string) {
		ret.AddIssue(issues.Issue{
			Category:     "Wrong filename",
			Item:         a.Filename,
			IssueText:    text,
			Instructions: fmt.Sprintf("Use a filename of the form %q, saved in the working directory.", pattern),
			CodeProblem:  issues.CodeProblemCallSyntax,
		})
	}
	if a.Filename == "" {
		issue("The filename is missing or is not a string.")
		return ret
	}
	if strings.ContainsAny(a.Filename, `/\`) {
		issue("The file should be saved in the working directory, without a directory part.")
		return ret
	}
	ok, err := doublestar.Match(pattern, filepath.Base(a.Filename))
	if err != nil || !ok {
		issue(fmt.Sprintf("The filename %q does not match %q.", a.Filename, pattern))
	}
	return ret
}
