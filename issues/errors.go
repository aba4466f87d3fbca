package issues

import "strings"

// RunIssueError is returned by guards and library functions to abort a run with structured feedback.
type RunIssueError struct {
	Issues []Issue
}

func (r *RunIssueError) Error() string {
	var b strings.Builder
	for i, issue := range r.Issues {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(issue.String())
	}
	return b.String()
}

func Raise(issues ...Issue) error {
	return &RunIssueError{
		Issues: issues,
	}
}
