package debugloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/reusee/scisandbox/codesources"
	"github.com/reusee/scisandbox/issues"
)

// IssueReporter turns the issues of an attempt into the next prompt.
// reply is what the source answered with.
type IssueReporter interface {
	ReportIssues(ctx context.Context, reply string, list []issues.Issue) (codesources.Prompt, error)
}

// Conversation keeps the whole exchange, appending each attempt and its issues.
type Conversation struct {
	Prompt codesources.Prompt
	// Rewind drops earlier failed attempts, keeping only the latest one in the conversation.
	Rewind bool

	base int
}

var _ IssueReporter = new(Conversation)

func NewConversation(prompt codesources.Prompt) *Conversation {
	return &Conversation{
		Prompt: prompt,
		base:   len(prompt),
	}
}

func (c *Conversation) ReportIssues(ctx context.Context, reply string, list []issues.Issue) (codesources.Prompt, error) {
	if c.Rewind {
		c.Prompt = c.Prompt[:c.base]
	}
	c.Prompt = c.Prompt.
		With(codesources.RoleAssistant, reply).
		With(codesources.RoleUser, Feedback(list))
	return c.Prompt, nil
}

// Feedback is the message that asks for corrected code.
func Feedback(list []issues.Issue) string {
	var b strings.Builder
	b.WriteString("There are issues with your code.\n\n")
	b.WriteString(issues.Format(list))
	b.WriteString("\n\n")
	n := len(issues.MostSevere(list))
	if n == 1 {
		b.WriteString("Please rewrite the complete code to fix the issue above.")
	} else {
		fmt.Fprintf(&b, "Please rewrite the complete code to fix the %d issues above.", n)
	}
	return b.String()
}
