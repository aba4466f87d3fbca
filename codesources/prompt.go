// Package codesources asks a language model for analysis code.
package codesources

import "strings"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt is a conversation, oldest message first.
type Prompt []Message

func NewPrompt(system, user string) Prompt {
	var p Prompt
	if system != "" {
		p = append(p, Message{Role: RoleSystem, Content: system})
	}
	return append(p, Message{Role: RoleUser, Content: user})
}

func (p Prompt) With(role Role, content string) Prompt {
	ret := make(Prompt, 0, len(p)+1)
	ret = append(ret, p...)
	return append(ret, Message{Role: role, Content: content})
}

// Fenced renders code as a fenced block, the form replies are expected in.
func Fenced(code string) string {
	return "```python\n" + strings.TrimRight(code, "\n") + "\n```"
}
