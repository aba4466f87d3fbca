package codesources

import (
	"context"
	"errors"
	"sync"
)

// CodeSource produces code for a prompt.
type CodeSource interface {
	GetCode(ctx context.Context, prompt Prompt) (string, error)
}

// ErrRetryable marks source errors that may succeed if the same prompt is sent again.
var ErrRetryable = errors.New("retryable")

// Fixed replies with prepared replies in order, repeating the last one.
type Fixed struct {
	mu      sync.Mutex
	Replies []string
	// Prompts records the prompts received.
	Prompts []Prompt
}

var _ CodeSource = new(Fixed)

func (f *Fixed) GetCode(ctx context.Context, prompt Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Replies) == 0 {
		return "", &ExtractError{}
	}
	i := min(len(f.Prompts), len(f.Replies)-1)
	f.Prompts = append(f.Prompts, prompt)
	return ExtractCode(f.Replies[i])
}

// Code is a source that always gives the same code.
type Code string

var _ CodeSource = Code("")

func (c Code) GetCode(ctx context.Context, prompt Prompt) (string, error) {
	return string(c), nil
}
