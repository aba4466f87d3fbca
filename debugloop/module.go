package debugloop

import (
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/scisandbox/codesources"
	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/reviews"
	"github.com/reusee/scisandbox/sandbox"
	"github.com/reusee/scisandbox/sandboxconfigs"
)

type Module struct {
	dscope.Module
	Sandbox     sandbox.Module
	Reviews     reviews.Module
	CodeSources codesources.Module
}

// NewLoop builds a loop for one coding step.
type NewLoop func(
	source codesources.CodeSource,
	prompt codesources.Prompt,
	requirements sandbox.Requirements,
) (*Loop, *Conversation)

func (Module) NewLoop(
	newSandbox sandbox.NewSandbox,
	engine *reviews.Engine,
	maxAttempts sandboxconfigs.MaxAttempts,
	maxTimeouts sandboxconfigs.MaxTimeouts,
	logger logs.Logger,
	newSpan logs.NewSpan,
) NewLoop {
	return func(
		source codesources.CodeSource,
		prompt codesources.Prompt,
		requirements sandbox.Requirements,
	) (*Loop, *Conversation) {
		conversation := NewConversation(prompt)
		checker := *engine
		checker.Tracker = issues.NewTracker()
		return &Loop{
			Source:       source,
			Reporter:     conversation,
			Runner:       newSandbox(requirements),
			Checker:      &checker,
			Requirements: requirements,
			MaxAttempts:  int(maxAttempts),
			MaxTimeouts:  int(maxTimeouts),
			MaxNoCode:    2,
			MaxRetries:   3,
			RetryDelay:   time.Second,
			Logger:       logger,
			NewSpan:      newSpan,
		}, conversation
	}
}
