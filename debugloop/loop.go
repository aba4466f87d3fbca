// Package debugloop asks for code until it runs cleanly, feeding the issues of each attempt back.
package debugloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reusee/scisandbox/artifacts"
	"github.com/reusee/scisandbox/codesources"
	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/reviews"
	"github.com/reusee/scisandbox/sandbox"
)

// Runner runs code. *sandbox.Sandbox is one.
type Runner interface {
	Run(ctx context.Context, code string) (*sandbox.Outcome, error)
}

// Checker reviews outcomes. *reviews.Engine is one.
type Checker interface {
	Check(ctx context.Context, outcome *sandbox.Outcome, requirements sandbox.Requirements, prior []*artifacts.Artifact) (issues.List, error)
}

var (
	_ Runner  = new(sandbox.Sandbox)
	_ Checker = new(reviews.Engine)
)

type Loop struct {
	Source       codesources.CodeSource
	Reporter     IssueReporter
	Runner       Runner
	Checker      Checker
	Requirements sandbox.Requirements
	// Prior are first-pass artifacts of earlier steps.
	Prior []*artifacts.Artifact

	MaxAttempts int
	// MaxTimeouts stops the loop after this many consecutive timeouts.
	MaxTimeouts int
	// MaxNoCode stops the loop after this many consecutive replies without usable code.
	MaxNoCode int
	// MaxRetries bounds resending a prompt after retryable source errors.
	MaxRetries int
	RetryDelay time.Duration

	Logger  logs.Logger
	NewSpan logs.NewSpan
}

// Result is the clean attempt and the ones before it.
type Result struct {
	Code     string
	Outcome  *sandbox.Outcome
	Attempts []Attempt
}

func (r *Result) Summary() string {
	return Summarize(0, r.Attempts)
}

// Run returns the first clean attempt, or a *GiveUpError.
// Other errors are internal.
func (l *Loop) Run(ctx context.Context, prompt codesources.Prompt) (*Result, error) {
	var attempts []Attempt
	timeouts := 0
	noCode := 0

	for number := 1; number <= l.MaxAttempts; number++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attemptCtx := ctx
		if l.NewSpan != nil {
			attemptCtx, _ = l.NewSpan(ctx, "")
		}
		attempt := Attempt{
			Number: number,
		}

		// code
		code, err := l.getCode(attemptCtx, prompt)
		var extractErr *codesources.ExtractError
		if errors.As(err, &extractErr) {
			attempt.Err = err
			attempts = append(attempts, attempt)
			noCode++
			l.log(attemptCtx, "no code", "attempt", number, "error", err)
			if noCode >= l.MaxNoCode {
				return nil, &GiveUpError{
					Reason:   ReasonNoCode,
					Attempts: attempts,
					Err:      err,
				}
			}
			prompt, err = l.Reporter.ReportIssues(attemptCtx, extractErr.Reply, []issues.Issue{
				NoCodeIssue(extractErr),
			})
			if err != nil {
				return nil, err
			}
			continue
		} else if err != nil {
			attempt.Err = err
			attempts = append(attempts, attempt)
			return nil, &GiveUpError{
				Reason:   ReasonSourceError,
				Attempts: attempts,
				Err:      err,
			}
		}
		noCode = 0
		attempt.Code = code

		// run
		outcome, err := l.Runner.Run(attemptCtx, code)
		if err != nil {
			return nil, logs.WrapSpan(attemptCtx, fmt.Errorf("attempt %d: %w", number, err))
		}
		attempt.Outcome = outcome

		// check
		list, err := l.Checker.Check(attemptCtx, outcome, l.Requirements, l.Prior)
		if err != nil {
			return nil, logs.WrapSpan(attemptCtx, fmt.Errorf("attempt %d: %w", number, err))
		}
		attempt.Issues = list
		attempts = append(attempts, attempt)
		l.log(attemptCtx, "attempt",
			"attempt", number,
			"run", outcome.ID,
			"issues", len(list),
		)

		if !issues.AnyBlocking(list) {
			return &Result{
				Code:     code,
				Outcome:  outcome,
				Attempts: attempts,
			}, nil
		}

		if outcome.Failure != nil && outcome.Failure.Kind == sandbox.FailureTimeout {
			timeouts++
			if timeouts >= l.MaxTimeouts {
				return nil, &GiveUpError{
					Reason:   ReasonRepeatedTimeout,
					Attempts: attempts,
				}
			}
		} else {
			timeouts = 0
		}

		if number < l.MaxAttempts {
			prompt, err = l.Reporter.ReportIssues(attemptCtx, codesources.Fenced(code), list)
			if err != nil {
				return nil, err
			}
		}
	}

	return nil, &GiveUpError{
		Reason:   ReasonExhaustedAttempts,
		Attempts: attempts,
	}
}

// NoCodeIssue asks for a reply with exactly one code block.
func NoCodeIssue(err *codesources.ExtractError) issues.Issue {
	return issues.Issue{
		Category:     "Code block",
		IssueText:    err.Instructions(),
		Instructions: "Send the complete code in one block, without omitting parts.",
		CodeProblem:  issues.CodeProblemRuntimeError,
	}
}

func (l *Loop) getCode(ctx context.Context, prompt codesources.Prompt) (string, error) {
	for retry := 0; ; retry++ {
		code, err := l.Source.GetCode(ctx, prompt)
		if err == nil || !errors.Is(err, codesources.ErrRetryable) || retry >= l.MaxRetries {
			return code, err
		}
		l.log(ctx, "retry getting code", "retry", retry+1, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.RetryDelay << retry):
		}
	}
}

func (l *Loop) log(ctx context.Context, msg string, args ...any) {
	if l.Logger != nil {
		l.Logger.InfoContext(ctx, msg, args...)
	}
}
