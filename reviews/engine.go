package reviews

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"

	"github.com/bmatcuk/doublestar"
	"github.com/reusee/scisandbox/artifacts"
	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/sandbox"
	"golang.org/x/sync/errgroup"
)

// Engine reviews the outcomes of one coding step across its attempts.
type Engine struct {
	Thresholds Thresholds
	// Tracker remembers issues across attempts for forgiveness.
	Tracker *issues.Tracker
	Logger  logs.Logger
	// Parallel bounds concurrent artifact reviews. Zero is unbounded.
	Parallel int
}

func (Module) Engine(
	thresholds Thresholds,
	logger logs.Logger,
) *Engine {
	return &Engine{
		Thresholds: thresholds,
		Tracker:    issues.NewTracker(),
		Logger:     logger,
	}
}

// Check returns the issues of an outcome that are not forgiven.
// prior are first-pass artifacts of earlier steps that display items may be built from.
// The error is about the engine itself, never about the code.
func (e *Engine) Check(
	ctx context.Context,
	outcome *sandbox.Outcome,
	requirements sandbox.Requirements,
	prior []*artifacts.Artifact,
) (issues.List, error) {
	var list issues.List

	if outcome.Failure != nil {
		list = append(list, FailureIssues(outcome.Failure)...)
		list = append(list, StaticCheck(outcome.Code)...)
		return e.apply(ctx, outcome, list), nil
	}

	list = append(list, outcome.Issues...)
	list = append(list, e.checkFiles(outcome, requirements)...)
	list = append(list, StaticCheck(outcome.Code)...)

	reviewed, err := e.checkArtifacts(ctx, outcome, prior)
	if err != nil {
		return nil, err
	}
	list = append(list, reviewed...)

	return e.apply(ctx, outcome, list), nil
}

func (e *Engine) apply(ctx context.Context, outcome *sandbox.Outcome, list issues.List) issues.List {
	ret := list
	if e.Tracker != nil {
		ret = e.Tracker.Apply(list)
	}
	if e.Logger != nil {
		e.Logger.InfoContext(ctx, "reviewed",
			"id", outcome.ID,
			"issues", len(list),
			"blocking", len(ret),
		)
	}
	return ret
}

// FailureIssues describes a failed run as issues.
func FailureIssues(f *sandbox.Failure) []issues.Issue {
	if len(f.Issues) > 0 {
		return f.Issues
	}
	issue := issues.Issue{
		Item:        f.Kind.String(),
		CodeProblem: issues.CodeProblemRuntimeError,
	}
	trace := ""
	if f.Backtrace != "" {
		trace = "\n```\n" + f.Backtrace + "\n```"
	}
	switch f.Kind {
	case sandbox.FailureTimeout:
		issue.Category = "Timeout"
		issue.IssueText = "Code took too long to run." + trace
		issue.Instructions = "Please make the code faster: avoid loops over rows and repeated model fits."
	case sandbox.FailureForbiddenFunctionCall:
		issue.Category = "Forbidden function call"
		issue.IssueText = fmt.Sprintf("Your code failed: %s.", f.Message) + trace
		issue.Instructions = "Please remove the call."
	case sandbox.FailureForbiddenImport:
		issue.Category = "Forbidden import"
		issue.IssueText = fmt.Sprintf("Your code failed: %s.", f.Message)
		issue.Instructions = "Please use only the provided modules."
	case sandbox.FailureForbiddenFileAccess:
		issue.Category = "Forbidden file access"
		issue.IssueText = fmt.Sprintf("Your code failed: %s.", f.Message)
		issue.Instructions = "Please read only the provided data files, and write only the requested output files."
	default:
		issue.Category = "Runtime exception"
		issue.IssueText = "Your code failed with:\n```\n" + f.Message + "\n```" + trace
		issue.Instructions = "Please fix the code."
	}
	return []issues.Issue{issue}
}

func (e *Engine) checkFiles(outcome *sandbox.Outcome, requirements sandbox.Requirements) issues.List {
	var list issues.List
	matched, _ := requirements.Matched(outcome.CreatedFiles)
	for _, req := range requirements {
		names := matched[req.Pattern]
		if len(names) < req.MinimalCount {
			list.AddIssue(sandbox.MissingFilesIssue(req, len(names)))
		}
		for _, name := range names {
			if size := outcome.FileSizes[name]; req.MaxSize > 0 && size > req.MaxSize {
				list.AddIssue(sandbox.OversizedFileIssue(req, name, size))
			}
			if req.KeepContent && req.TargetPrecision > 0 {
				list = append(list, checkPrecision(name, string(outcome.Files[name]), req.TargetPrecision)...)
			}
		}
	}
	return list
}

// checkArtifacts reviews saved frames and display items concurrently, keeping their order.
func (e *Engine) checkArtifacts(ctx context.Context, outcome *sandbox.Outcome, prior []*artifacts.Artifact) (issues.List, error) {
	var list []*artifacts.Artifact
	var pickles []string
	for _, name := range outcome.CreatedFiles {
		if ok, _ := doublestar.Match(e.Thresholds.PicklePattern, filepath.Base(name)); ok {
			pickles = append(pickles, name)
		}
	}
	sort.Strings(pickles)
	var fileIssues issues.List
	for _, name := range pickles {
		a, err := artifacts.FromPickle(name, outcome.Files[name])
		if err != nil {
			fileIssues.AddIssue(issues.Issue{
				Category:     "Unreadable dataframe file",
				Item:         name,
				IssueText:    fmt.Sprintf("The file %q is not a saved dataframe: %v", name, err),
				Instructions: "Save dataframes with to_pickle.",
				CodeProblem:  issues.CodeProblemMissingOutputFiles,
			})
			continue
		}
		list = append(list, a)
	}
	list = append(list, outcome.Artifacts...)

	sources := make(map[string]*artifacts.Artifact)
	for _, a := range slices.Concat(prior, list) {
		if a.Pass == 1 {
			sources[filepath.Base(a.Filename)] = a
		}
	}

	results := make([]issues.List, len(list))
	group, ctx := errgroup.WithContext(ctx)
	if e.Parallel > 0 {
		group.SetLimit(e.Parallel)
	}
	for i, a := range list {
		review := &Review{
			Artifact:   a,
			Thresholds: &e.Thresholds,
			Prior:      samePass(a, list[:i]),
			Sources:    sources,
		}
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			found, err := CheckArtifact(review, e.Tracker)
			if err != nil {
				return fmt.Errorf("review %s: %w", a, err)
			}
			results[i] = found
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	ret := fileIssues
	for _, found := range results {
		ret = append(ret, found...)
	}
	return ret, nil
}

func samePass(a *artifacts.Artifact, before []*artifacts.Artifact) []*artifacts.Artifact {
	var ret []*artifacts.Artifact
	for _, b := range before {
		if b.Pass == a.Pass {
			ret = append(ret, b)
		}
	}
	return ret
}
