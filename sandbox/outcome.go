package sandbox

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar"
	"github.com/reusee/scisandbox/artifacts"
	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/overrides"
)

type FailureKind uint8

const (
	FailureTimeout FailureKind = iota + 1
	FailureForbiddenFunctionCall
	FailureForbiddenImport
	FailureForbiddenFileAccess
	FailureUnexpectedException
	FailureUnallowedFilesCreated
	FailureMissingRequiredFiles
	// FailureRunIssue carries structured issues raised while running.
	FailureRunIssue
)

var failureKindNames = map[FailureKind]string{
	FailureTimeout:               "timeout",
	FailureForbiddenFunctionCall: "forbidden-function-call",
	FailureForbiddenImport:       "forbidden-import",
	FailureForbiddenFileAccess:   "forbidden-file-access",
	FailureUnexpectedException:   "unexpected-exception",
	FailureUnallowedFilesCreated: "unallowed-files-created",
	FailureMissingRequiredFiles:  "missing-required-files",
	FailureRunIssue:              "run-issue",
}

func (f FailureKind) String() string {
	if name, ok := failureKindNames[f]; ok {
		return name
	}
	return fmt.Sprintf("failure(%d)", f)
}

func (f FailureKind) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

type Failure struct {
	Kind    FailureKind
	Message string
	// Backtrace locates the failure in the submitted code.
	Backtrace string
	Issues    []issues.Issue
	// Files names the files involved.
	Files []string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Outcome is what one run did.
type Outcome struct {
	ID   string
	Code string
	// Failure is nil for a successful run.
	Failure *Failure
	// CreatedFiles are the files the run left, relative to the run directory.
	CreatedFiles []string
	// Files holds the content of created files by name.
	Files     map[string][]byte
	FileSizes map[string]int64
	// Issues are the non-fatal issues recorded by guards.
	Issues     []issues.Issue
	Artifacts  []*artifacts.Artifact
	Operations []overrides.Operation
	Output     string
	// Reloads counts how many times the code module was loaded by the sandbox.
	Reloads int
}

func (o *Outcome) Succeeded() bool {
	return o.Failure == nil
}

// Requirement declares files a run is expected to create.
type Requirement struct {
	// Pattern is a filename or a wildcard pattern relative to the run directory.
	Pattern      string
	MinimalCount int
	// KeepContent passes the text of matching files on to review.
	KeepContent bool
	// MaxSize limits the size of each matching file, in bytes. Zero is unlimited.
	MaxSize int64
	// TargetPrecision is the significant digits numbers in kept text content should have. Zero disables the check.
	TargetPrecision int
}

func (r Requirement) Match(name string) bool {
	ok, err := doublestar.Match(r.Pattern, filepath.ToSlash(name))
	return err == nil && ok
}

type Requirements []Requirement

// Match returns the first requirement matching the file.
func (r Requirements) Match(name string) (Requirement, bool) {
	for _, req := range r {
		if req.Match(name) {
			return req, true
		}
	}
	return Requirement{}, false
}

// Matched groups files by the requirement they match. Unmatched files are returned separately.
func (r Requirements) Matched(names []string) (matched map[string][]string, unmatched []string) {
	matched = make(map[string][]string)
	for _, name := range names {
		req, ok := r.Match(name)
		if !ok {
			unmatched = append(unmatched, name)
			continue
		}
		matched[req.Pattern] = append(matched[req.Pattern], name)
	}
	return
}

// Patterns returns the file patterns of the requirements.
func (r Requirements) Patterns() []string {
	ret := make([]string, 0, len(r))
	for _, req := range r {
		ret = append(ret, req.Pattern)
	}
	return ret
}

// Missing returns the requirements with fewer matching files than their minimal count.
func (r Requirements) Missing(names []string) []Requirement {
	matched, _ := r.Matched(names)
	var ret []Requirement
	for _, req := range r {
		if len(matched[req.Pattern]) < req.MinimalCount {
			ret = append(ret, req)
		}
	}
	return ret
}
