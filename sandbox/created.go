package sandbox

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/reusee/scisandbox/issues"
)

// snapshot is the set of paths in a run directory, relative and slash separated.
type snapshot struct {
	files map[string]bool
	dirs  map[string]bool
}

func takeSnapshot(dir string) (snapshot, error) {
	s := snapshot{
		files: make(map[string]bool),
		dirs:  make(map[string]bool),
	}
	err := walk(dir, func(rel string, entry fs.DirEntry) error {
		if entry.IsDir() {
			s.dirs[rel] = true
		} else {
			s.files[rel] = true
		}
		return nil
	})
	return s, err
}

// walk visits everything below dir except the code module, in lexical order.
func walk(dir string, fn func(rel string, entry fs.DirEntry) error) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." || rel == ModuleFile {
			return nil
		}
		return fn(filepath.ToSlash(rel), entry)
	})
}

// created lists files in dir that are not in the snapshot, sorted.
func (s snapshot) created(dir string) ([]string, error) {
	after, err := takeSnapshot(dir)
	if err != nil {
		return nil, err
	}
	var ret []string
	for name := range after.files {
		if !s.files[name] {
			ret = append(ret, name)
		}
	}
	slices.Sort(ret)
	return ret, nil
}

// removeCreated deletes created files, and directories that did not exist before and are left empty.
func removeCreated(dir string, before snapshot, created []string) error {
	var errs []error
	parents := make(map[string]bool)
	for _, name := range created {
		if err := os.Remove(filepath.Join(dir, filepath.FromSlash(name))); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
		for p := filepath.ToSlash(filepath.Dir(filepath.FromSlash(name))); p != "." && !before.dirs[p]; p = filepath.ToSlash(filepath.Dir(filepath.FromSlash(p))) {
			parents[p] = true
		}
	}
	// deepest first
	dirs := make([]string, 0, len(parents))
	for p := range parents {
		dirs = append(dirs, p)
	}
	slices.SortFunc(dirs, func(a, b string) int {
		return cmp.Compare(strings.Count(b, "/"), strings.Count(a, "/"))
	})
	for _, p := range dirs {
		// fails on directories holding other files, which is fine
		_ = os.Remove(filepath.Join(dir, filepath.FromSlash(p)))
	}
	return errors.Join(errs...)
}

func readCreated(dir string, created []string) (map[string][]byte, map[string]int64, error) {
	contents := make(map[string][]byte, len(created))
	sizes := make(map[string]int64, len(created))
	for _, name := range created {
		content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			return nil, nil, err
		}
		contents[name] = content
		sizes[name] = int64(len(content))
	}
	return contents, sizes, nil
}

// checkCreated fails runs leaving files no requirement declares, or, with strict requirements, too few files.
func checkCreated(settings Settings, created []string) *Failure {
	reqs := settings.Requirements
	if len(reqs) > 0 {
		if _, unmatched := reqs.Matched(created); len(unmatched) > 0 {
			return &Failure{
				Kind:    FailureUnallowedFilesCreated,
				Message: fmt.Sprintf("code created files that are not expected: %s", strings.Join(unmatched, ", ")),
				Files:   unmatched,
				Issues: []issues.Issue{{
					Category:  "Unallowed files created",
					Item:      strings.Join(unmatched, ", "),
					IssueText: fmt.Sprintf("Your code created the files %s, which are not expected.", strings.Join(unmatched, ", ")),
					Instructions: fmt.Sprintf("Only create files matching: %s.",
						strings.Join(reqs.Patterns(), ", ")),
					CodeProblem: issues.CodeProblemMissingOutputFiles,
				}},
			}
		}
	}
	if settings.StrictRequirements {
		matched, _ := reqs.Matched(created)
		var list []issues.Issue
		for _, req := range reqs.Missing(created) {
			list = append(list, MissingFilesIssue(req, len(matched[req.Pattern])))
		}
		if len(list) > 0 {
			return &Failure{
				Kind:    FailureMissingRequiredFiles,
				Message: "code did not create the required files",
				Issues:  list,
			}
		}
	}
	return nil
}

// MissingFilesIssue reports a requirement matched by fewer files than its minimal count.
func MissingFilesIssue(req Requirement, found int) issues.Issue {
	return issues.Issue{
		Category:     "Missing output files",
		Item:         req.Pattern,
		IssueText:    fmt.Sprintf("Your code created %d files matching %q, while at least %d are required.", found, req.Pattern, req.MinimalCount),
		Instructions: fmt.Sprintf("Make sure the code saves %d files named by the pattern %q.", req.MinimalCount, req.Pattern),
		CodeProblem:  issues.CodeProblemMissingOutputFiles,
	}
}

// OversizedFileIssue reports a file larger than its requirement allows.
func OversizedFileIssue(req Requirement, name string, size int64) issues.Issue {
	return issues.Issue{
		Category: "Output file too large",
		Item:     name,
		IssueText: fmt.Sprintf("The file %q is %s, more than the maximum of %s.",
			name, humanize.Bytes(uint64(size)), humanize.Bytes(uint64(req.MaxSize))),
		Instructions: "Please make the output more concise: report summaries instead of full data.",
		CodeProblem:  issues.CodeProblemOutputContentB,
	}
}

// CacheKey identifies a run by its code, the content of the run directory and the settings.
func CacheKey(code string, settings Settings) (string, error) {
	settingsHash, err := settings.Hash()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	fmt.Fprintf(h, "%d\n%s\n%s\n", len(code), code, settingsHash)
	if err := walk(settings.Dir, func(rel string, entry fs.DirEntry) error {
		if entry.IsDir() {
			return nil
		}
		f, err := os.Open(filepath.Join(settings.Dir, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		defer f.Close()
		fileHash := sha256.New()
		if _, err := io.Copy(fileHash, f); err != nil {
			return err
		}
		fmt.Fprintf(h, "%s\n%x\n", rel, fileHash.Sum(nil))
		return nil
	}); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
