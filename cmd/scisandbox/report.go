package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/sandbox"
	"gopkg.in/yaml.v3"
)

type Report struct {
	ID           string         `yaml:"id"`
	Failure      string         `yaml:"failure,omitempty"`
	Message      string         `yaml:"message,omitempty"`
	Backtrace    string         `yaml:"backtrace,omitempty"`
	CreatedFiles []string       `yaml:"created_files,omitempty"`
	Output       string         `yaml:"output,omitempty"`
	Issues       []issues.Issue `yaml:"issues,omitempty"`
	Summary      string         `yaml:"summary,omitempty"`
	Code         string         `yaml:"code,omitempty"`
}

func newReport(outcome *sandbox.Outcome, list []issues.Issue) Report {
	r := Report{
		ID:           outcome.ID,
		CreatedFiles: outcome.CreatedFiles,
		Output:       outcome.Output,
		Issues:       list,
	}
	if f := outcome.Failure; f != nil {
		r.Failure = f.Kind.String()
		r.Message = f.Message
		r.Backtrace = f.Backtrace
	}
	return r
}

func (r Report) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// parseRequirement parses "pattern" or "pattern=count".
func parseRequirement(spec string) (sandbox.Requirement, error) {
	req := sandbox.Requirement{
		Pattern:      spec,
		MinimalCount: 1,
	}
	if i := strings.LastIndex(spec, "="); i >= 0 {
		n, err := strconv.Atoi(spec[i+1:])
		if err != nil || n < 0 {
			return req, fmt.Errorf("bad requirement %q", spec)
		}
		req.Pattern = spec[:i]
		req.MinimalCount = n
	}
	if req.Pattern == "" {
		return req, fmt.Errorf("bad requirement %q", spec)
	}
	return req, nil
}
