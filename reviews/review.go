// Package reviews checks what a run produced and turns every problem into an issue for the code writer.
package reviews

import (
	"math"
	"path/filepath"
	"slices"

	"github.com/reusee/scisandbox/artifacts"
	"github.com/reusee/scisandbox/checks"
	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/issues"
)

// Review is one artifact under check, with what was produced around it.
type Review struct {
	Artifact   *artifacts.Artifact
	Thresholds *Thresholds
	// Prior are the artifacts of the same pass produced before this one.
	Prior []*artifacts.Artifact
	// Sources are the first-pass artifacts by base filename.
	Sources map[string]*artifacts.Artifact
}

func (r *Review) item() string {
	if r.Artifact.Filename != "" {
		return filepath.Base(r.Artifact.Filename)
	}
	return string(r.Artifact.Kind)
}

func (r *Review) displayItem() bool {
	return r.Artifact.Pass == 2
}

const (
	keyPriorArtifacts = "prior_artifacts"
	keyWidth          = "width"
)

// ArtifactChain returns the ordered checkers an artifact goes through.
func ArtifactChain(tracker *issues.Tracker) *checks.Chain[*Review] {
	chain := &checks.Chain[*Review]{
		Checkers: []*checks.Checker[*Review]{
			syntaxChecker,
			contentChecker,
			continuityChecker,
			refinementChecker,
			compilationChecker,
			annotationChecker,
		},
	}
	if tracker != nil {
		chain.Forgivable = tracker.Forgivable
	}
	return chain
}

// CheckArtifact runs the artifact chain over one artifact.
func CheckArtifact(review *Review, tracker *issues.Tracker) (issues.List, error) {
	return ArtifactChain(tracker).Run(review, checks.Intermediate{
		keyPriorArtifacts: review.Prior,
	})
}

func labels(a *artifacts.Artifact) []string {
	if a.Frame == nil {
		return nil
	}
	ret := slices.Clone(a.Frame.Columns)
	for _, c := range a.Frame.Index {
		if c.Kind == frames.CellString && !slices.Contains(ret, c.String) {
			ret = append(ret, c.String)
		}
	}
	return ret
}

func isNaN(c frames.Cell) bool {
	return c.Kind == frames.CellNone ||
		c.Kind == frames.CellFloat && math.IsNaN(c.Float)
}

func sameCell(a, b frames.Cell) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case frames.CellPValue:
		return a.PValue.Value == b.PValue.Value
	case frames.CellNone:
		return true
	}
	return a.Int == b.Int && a.Float == b.Float && a.String == b.String && a.Bool == b.Bool
}

func sameColumn(a, b []frames.Cell) bool {
	return slices.EqualFunc(a, b, sameCell)
}

func sameFrame(a, b *frames.Envelope) bool {
	if a == nil || b == nil || len(a.Data) == 0 || len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Data {
		if !sameColumn(a.Data[i], b.Data[i]) {
			return false
		}
	}
	return true
}
