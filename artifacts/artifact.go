// Package artifacts records the tables and figures a run produces, and provides the utils module
// submitted code produces them with.
package artifacts

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/pvalues"
	"github.com/reusee/scisandbox/renders"
)

type Kind string

const (
	KindTable  Kind = "table"
	KindFigure Kind = "figure"
)

// Artifact is a display item or a saved frame, with what the code said about it.
type Artifact struct {
	Kind Kind
	// Pass is 1 for frames saved by analysis code, 2 for display items built from them.
	Pass     int
	Filename string
	Frame    *frames.Envelope
	Caption  *string
	Note     *string
	Label    *string
	Glossary map[string]string
	// ArgTypes are the type names of the arguments the artifact was created with.
	ArgTypes map[string]string

	PlotKind string
	X        string
	Y        []string
	YErr     []string
	LogY     bool

	// SourceFile is the file the frame was loaded from.
	SourceFile string
	// Rendered is the LaTeX written for the artifact.
	Rendered string
}

func (a *Artifact) String() string {
	return fmt.Sprintf("%s %s", a.Kind, a.Filename)
}

// FromPickle reads a frame saved by analysis code as a first-pass artifact.
func FromPickle(filename string, content []byte) (*Artifact, error) {
	env, err := frames.DecodeEnvelope(content)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Kind:       KindTable,
		Pass:       1,
		Filename:   filename,
		Frame:      env,
		SourceFile: env.FilePath,
	}, nil
}

func Encode(list []*Artifact) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(list); err != nil {
		return nil, fmt.Errorf("encode artifacts: %w", err)
	}
	return buf.Bytes(), nil
}

func Decode(data []byte) ([]*Artifact, error) {
	var ret []*Artifact
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ret); err != nil {
		return nil, fmt.Errorf("decode artifacts: %w", err)
	}
	return ret, nil
}

// FormatCell renders a cell for display. P-values below the display threshold render as "<threshold".
func FormatCell(c frames.Cell, digits int) string {
	switch c.Kind {
	case frames.CellNone:
		return "NaN"
	case frames.CellInt:
		return strconv.FormatInt(c.Int, 10)
	case frames.CellFloat:
		if math.IsNaN(c.Float) {
			return "NaN"
		}
		if digits > 0 {
			return strconv.FormatFloat(c.Float, 'g', digits, 64)
		}
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case frames.CellBool:
		if c.Bool {
			return "True"
		}
		return "False"
	case frames.CellPValue:
		display := pvalues.NewDisplay()
		var s string
		display.With(pvalues.ModeSmallerThan, func() {
			s, _ = display.Format(c.PValue)
		})
		return s
	}
	return c.String
}

// TableSpec lays out the artifact frame for rendering.
func (a *Artifact) TableSpec(digits int) renders.TableSpec {
	spec := renders.TableSpec{}
	if a.Frame != nil {
		spec.Columns = slices.Clone(a.Frame.Columns)
		spec.IndexName = a.Frame.IndexName
		for _, label := range a.Frame.Index {
			spec.Index = append(spec.Index, FormatCell(label, digits))
		}
		for i := range a.Frame.Index {
			row := make([]string, 0, len(a.Frame.Columns))
			for j := range a.Frame.Columns {
				row = append(row, FormatCell(a.Frame.Data[j][i], digits))
			}
			spec.Rows = append(spec.Rows, row)
		}
	}
	if a.Caption != nil {
		spec.Caption = *a.Caption
	}
	if a.Note != nil {
		spec.Note = *a.Note
	}
	if a.Label != nil {
		spec.Label = *a.Label
	}
	spec.Glossary = glossaryEntries(a.Glossary)
	return spec
}

func glossaryEntries(glossary map[string]string) []renders.GlossaryEntry {
	var ret []renders.GlossaryEntry
	for _, key := range slices.Sorted(maps.Keys(glossary)) {
		ret = append(ret, renders.GlossaryEntry{
			Key:   key,
			Value: glossary[key],
		})
	}
	return ret
}

func cellFloat(c frames.Cell) float64 {
	switch c.Kind {
	case frames.CellInt:
		return float64(c.Int)
	case frames.CellFloat:
		return c.Float
	case frames.CellPValue:
		return c.PValue.Value
	case frames.CellBool:
		if c.Bool {
			return 1
		}
		return 0
	}
	return math.NaN()
}

// FigureSpec lays out the artifact frame for plotting.
func (a *Artifact) FigureSpec() renders.FigureSpec {
	spec := renders.FigureSpec{
		Kind: a.PlotKind,
		X:    a.X,
		Y:    slices.Clone(a.Y),
		YErr: slices.Clone(a.YErr),
		LogY: a.LogY,
	}
	if a.Caption != nil {
		spec.Caption = *a.Caption
	}
	if a.Note != nil {
		spec.Note = *a.Note
	}
	if a.Label != nil {
		spec.Label = *a.Label
	}
	spec.Glossary = glossaryEntries(a.Glossary)
	if a.Frame == nil {
		return spec
	}
	column := func(name string) []frames.Cell {
		i := slices.Index(a.Frame.Columns, name)
		if i < 0 {
			return nil
		}
		return a.Frame.Data[i]
	}
	labels := a.Frame.Index
	if a.X != "" {
		if c := column(a.X); c != nil {
			labels = c
		}
	} else {
		spec.X = a.Frame.IndexName
	}
	for _, label := range labels {
		spec.Labels = append(spec.Labels, FormatCell(label, 0))
	}
	for k, y := range a.Y {
		var values []float64
		for _, c := range column(y) {
			values = append(values, cellFloat(c))
		}
		spec.Series = append(spec.Series, values)
		var errs []float64
		if k < len(a.YErr) {
			for _, c := range column(a.YErr[k]) {
				errs = append(errs, cellFloat(c))
			}
		}
		spec.Errors = append(spec.Errors, errs)
	}
	return spec
}

// Render returns the LaTeX of the artifact.
func (a *Artifact) Render(digits int) string {
	if a.Kind == KindFigure {
		return renders.Figure(a.FigureSpec())
	}
	return renders.Table(a.TableSpec(digits))
}
