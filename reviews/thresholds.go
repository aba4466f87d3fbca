package reviews

import (
	"maps"

	"github.com/reusee/scisandbox/artifacts"
	"github.com/reusee/scisandbox/configs"
	"github.com/reusee/scisandbox/vars"
)

// Thresholds are the limits artifacts are reviewed against.
type Thresholds struct {
	MaxTableRows    int
	MaxTableColumns int
	// MaxPlotRows limits figure rows by plot kind. Kinds not listed use MaxTableRows.
	MaxPlotRows map[string]int
	// MaxWidth is the widest table accepted, in characters of rendered text.
	MaxWidth      int
	MaxLabelWidth int
	// LongLabelFactor marks labels this many times longer than the median as too long.
	LongLabelFactor float64
	// Digits is the significant digits numbers are rendered with.
	Digits int
	// AllowLabel permits an explicit label argument.
	AllowLabel bool

	TablePattern  string
	FigurePattern string
	PicklePattern string
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxTableRows:    20,
		MaxTableColumns: 10,
		MaxPlotRows: map[string]int{
			"bar":     30,
			"line":    200,
			"scatter": 1000,
		},
		MaxWidth:        80,
		MaxLabelWidth:   24,
		LongLabelFactor: 1.5,
		Digits:          3,
		TablePattern:    "table_*.tex",
		FigurePattern:   "figure_*.tex",
		PicklePattern:   "df_*.pkl",
	}
}

func (t *Thresholds) MaxRows(a *artifacts.Artifact) int {
	if a.Kind == artifacts.KindFigure {
		if n, ok := t.MaxPlotRows[a.PlotKind]; ok {
			return n
		}
	}
	return t.MaxTableRows
}

// FilenamePattern returns the pattern the artifact filename must match.
func (t *Thresholds) FilenamePattern(a *artifacts.Artifact) string {
	if a.Pass == 1 {
		return t.PicklePattern
	}
	if a.Kind == artifacts.KindFigure {
		return t.FigurePattern
	}
	return t.TablePattern
}

func (Module) Thresholds(
	loader configs.Loader,
) Thresholds {
	t := DefaultThresholds()
	t.MaxTableRows = vars.FirstNonZero(
		configs.First[int](loader, "review.max_table_rows"),
		t.MaxTableRows,
	)
	t.MaxTableColumns = vars.FirstNonZero(
		configs.First[int](loader, "review.max_table_columns"),
		t.MaxTableColumns,
	)
	t.MaxWidth = vars.FirstNonZero(
		int(configs.First[float64](loader, "review.max_width")),
		t.MaxWidth,
	)
	t.MaxLabelWidth = vars.FirstNonZero(
		configs.First[int](loader, "review.max_label_width"),
		t.MaxLabelWidth,
	)
	t.Digits = vars.FirstNonZero(
		configs.First[int](loader, "review.target_precision"),
		t.Digits,
	)
	maps.Copy(t.MaxPlotRows, configs.First[map[string]int](loader, "review.max_plot_rows"))
	return t
}
