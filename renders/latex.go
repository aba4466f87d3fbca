// Package renders turns artifacts into LaTeX and checks that the result compiles.
package renders

import (
	"fmt"
	"slices"
	"strings"
)

type GlossaryEntry struct {
	Key   string
	Value string
}

type TableSpec struct {
	Columns   []string
	IndexName string
	Index     []string
	// Rows are formatted cells, one slice per index entry.
	Rows     [][]string
	Caption  string
	Note     string
	Label    string
	Glossary []GlossaryEntry
}

var escaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// Escape makes plain text safe inside LaTeX text mode.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Transpose swaps columns and index.
func (t TableSpec) Transpose() TableSpec {
	ret := t
	ret.Columns = slices.Clone(t.Index)
	ret.Index = slices.Clone(t.Columns)
	ret.IndexName = ""
	ret.Rows = make([][]string, len(t.Columns))
	for j := range t.Columns {
		for i := range t.Index {
			ret.Rows[j] = append(ret.Rows[j], t.Rows[i][j])
		}
	}
	return ret
}

func writeNotes(b *strings.Builder, note string, glossary []GlossaryEntry) {
	if note == "" && len(glossary) == 0 {
		return
	}
	b.WriteString("\\begin{tablenotes}\n\\footnotesize\n")
	if note != "" {
		fmt.Fprintf(b, "\\item %s\n", note)
	}
	for _, entry := range glossary {
		fmt.Fprintf(b, "\\item \\textbf{%s}: %s\n", Escape(entry.Key), entry.Value)
	}
	b.WriteString("\\end{tablenotes}\n")
}

// Table renders a threeparttable. Labels and cells are escaped; caption, note and glossary values are LaTeX.
func Table(spec TableSpec) string {
	var b strings.Builder
	b.WriteString("\\begin{table}[h]\n")
	if spec.Caption != "" {
		fmt.Fprintf(&b, "\\caption{%s}\n", spec.Caption)
	}
	if spec.Label != "" {
		fmt.Fprintf(&b, "\\label{%s}\n", spec.Label)
	}
	b.WriteString("\\centering\n\\begin{threeparttable}\n")
	fmt.Fprintf(&b, "\\begin{tabular}{l%s}\n", strings.Repeat("r", len(spec.Columns)))
	b.WriteString("\\toprule\n")
	header := []string{Escape(spec.IndexName)}
	for _, c := range spec.Columns {
		header = append(header, "\\textbf{"+Escape(c)+"}")
	}
	b.WriteString(strings.Join(header, " & "))
	b.WriteString(" \\\\\n\\midrule\n")
	for i, row := range spec.Rows {
		cells := make([]string, 0, len(row)+1)
		label := ""
		if i < len(spec.Index) {
			label = "\\textbf{" + Escape(spec.Index[i]) + "}"
		}
		cells = append(cells, label)
		for _, cell := range row {
			cells = append(cells, Escape(cell))
		}
		b.WriteString(strings.Join(cells, " & "))
		b.WriteString(" \\\\\n")
	}
	b.WriteString("\\bottomrule\n\\end{tabular}\n")
	writeNotes(&b, spec.Note, spec.Glossary)
	b.WriteString("\\end{threeparttable}\n\\end{table}\n")
	return b.String()
}

type FigureSpec struct {
	Kind   string
	X      string
	Y      []string
	YErr   []string
	LogY   bool
	Labels []string
	// Series holds the y values per Y column, aligned with Labels.
	Series   [][]float64
	Errors   [][]float64
	Caption  string
	Note     string
	Label    string
	Glossary []GlossaryEntry
}

// Figure renders a pgfplots figure.
func Figure(spec FigureSpec) string {
	var b strings.Builder
	b.WriteString("\\begin{figure}[h]\n\\centering\n\\begin{tikzpicture}\n")
	axis := "axis"
	if spec.LogY {
		axis = "semilogyaxis"
	}
	options := []string{
		"xlabel={" + Escape(spec.X) + "}",
	}
	if spec.Kind == "bar" {
		options = append(options, "ybar")
		coords := make([]string, 0, len(spec.Labels))
		for _, l := range spec.Labels {
			coords = append(coords, Escape(l))
		}
		options = append(options, "symbolic x coords={"+strings.Join(coords, ",")+"}", "xtick=data")
	}
	fmt.Fprintf(&b, "\\begin{%s}[%s]\n", axis, strings.Join(options, ", "))
	for k, name := range spec.Y {
		plot := "\\addplot"
		if k < len(spec.Errors) && spec.Errors[k] != nil {
			plot += "+[error bars/.cd, y dir=both, y explicit]"
		}
		b.WriteString(plot + " coordinates {")
		for i, label := range spec.Labels {
			if i >= len(spec.Series[k]) {
				break
			}
			x := label
			if spec.Kind == "bar" {
				x = Escape(label)
			}
			fmt.Fprintf(&b, " (%s,%g)", x, spec.Series[k][i])
			if k < len(spec.Errors) && spec.Errors[k] != nil && i < len(spec.Errors[k]) {
				fmt.Fprintf(&b, " +- (0,%g)", spec.Errors[k][i])
			}
		}
		b.WriteString(" };\n")
		fmt.Fprintf(&b, "\\addlegendentry{%s}\n", Escape(name))
	}
	fmt.Fprintf(&b, "\\end{%s}\n\\end{tikzpicture}\n", axis)
	if spec.Caption != "" {
		fmt.Fprintf(&b, "\\caption{%s}\n", spec.Caption)
	}
	if spec.Label != "" {
		fmt.Fprintf(&b, "\\label{%s}\n", spec.Label)
	}
	if spec.Note != "" || len(spec.Glossary) > 0 {
		b.WriteString("\\begin{minipage}{\\linewidth}\\footnotesize\n")
		if spec.Note != "" {
			b.WriteString(spec.Note + "\n")
		}
		for _, entry := range spec.Glossary {
			fmt.Fprintf(&b, "\\textbf{%s}: %s\n", Escape(entry.Key), entry.Value)
		}
		b.WriteString("\\end{minipage}\n")
	}
	b.WriteString("\\end{figure}\n")
	return b.String()
}
