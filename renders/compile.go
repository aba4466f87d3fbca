package renders

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

type CompileError struct {
	Line    int
	Message string
}

func (c *CompileError) Error() string {
	return fmt.Sprintf("LaTeX error on line %d: %s", c.Line, c.Message)
}

// Compile checks what would stop LaTeX: unbalanced groups, math shifts or environments,
// and math-only characters in text mode.
func Compile(source string) error {
	var envs []string
	for n, line := range strings.Split(source, "\n") {
		if err := compileLine(line, n+1, &envs); err != nil {
			return err
		}
	}
	if len(envs) > 0 {
		return &CompileError{
			Line:    strings.Count(source, "\n") + 1,
			Message: fmt.Sprintf("\\begin{%s} ended by end of file", envs[len(envs)-1]),
		}
	}
	return nil
}

func compileLine(line string, n int, envs *[]string) error {
	depth := 0
	math := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch c {
		case '\\':
			if i+1 >= len(line) {
				continue
			}
			next := line[i+1]
			if !isLetter(next) {
				// control symbol
				i++
				continue
			}
			j := i + 1
			for j < len(line) && isLetter(line[j]) {
				j++
			}
			command := line[i+1 : j]
			if command == "begin" || command == "end" {
				name, ok := groupArg(line[j:])
				if !ok {
					return &CompileError{Line: n, Message: fmt.Sprintf("missing environment name after \\%s", command)}
				}
				if command == "begin" {
					*envs = append(*envs, name)
				} else {
					if len(*envs) == 0 || (*envs)[len(*envs)-1] != name {
						return &CompileError{Line: n, Message: fmt.Sprintf("\\end{%s} does not match", name)}
					}
					*envs = (*envs)[:len(*envs)-1]
				}
			}
			i = j - 1
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return &CompileError{Line: n, Message: "too many }'s"}
			}
		case '$':
			math = !math
		case '_', '^':
			if !math {
				return &CompileError{Line: n, Message: fmt.Sprintf("missing $ inserted before %q", c)}
			}
		case '%':
			// comment
			i = len(line)
		case '#':
			return &CompileError{Line: n, Message: "illegal parameter number in definition"}
		}
	}
	if depth != 0 {
		return &CompileError{Line: n, Message: "runaway argument: unbalanced braces"}
	}
	if math {
		return &CompileError{Line: n, Message: "missing $ inserted at end of line"}
	}
	return nil
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func groupArg(s string) (string, bool) {
	if !strings.HasPrefix(s, "{") {
		return "", false
	}
	end := strings.IndexByte(s, '}')
	if end < 0 {
		return "", false
	}
	return s[1:end], true
}

// DisplayWidth is the number of columns s takes in monospace, counting wide characters twice.
func DisplayWidth(s string) int {
	n := 0
	for _, r := range s {
		if r == utf8.RuneError {
			n++
			continue
		}
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// columnGap is the space between two tabular columns, in characters.
const columnGap = 2

// TableWidth measures a table as rendered text.
func TableWidth(spec TableSpec) int {
	widths := ColumnWidths(spec)
	total := 0
	for _, w := range widths {
		total += w
	}
	return total + columnGap*(len(widths)-1)
}

// ColumnWidths returns the width of the index column followed by each data column.
func ColumnWidths(spec TableSpec) []int {
	ret := make([]int, len(spec.Columns)+1)
	ret[0] = DisplayWidth(spec.IndexName)
	for _, label := range spec.Index {
		ret[0] = max(ret[0], DisplayWidth(label))
	}
	for j, c := range spec.Columns {
		ret[j+1] = DisplayWidth(c)
		for _, row := range spec.Rows {
			if j < len(row) {
				ret[j+1] = max(ret[j+1], DisplayWidth(row[j]))
			}
		}
	}
	return ret
}

// LongLabels returns labels at least factor times longer than the median label, longest first.
func LongLabels(spec TableSpec, factor float64) []string {
	labels := slices.Concat(spec.Columns, spec.Index)
	if len(labels) == 0 {
		return nil
	}
	lengths := make([]int, 0, len(labels))
	for _, l := range labels {
		lengths = append(lengths, DisplayWidth(l))
	}
	sorted := slices.Clone(lengths)
	slices.Sort(sorted)
	median := float64(sorted[len(sorted)/2])
	var ret []string
	for i, l := range labels {
		if float64(lengths[i]) >= factor*median && !slices.Contains(ret, l) {
			ret = append(ret, l)
		}
	}
	slices.SortStableFunc(ret, func(a, b string) int {
		return DisplayWidth(b) - DisplayWidth(a)
	})
	return ret
}
