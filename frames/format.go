package frames

import (
	"strconv"
	"strings"

	"go.starlark.net/starlark"
)

const floatFormatKey = "frames.float_format"

// FloatDigits returns the significant digits floats are displayed with on thread. Zero means shortest exact.
func FloatDigits(thread *starlark.Thread) int {
	if thread == nil {
		return 0
	}
	n, _ := thread.Local(floatFormatKey).(int)
	return n
}

// WithFloatDigits runs fn with the display digits set, restoring the previous setting afterwards.
func WithFloatDigits(thread *starlark.Thread, digits int, fn func() error) error {
	prev := FloatDigits(thread)
	thread.SetLocal(floatFormatKey, digits)
	defer thread.SetLocal(floatFormatKey, prev)
	return fn()
}

func FormatCell(v starlark.Value, digits int) string {
	switch v := v.(type) {
	case nil:
		return "NaN"
	case starlark.NoneType:
		return "None"
	case starlark.Float:
		if IsNA(v) {
			return "NaN"
		}
		if digits > 0 {
			return strconv.FormatFloat(float64(v), 'g', digits, 64)
		}
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case starlark.String:
		return string(v)
	}
	return v.String()
}

// renderTable lays out header and rows as right-aligned text columns.
func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}
	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
			b.WriteString(cell)
		}
		b.WriteString("\n")
	}
	writeRow(header)
	for _, row := range rows {
		writeRow(row)
	}
	return strings.TrimRight(b.String(), "\n")
}
