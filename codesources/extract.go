package codesources

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var fencePattern = regexp.MustCompile("(?ms)^[ \t]*```[ \t]*([A-Za-z0-9_+-]*)[ \t]*\n(.*?)\n[ \t]*```[ \t]*$")

// ExtractError is returned when a reply does not hold exactly one code block.
type ExtractError struct {
	Blocks int
	Reply  string
}

func (e *ExtractError) Error() string {
	if e.Blocks == 0 {
		return "no code block in reply"
	}
	return fmt.Sprintf("%d code blocks in reply", e.Blocks)
}

// Instructions tells the model how to fix the reply.
func (e *ExtractError) Instructions() string {
	if e.Blocks == 0 {
		return "Your reply does not contain code. Please send the complete code as a single triple-backtick block."
	}
	return fmt.Sprintf("You sent %d triple-backtick blocks. Please send the complete code as a single block.", e.Blocks)
}

var codeLanguages = []string{"", "python", "py", "starlark", "star"}

// ExtractCode returns the content of the only code block in the reply.
// Blocks tagged with other languages are ignored.
func ExtractCode(reply string) (string, error) {
	var blocks []string
	for _, m := range fencePattern.FindAllStringSubmatch(reply, -1) {
		if slices.Contains(codeLanguages, strings.ToLower(m[1])) {
			blocks = append(blocks, m[2])
		}
	}
	if len(blocks) != 1 {
		return "", &ExtractError{
			Blocks: len(blocks),
			Reply:  reply,
		}
	}
	code := blocks[0]
	if strings.TrimSpace(code) == "" {
		return "", &ExtractError{Reply: reply}
	}
	return code + "\n", nil
}
