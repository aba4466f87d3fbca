package issues

import (
	"fmt"
	"slices"
	"strings"
)

// Format renders issues as correction instructions for the code-writing model.
// Only the most severe kind is shown, grouped by category.
func Format(list []Issue) string {
	list = MostSevere(list)
	if len(list) == 0 {
		return ""
	}
	var categories []string
	byCategory := make(map[string][]Issue)
	for _, issue := range list {
		if _, ok := byCategory[issue.Category]; !ok {
			categories = append(categories, issue.Category)
		}
		byCategory[issue.Category] = append(byCategory[issue.Category], issue)
	}
	var b strings.Builder
	for _, category := range categories {
		fmt.Fprintf(&b, "# %s\n", category)
		var instructions []string
		for _, issue := range byCategory[category] {
			if issue.Item != "" {
				fmt.Fprintf(&b, "* %s:\n%s\n\n", issue.Item, issue.IssueText)
			} else {
				fmt.Fprintf(&b, "%s\n\n", issue.IssueText)
			}
			if issue.Instructions != "" && !slices.Contains(instructions, issue.Instructions) {
				instructions = append(instructions, issue.Instructions)
			}
		}
		for _, instruction := range instructions {
			b.WriteString(instruction)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
