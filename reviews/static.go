package reviews

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/sandbox"
	"go.starlark.net/syntax"
)

// reservedNames are provided names submitted code must not rebind.
var reservedNames = []string{
	"pd", "sm", "stats", "utils", "math", "json", "os", "time",
	"print", "str", "repr", "len", "range", "round", "abs", "min", "max", "sum",
}

// minHardcodedValues is how long a numeric literal list must be to count as pasted data.
const minHardcodedValues = 8

// StaticCheck inspects the source of submitted code. The issues found are advisory.
func StaticCheck(code string) []issues.Issue {
	f, err := sandbox.FileOptions.Parse(sandbox.ModuleFile, code, 0)
	if err != nil {
		// syntax errors are reported by the run
		return nil
	}
	var ret []issues.Issue
	shadowed := make(map[string]bool)
	syntax.Walk(f, func(n syntax.Node) bool {
		switch n := n.(type) {

		case *syntax.AssignStmt:
			for _, id := range boundIdents(n.LHS) {
				if slices.Contains(reservedNames, id.Name) && !shadowed[id.Name] {
					shadowed[id.Name] = true
					ret = append(ret, shadowIssue(id))
				}
			}

		case *syntax.DefStmt:
			if slices.Contains(reservedNames, n.Name.Name) && !shadowed[n.Name.Name] {
				shadowed[n.Name.Name] = true
				ret = append(ret, shadowIssue(n.Name))
			}

		case *syntax.CallExpr:
			if id, ok := n.Fn.(*syntax.Ident); ok && id.Name == "round" && len(n.Args) > 0 {
				if name := exprName(n.Args[0]); pValueName(name) {
					pos, _ := n.Span()
					ret = append(ret, issues.Issue{
						Category:     "Rounding p-values",
						Item:         name,
						IssueText:    fmt.Sprintf("Line %d rounds the p-value `%s`.", pos.Line, name),
						Instructions: "Do not round p-values. They are formatted when displayed.",
						CodeProblem:  issues.CodeProblemStaticCheck,
					})
				}
			}

		case *syntax.ListExpr:
			if numericLiterals(n.List) >= minHardcodedValues {
				pos, _ := n.Span()
				ret = append(ret, issues.Issue{
					Category:     "Hard-coded data",
					Item:         fmt.Sprintf("line %d", pos.Line),
					IssueText:    fmt.Sprintf("Line %d contains a list of %d numeric values.", pos.Line, len(n.List)),
					Instructions: "Compute values from the data files instead of writing them into the code.",
					CodeProblem:  issues.CodeProblemStaticCheck,
				})
			}
		}
		return true
	})
	return ret
}

func shadowIssue(id *syntax.Ident) issues.Issue {
	return issues.Issue{
		Category:     "Shadowing provided names",
		Item:         id.Name,
		IssueText:    fmt.Sprintf("Line %d binds `%s`, which is a provided name.", id.NamePos.Line, id.Name),
		Instructions: fmt.Sprintf("Use another name instead of `%s`.", id.Name),
		CodeProblem:  issues.CodeProblemStaticCheck,
	}
}

func boundIdents(lhs syntax.Expr) (ret []*syntax.Ident) {
	switch lhs := lhs.(type) {
	case *syntax.Ident:
		ret = append(ret, lhs)
	case *syntax.TupleExpr:
		for _, e := range lhs.List {
			ret = append(ret, boundIdents(e)...)
		}
	case *syntax.ListExpr:
		for _, e := range lhs.List {
			ret = append(ret, boundIdents(e)...)
		}
	case *syntax.ParenExpr:
		ret = append(ret, boundIdents(lhs.X)...)
	}
	return
}

func exprName(e syntax.Expr) string {
	switch e := e.(type) {
	case *syntax.Ident:
		return e.Name
	case *syntax.DotExpr:
		return e.Name.Name
	case *syntax.IndexExpr:
		if lit, ok := e.Y.(*syntax.Literal); ok && lit.Token == syntax.STRING {
			return lit.Value.(string)
		}
		return exprName(e.X)
	}
	return ""
}

var pValuePattern = regexp.MustCompile(`(?i)(^|_)(p|pval|pvalue|pvalues)($|_)|p_value|pvalue`)

func pValueName(name string) bool {
	return name != "" && pValuePattern.MatchString(name)
}

func numericLiterals(list []syntax.Expr) int {
	n := 0
	for _, e := range list {
		if u, ok := e.(*syntax.UnaryExpr); ok && u.Op == syntax.MINUS {
			e = u.X
		}
		if lit, ok := e.(*syntax.Literal); ok && (lit.Token == syntax.INT || lit.Token == syntax.FLOAT) {
			n++
		}
	}
	return n
}

var numberPattern = regexp.MustCompile(`\d+\.\d+(?:[eE][-+]?\d+)?`)

// checkPrecision flags decimals in text content written with more significant digits than targeted.
func checkPrecision(name, content string, target int) []issues.Issue {
	var examples []string
	for _, s := range numberPattern.FindAllString(content, -1) {
		if significantDigits(s) > target && !slices.Contains(examples, s) {
			examples = append(examples, s)
			if len(examples) == 3 {
				break
			}
		}
	}
	if len(examples) == 0 {
		return nil
	}
	return []issues.Issue{{
		Category:     "Too many significant digits",
		Item:         name,
		IssueText:    fmt.Sprintf("The file %q contains numbers like %s.", name, strings.Join(examples, ", ")),
		Instructions: fmt.Sprintf("Write numbers with %d significant digits.", target),
		CodeProblem:  issues.CodeProblemOutputContentC,
	}}
}

func significantDigits(s string) int {
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		s = s[:i]
	}
	s = strings.Replace(s, ".", "", 1)
	s = strings.TrimLeft(s, "0")
	return len(s)
}
