package pvalues

import (
	"testing"

	"go.starlark.net/starlark"
)

func TestRewriteComparisons(t *testing.T) {
	f, err := fileOptions.Parse("cmp.star", `
def significant(x, alpha=0.05 if True else 0.1):
	return x < alpha

small = significant(p)
same = p == 0.001
bigger = [v for v in [0.5, p] if v > 0.01]
kw = dict(flag=p >= 0.5)
picked = (p != 1) and not (p <= 0)
`, 0)
	if err != nil {
		t.Fatal(err)
	}
	RewriteComparisons(f)
	predeclared := Builtins()
	predeclared["p"] = New(0.001, "ttest_ind", nil)
	prog, err := starlark.FileProgram(f, predeclared.Has)
	if err != nil {
		t.Fatal(err)
	}
	globals, err := prog.Init(&starlark.Thread{Name: "test"}, predeclared)
	if err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string]string{
		"small":  "True",
		"same":   "True",
		"bigger": "[0.5]",
		"kw":     `{"flag": False}`,
		"picked": "True",
	} {
		if got := globals[name].String(); got != want {
			t.Fatalf("%s: got %s", name, got)
		}
	}
}
