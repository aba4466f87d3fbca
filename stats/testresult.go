package stats

import (
	"fmt"
	"slices"
	"strings"

	"github.com/reusee/scisandbox/pvalues"
	"go.starlark.net/starlark"
)

// TestResult is the named-field result of a hypothesis test.
// It unpacks positionally like a tuple unless OnUnpack refuses.
type TestResult struct {
	Name   string
	Fields []string
	Values []starlark.Value

	// OnUnpack is called before positional iteration. A non-nil error stops the iteration.
	OnUnpack func() error
}

var (
	_ starlark.HasAttrs  = new(TestResult)
	_ starlark.Iterable  = new(TestResult)
	_ starlark.Indexable = new(TestResult)
	_ pvalues.Walker     = new(TestResult)
)

func (t *TestResult) String() string {
	var b strings.Builder
	b.WriteString(t.Name)
	b.WriteString("(")
	for i, f := range t.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f)
		b.WriteString("=")
		b.WriteString(t.Values[i].String())
	}
	b.WriteString(")")
	return b.String()
}

func (t *TestResult) Type() string {
	return t.Name
}

func (t *TestResult) Freeze() {}

func (t *TestResult) Truth() starlark.Bool {
	return true
}

func (t *TestResult) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable: %s", t.Name)
}

func (t *TestResult) Attr(name string) (starlark.Value, error) {
	if i := slices.Index(t.Fields, name); i >= 0 {
		return t.Values[i], nil
	}
	return nil, nil
}

func (t *TestResult) AttrNames() []string {
	return slices.Sorted(slices.Values(t.Fields))
}

func (t *TestResult) Index(i int) starlark.Value {
	return t.Values[i]
}

func (t *TestResult) Len() int {
	return len(t.Values)
}

func (t *TestResult) Iterate() starlark.Iterator {
	if t.OnUnpack != nil {
		if err := t.OnUnpack(); err != nil {
			return nil
		}
	}
	return starlark.Tuple(t.Values).Iterate()
}

func (t *TestResult) WalkValues(fn func(starlark.Value) bool) {
	for _, v := range t.Values {
		if !fn(v) {
			return
		}
	}
}

// With returns a copy with the named field replaced.
func (t *TestResult) With(field string, value starlark.Value) *TestResult {
	ret := *t
	ret.Values = slices.Clone(t.Values)
	if i := slices.Index(t.Fields, field); i >= 0 {
		ret.Values[i] = value
	}
	return &ret
}
