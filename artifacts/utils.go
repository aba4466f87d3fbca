package artifacts

import (
	"fmt"
	"slices"
	"sync"

	"github.com/reusee/scisandbox/files"
	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/intercept"
	"go.starlark.net/starlark"
)

// ModuleName is the name submitted code loads the display item functions by.
const ModuleName = "utils"

// Library is the utils module of one run and the display items recorded through it.
type Library struct {
	Module *intercept.Module
	// Digits is the significant digits floats are rendered with.
	Digits int

	mu        sync.Mutex
	artifacts []*Artifact
}

func New(digits int) *Library {
	lib := &Library{
		Digits: digits,
	}
	lib.Module = intercept.NewModule(ModuleName, "Display items for the paper.", starlark.StringDict{
		"to_table": intercept.NewFunc("to_table",
			"Save a dataframe as a table of the paper, with caption, note and glossary of abbreviations.",
			lib.toTable),
		"to_figure": intercept.NewFunc("to_figure",
			"Save a dataframe as a figure of the paper, plotting y columns against x.",
			lib.toFigure),
	})
	return lib
}

func (l *Library) Artifacts() []*Artifact {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Artifact(nil), l.artifacts...)
}

func (l *Library) add(a *Artifact) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.artifacts = append(l.artifacts, a)
}

type commonArgs struct {
	df       starlark.Value
	filename starlark.Value
	caption  starlark.Value
	note     starlark.Value
	glossary starlark.Value
	label    starlark.Value
}

func optString(v starlark.Value) *string {
	s, ok := starlark.AsString(v)
	if !ok {
		return nil
	}
	return &s
}

// fill copies what can be read from the arguments. Wrong types are kept in ArgTypes for review.
func (c *commonArgs) fill(a *Artifact) {
	a.ArgTypes = make(map[string]string)
	for name, v := range map[string]starlark.Value{
		"df":       c.df,
		"filename": c.filename,
		"caption":  c.caption,
		"note":     c.note,
		"glossary": c.glossary,
		"label":    c.label,
	} {
		if v != nil {
			a.ArgTypes[name] = v.Type()
		}
	}
	if f, ok := c.df.(*frames.Frame); ok {
		a.Frame = frames.NewEnvelope(f)
		a.SourceFile = f.FilePath
	}
	a.Filename, _ = starlark.AsString(c.filename)
	a.Caption = optString(c.caption)
	a.Note = optString(c.note)
	a.Label = optString(c.label)
	if dict, ok := c.glossary.(*starlark.Dict); ok {
		a.Glossary = make(map[string]string)
		for _, item := range dict.Items() {
			key, ok1 := starlark.AsString(item[0])
			value, ok2 := starlark.AsString(item[1])
			if ok1 && ok2 {
				a.Glossary[key] = value
			}
		}
	}
}

func (l *Library) save(thread *starlark.Thread, a *Artifact) error {
	l.add(a)
	if a.Frame == nil || a.Filename == "" {
		return nil
	}
	a.Rendered = a.Render(l.Digits)
	return files.WriteFile(thread, a.Filename, []byte(a.Rendered))
}

func (l *Library) toTable(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var c commonArgs
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"df", &c.df,
		"filename", &c.filename,
		"caption?", &c.caption,
		"note?", &c.note,
		"glossary?", &c.glossary,
		"label?", &c.label,
	); err != nil {
		return nil, err
	}
	a := &Artifact{
		Kind: KindTable,
		Pass: 2,
	}
	c.fill(a)
	if err := l.save(thread, a); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func stringOrList(name string, v starlark.Value) ([]string, error) {
	if v == nil || v == starlark.None {
		return nil, nil
	}
	if s, ok := starlark.AsString(v); ok {
		return []string{s}, nil
	}
	values, ok := frames.Values(v)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want str or list of str", name, v.Type())
	}
	ret := make([]string, 0, len(values))
	for _, value := range values {
		s, ok := starlark.AsString(value)
		if !ok {
			return nil, fmt.Errorf("%s: got %s element, want str", name, value.Type())
		}
		ret = append(ret, s)
	}
	return ret, nil
}

func (l *Library) toFigure(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var c commonArgs
	kind := "bar"
	var x string
	var y, yerr starlark.Value
	logy := false
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"df", &c.df,
		"filename", &c.filename,
		"kind?", &kind,
		"x?", &x,
		"y?", &y,
		"yerr?", &yerr,
		"logy?", &logy,
		"caption?", &c.caption,
		"note?", &c.note,
		"glossary?", &c.glossary,
		"label?", &c.label,
	); err != nil {
		return nil, err
	}
	a := &Artifact{
		Kind:     KindFigure,
		Pass:     2,
		PlotKind: kind,
		X:        x,
		LogY:     logy,
	}
	c.fill(a)
	var err error
	if a.Y, err = stringOrList("y", y); err != nil {
		return nil, err
	}
	if a.YErr, err = stringOrList("yerr", yerr); err != nil {
		return nil, err
	}
	if len(a.Y) == 0 && a.Frame != nil {
		for _, column := range a.Frame.Columns {
			if column != x && !slices.Contains(a.YErr, column) {
				a.Y = append(a.Y, column)
			}
		}
	}
	if err := l.save(thread, a); err != nil {
		return nil, err
	}
	return starlark.None, nil
}
