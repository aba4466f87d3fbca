package configs

import (
	"iter"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

type Loader struct {
	getRoots func() ([]rootInfo, error)
}

type rootInfo struct {
	value cue.Value
	path  string
}

// compile parses src and validates it against the closed schema, if any.
func compile(ctx *cue.Context, name string, src []byte, schemaSrc string) (cue.Value, error) {
	value := ctx.CompileBytes(src, cue.Filename(name))
	if err := value.Err(); err != nil {
		return value, err
	}
	if schemaSrc == "" {
		return value, nil
	}
	schema := ctx.CompileString("close({" + schemaSrc + "})")
	if err := schema.Err(); err != nil {
		return value, err
	}
	if err := schema.Unify(value).Validate(); err != nil {
		return value, err
	}
	return value, nil
}

// NewLoader reads the files at filePaths, most specific first.
func NewLoader(filePaths []string, schemaSrc string) Loader {
	return Loader{
		getRoots: sync.OnceValues(func() ([]rootInfo, error) {
			ret := make([]rootInfo, 0, len(filePaths))
			for _, filePath := range filePaths {
				content, err := os.ReadFile(filePath)
				if err != nil {
					return nil, err
				}
				value, err := compile(cuecontext.New(), filePath, content, schemaSrc)
				if err != nil {
					return nil, err
				}
				ret = append(ret, rootInfo{
					value: value,
					path:  filePath,
				})
			}
			return ret, nil
		}),
	}
}

// WithOverlay returns a loader that consults src, a CUE snippet, before the sources of l.
func (l Loader) WithOverlay(name string, src string, schemaSrc string) Loader {
	getRoots := l.getRoots
	return Loader{
		getRoots: sync.OnceValues(func() ([]rootInfo, error) {
			value, err := compile(cuecontext.New(), name, []byte(src), schemaSrc)
			if err != nil {
				return nil, err
			}
			rest, err := getRoots()
			if err != nil {
				return nil, err
			}
			return append([]rootInfo{{
				value: value,
				path:  name,
			}}, rest...), nil
		}),
	}
}

// Paths returns the config sources in priority order.
func (l Loader) Paths() ([]string, error) {
	roots, err := l.getRoots()
	if err != nil {
		return nil, err
	}
	ret := make([]string, 0, len(roots))
	for _, root := range roots {
		ret = append(ret, root.path)
	}
	return ret, nil
}

// lookup yields the values at path in priority order, skipping sources that lack it.
func (l Loader) lookup(path string) iter.Seq2[cue.Value, error] {
	return func(yield func(cue.Value, error) bool) {
		roots, err := l.getRoots()
		if err != nil {
			yield(cue.Value{}, err)
			return
		}
		cuePath := cue.ParsePath(path)
		for _, info := range roots {
			value := info.value.LookupPath(cuePath)
			if value.Err() != nil || !value.Exists() {
				continue
			}
			if !yield(value, nil) {
				return
			}
		}
	}
}

func (l Loader) IterCueValues(path string) iter.Seq2[*cue.Value, error] {
	return func(yield func(*cue.Value, error) bool) {
		for value, err := range l.lookup(path) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(&value, nil) {
				return
			}
		}
	}
}

// AssignFirst decodes the most specific value at path into target.
func (l Loader) AssignFirst(path string, target any) error {
	for value, err := range l.lookup(path) {
		if err != nil {
			return err
		}
		return value.Decode(target)
	}
	return ErrValueNotFound
}
