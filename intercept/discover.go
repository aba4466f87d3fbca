package intercept

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.starlark.net/starlark"
)

type TargetKind uint8

const (
	KindFunction TargetKind = iota + 1
	KindMethod
)

// Target is a slot found by DiscoverTargets, addressed by its path from the root.
type Target struct {
	// Path holds the member names leading from the root to the table holding the slot.
	Path []string
	Name string
	Kind TargetKind
}

func (t Target) String() string {
	return strings.Join(append(append([]string(nil), t.Path...), t.Name), ".")
}

// Predicate selects targets. table is the module or class name holding the slot.
type Predicate func(table string, name string, value starlark.Value) bool

// DiscoverTargets walks modules reachable from root, and the classes they hold,
// returning every slot accepted by predicate. Modules and classes reachable by several paths are visited once.
func DiscoverTargets(root starlark.Value, predicate Predicate) []Target {
	var targets []Target
	visited := make(map[starlark.Value]bool)

	var walk func(v starlark.Value, path []string)
	walk = func(v starlark.Value, path []string) {
		if visited[v] {
			return
		}
		visited[v] = true

		table, kind := TableOf(v)
		if table == nil {
			return
		}
		for _, name := range table.SlotNames() {
			member, _ := table.Slot(name)
			if predicate(table.TableName(), name, member) {
				targets = append(targets, Target{
					Path: append([]string(nil), path...),
					Name: name,
					Kind: kind,
				})
			}
			switch member.(type) {
			case *Module, *Class:
				walk(member, append(path, name))
			}
		}
	}
	walk(root, nil)

	return targets
}

// TableOf returns the patchable table of a module or class.
func TableOf(v starlark.Value) (Table, TargetKind) {
	switch v := v.(type) {
	case *Module:
		return v.Dict, KindFunction
	case *Class:
		return v, KindMethod
	}
	return nil, 0
}

// Resolve finds the table holding a target under root.
func Resolve(root starlark.Value, target Target) (Table, bool) {
	v := root
	for _, name := range target.Path {
		table, _ := TableOf(v)
		if table == nil {
			return nil, false
		}
		var ok bool
		v, ok = table.Slot(name)
		if !ok {
			return nil, false
		}
	}
	table, _ := TableOf(v)
	return table, table != nil
}

// Discovery caches DiscoverTargets results per root module name and predicate key.
type Discovery struct {
	cache *lru.Cache[discoveryKey, []Target]
}

type discoveryKey struct {
	root      string
	predicate string
}

func NewDiscovery(size int) *Discovery {
	return &Discovery{
		cache: must(lru.New[discoveryKey, []Target](size)),
	}
}

func (d *Discovery) Discover(root starlark.Value, predicateKey string, predicate Predicate) []Target {
	key := discoveryKey{
		root:      rootName(root),
		predicate: predicateKey,
	}
	if targets, ok := d.cache.Get(key); ok {
		return targets
	}
	targets := DiscoverTargets(root, predicate)
	d.cache.Add(key, targets)
	return targets
}

func rootName(v starlark.Value) string {
	if table, _ := TableOf(v); table != nil {
		return table.TableName()
	}
	return v.Type()
}

// InstallAcrossSubmodules wraps every target under root accepted by predicate.
// On failure, installs already made are restored.
func InstallAcrossSubmodules(
	root starlark.Value,
	targets []Target,
	makeReplacement func(target Target, original starlark.Value) starlark.Value,
) (ret []*Uninstaller, err error) {
	defer func() {
		if err != nil {
			_ = RestoreAll(ret)
			ret = nil
		}
	}()
	for _, target := range targets {
		table, ok := Resolve(root, target)
		if !ok {
			continue
		}
		original, ok := table.Slot(target.Name)
		if !ok {
			continue
		}
		u, err := Install(table, target.Name, makeReplacement(target, original))
		if err != nil {
			return ret, err
		}
		ret = append(ret, u)
	}
	return ret, nil
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
