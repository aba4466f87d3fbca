package intercept

import (
	"strings"
	"testing"

	"go.starlark.net/starlark"
)

func testPackage() *Module {
	ols := NewClass("OLS", "")
	ols.Define("__init__", constant("OLS", starlark.None))
	ols.Define("fit", constant("fit", starlark.None))
	ols.Define("fit_regularized", constant("fit_regularized", starlark.None))
	ols.Define("predict", constant("predict", starlark.None))
	logit := NewClass("Logit", "")
	logit.Define("fit", constant("fit", starlark.None))

	root := NewModule("stats", "", starlark.StringDict{
		"OLS": ols,
	})
	regression := NewModule("stats.regression", "", starlark.StringDict{
		"OLS":   ols,
		"Logit": logit,
	})
	root.SetSlot("regression", regression)
	// cycle
	root.SetSlot("api", root)
	regression.SetSlot("parent", root)
	return root
}

func isFit(table string, name string, value starlark.Value) bool {
	return strings.HasPrefix(name, "fit")
}

func TestDiscoverTargets(t *testing.T) {
	root := testPackage()
	targets := DiscoverTargets(root, isFit)
	var names []string
	for _, target := range targets {
		names = append(names, target.String())
		if target.Kind != KindMethod {
			t.Fatalf("got %v", target.Kind)
		}
	}
	// OLS is reachable twice but visited once
	if len(targets) != 3 {
		t.Fatalf("got %v", names)
	}
	if names[0] != "OLS.fit" || names[1] != "OLS.fit_regularized" || names[2] != "regression.Logit.fit" {
		t.Fatalf("got %v", names)
	}

	// pure
	if fit, _ := root.Slot("OLS"); fit == nil {
		t.Fatal()
	}
	again := DiscoverTargets(root, isFit)
	if len(again) != len(targets) {
		t.Fatal()
	}
}

func TestDiscoveryCacheAndInstall(t *testing.T) {
	discovery := NewDiscovery(8)
	calls := 0
	predicate := func(table, name string, value starlark.Value) bool {
		calls++
		return isFit(table, name, value)
	}
	first := discovery.Discover(testPackage(), "fit", predicate)
	n := calls
	// a fresh package instance with the same name reuses the cached paths
	root := testPackage()
	second := discovery.Discover(root, "fit", predicate)
	if calls != n {
		t.Fatal("should be cached")
	}
	if len(first) != len(second) {
		t.Fatal()
	}

	uninstallers, err := InstallAcrossSubmodules(root, second, func(target Target, original starlark.Value) starlark.Value {
		return constant("wrapped_"+target.Name, starlark.None)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(uninstallers) != 3 {
		t.Fatalf("got %d", len(uninstallers))
	}
	ols, _ := root.Slot("OLS")
	fit, _ := ols.(*Class).Slot("fit")
	if fit.(*starlark.Builtin).Name() != "wrapped_fit" {
		t.Fatalf("got %v", fit)
	}
	if err := RestoreAll(uninstallers); err != nil {
		t.Fatal(err)
	}
	fit, _ = ols.(*Class).Slot("fit")
	if fit.(*starlark.Builtin).Name() != "fit" {
		t.Fatalf("got %v", fit)
	}
}
