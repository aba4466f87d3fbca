package sandboxconfigs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/scisandbox/configs"
	"github.com/reusee/scisandbox/modes"
)

func TestSchemaAccepts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scisandbox.cue")
	if err := os.WriteFile(path, []byte(`
timeout: "2s"
max_attempts: 3
mutation_policy: "deny"
review: {
	max_table_rows: 20
	max_plot_rows: bar: 30
}
forbidden_calls: [{name: "print", severity: "record"}]
`), 0644); err != nil {
		t.Fatal(err)
	}
	dscope.New(
		modes.ForTest(t),
		new(Module),
	).Fork(
		dscope.Provide(configs.NewLoader([]string{path}, schema)),
	).Call(func(
		timeout Timeout,
		attempts MaxAttempts,
		timeouts MaxTimeouts,
		inProcess InProcess,
		loader configs.Loader,
	) {
		if time.Duration(timeout) != 2*time.Second {
			t.Fatalf("got %v", timeout)
		}
		if attempts != 3 {
			t.Fatalf("got %v", attempts)
		}
		if timeouts != 2 {
			t.Fatalf("got %v", timeouts)
		}
		if !inProcess {
			t.Fatal("development mode should default to in-process runs")
		}
		if n := configs.First[int](loader, "review.max_plot_rows.bar"); n != 30 {
			t.Fatalf("got %v", n)
		}
	})
}

func TestSchemaRejects(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scisandbox.cue")
	if err := os.WriteFile(path, []byte(`mutation_policy: "sometimes"`), 0644); err != nil {
		t.Fatal(err)
	}
	loader := configs.NewLoader([]string{path}, schema)
	if _, err := loader.Paths(); err == nil {
		t.Fatal("should fail")
	}
}

func TestDefaultTimeout(t *testing.T) {
	dscope.New(
		modes.ForTest(t),
		new(Module),
	).Fork(
		dscope.Provide(configs.NewLoader(nil, schema)),
	).Call(func(
		timeout Timeout,
	) {
		if timeout != DefaultTimeout {
			t.Fatalf("got %v", timeout)
		}
	})
}

func TestOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scisandbox.cue")
	if err := os.WriteFile(path, []byte(`
timeout: "2s"
max_attempts: 3
`), 0644); err != nil {
		t.Fatal(err)
	}
	loader := Overlay(configs.NewLoader([]string{path}, schema), []string{
		`max_attempts: 5`,
		`max_attempts: 7`,
	})
	if n := configs.First[int](loader, "max_attempts"); n != 7 {
		t.Fatalf("got %v", n)
	}
	if str := configs.First[string](loader, "timeout"); str != "2s" {
		t.Fatalf("got %v", str)
	}

	bad := Overlay(configs.NewLoader(nil, schema), []string{`no_such_key: 1`})
	if err := bad.AssignFirst("no_such_key", new(int)); err == nil {
		t.Fatal("should reject keys outside the schema")
	}
}
