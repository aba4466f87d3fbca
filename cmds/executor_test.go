package cmds

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestExecutor(t *testing.T) {
	executor := NewExecutor()

	var attempts int
	executor.Define("+retry", Func(func() {
		attempts = 3
	}))
	executor.Define("attempts", Func(func(i int) {
		attempts = i
	}))

	if err := executor.Execute([]string{
		"+retry",
	}); err != nil {
		t.Fatal(err)
	}
	if attempts != 3 {
		t.Fatal()
	}

	if err := executor.Execute([]string{
		"attempts", "7",
	}); err != nil {
		t.Fatal(err)
	}
	if attempts != 7 {
		t.Fatal()
	}

	err := executor.Execute([]string{
		"sandbox",
	})
	if !strings.Contains(err.Error(), "unknown command: sandbox") {
		t.Fatalf("got %v", err)
	}

}

func TestSubCommands(t *testing.T) {
	executor := NewExecutor()
	var checked, limit int
	executor.Define("review", Sub(map[string]*Command{
		"tables": Func(func() {
			checked = 1
		}),
		"max-rows": Func(func(i int) {
			limit = i
		}),
	}))

	if err := executor.Execute([]string{
		"review",
		"tables",
		"max-rows", "20",
	}); err != nil {
		t.Fatal(err)
	}

	if checked != 1 {
		t.Fatal()
	}
	if limit != 20 {
		t.Fatal()
	}

}

func TestDuplicatedSubCommand(t *testing.T) {
	executor := NewExecutor()
	executor.Define("run", Sub(map[string]*Command{
		"a": nil,
	}))
	executor.Define("check", Sub(map[string]*Command{
		"a": nil,
	}))
	err := executor.Execute([]string{"run", "check"})
	if !strings.Contains(err.Error(), "duplicated sub command: check a") {
		t.Fatalf("got %v", err)
	}
}

func TestOptionalArgument(t *testing.T) {
	executor := NewExecutor()
	var n int
	var s string
	executor.Define("run", Func(func(attempts *int, dir *string) {
		n = *attempts
		s = *dir
	}))

	if err := executor.Execute([]string{"run", "4", "out"}); err != nil {
		t.Fatal(err)
	}
	if n != 4 || s != "out" {
		t.Fatalf("got %v %v", n, s)
	}

	if err := executor.Execute([]string{"run", "9"}); err != nil {
		t.Fatal(err)
	}
	if n != 9 || s != "" {
		t.Fatalf("got %v %v", n, s)
	}

	if err := executor.Execute([]string{"run"}); err != nil {
		t.Fatal(err)
	}
	if n != 0 || s != "" {
		t.Fatalf("got %v %v", n, s)
	}
}

func TestTextArgument(t *testing.T) {
	executor := NewExecutor()
	var level slog.Level
	executor.Define("level", Func(func(l slog.Level) {
		level = l
	}))
	if err := executor.Execute([]string{"level", "warn"}); err != nil {
		t.Fatal(err)
	}
	if level != slog.LevelWarn {
		t.Fatalf("got %v", level)
	}
	err := executor.Execute([]string{"level", "loud"})
	if err == nil || !strings.HasPrefix(err.Error(), "level: convert loud") {
		t.Fatalf("got %v", err)
	}
}

func TestCommandError(t *testing.T) {
	executor := NewExecutor()
	executor.Define("fail", Func(func() error {
		return errors.New("boom")
	}))
	executor.Define("ok", Func(func() error {
		return nil
	}))
	if err := executor.Execute([]string{"ok"}); err != nil {
		t.Fatal(err)
	}
	if err := executor.Execute([]string{"fail"}); err == nil || err.Error() != "fail: boom" {
		t.Fatalf("got %v", err)
	}
}
