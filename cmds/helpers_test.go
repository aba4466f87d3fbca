package cmds

import (
	"fmt"
	"testing"
	"time"
)

func TestVar(t *testing.T) {
	attempts := Var[int]("TestVar-attempts")
	dir := Var[string]("TestVar-dir")
	GlobalExecutor.MustExecute([]string{
		"TestVar-attempts", "5",
		"TestVar-dir", "run",
	})
	if *attempts != 5 {
		t.Fatalf("got %v", *attempts)
	}
	if *dir != "run" {
		t.Fatalf("got %v", *dir)
	}
}

func TestDurationVar(t *testing.T) {
	timeout := Var[time.Duration]("TestDurationVar")
	GlobalExecutor.MustExecute([]string{
		"TestDurationVar", "1m30s",
	})
	if *timeout != 90*time.Second {
		t.Fatalf("got %v", *timeout)
	}
	if err := GlobalExecutor.Execute([]string{
		"TestDurationVar", "soon",
	}); err == nil {
		t.Fatal("should error")
	}
}

func TestSwitch(t *testing.T) {
	outOfProcess := Switch("TestSwitch")
	GlobalExecutor.MustExecute([]string{
		"TestSwitch",
	})
	if !*outOfProcess {
		t.Fatal()
	}
	GlobalExecutor.MustExecute([]string{
		"!TestSwitch",
	})
	if *outOfProcess {
		t.Fatal()
	}
}

func TestCollect(t *testing.T) {
	patterns := Collect[string]("TestCollect")
	GlobalExecutor.MustExecute([]string{
		"TestCollect", "*.csv",
		"TestCollect", "table_?.pkl",
	})
	if str := fmt.Sprintf("%v", *patterns); str != "[*.csv table_?.pkl]" {
		t.Fatalf("got %s", str)
	}
}
