package issues

import "testing"

func TestTrackerForgiveAfter(t *testing.T) {
	tracker := NewTracker()
	issue := Issue{
		Category:     "Checking df",
		IssueText:    "too many rows",
		CodeProblem:  CodeProblemOutputContentB,
		ForgiveAfter: ForgiveAfter(2),
	}
	for run := 1; run <= 3; run++ {
		forgivable := tracker.Forgivable(issue)
		if !forgivable && run < 3 {
			t.Fatalf("run %d: should be forgivable", run)
		}
		if forgivable && run == 3 {
			t.Fatalf("run %d: budget should be spent", run)
		}
		got := tracker.Apply([]Issue{issue})
		if run <= 2 && len(got) != 1 {
			t.Fatalf("run %d: got %v", run, got)
		}
		if run == 3 && len(got) != 0 {
			t.Fatalf("run %d: got %v", run, got)
		}
	}
}

func TestTrackerNoForgiveness(t *testing.T) {
	tracker := NewTracker()
	issue := Issue{
		Category:  "x",
		IssueText: "y",
	}
	for range 5 {
		if got := tracker.Apply([]Issue{issue}); len(got) != 1 {
			t.Fatalf("got %v", got)
		}
	}
	if tracker.Count(issue) != 5 {
		t.Fatalf("got %d", tracker.Count(issue))
	}
	tracker.Reset()
	if tracker.Count(issue) != 0 {
		t.Fatal()
	}
}

func TestTrackerDuplicatesInOneRun(t *testing.T) {
	tracker := NewTracker()
	issue := Issue{
		Category:     "x",
		IssueText:    "y",
		ForgiveAfter: ForgiveAfter(1),
	}
	got := tracker.Apply([]Issue{issue, issue})
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	if tracker.Count(issue) != 1 {
		t.Fatalf("got %d", tracker.Count(issue))
	}
}
