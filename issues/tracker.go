package issues

import "sync"

// Tracker counts issue recurrences across retries and drops issues whose forgiveness budget is spent.
type Tracker struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewTracker() *Tracker {
	return &Tracker{
		counts: make(map[string]int),
	}
}

// Forgivable reports whether the issue has a forgiveness budget that is not yet exhausted.
func (t *Tracker) Forgivable(issue Issue) bool {
	if issue.ForgiveAfter == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[issue.Key()] < *issue.ForgiveAfter
}

// Apply records one occurrence of every issue and returns the ones still blocking.
func (t *Tracker) Apply(list []Issue) []Issue {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ret []Issue
	seen := make(map[string]bool)
	for _, issue := range list {
		key := issue.Key()
		if !seen[key] {
			seen[key] = true
			t.counts[key]++
		}
		if issue.ForgiveAfter != nil && t.counts[key] > *issue.ForgiveAfter {
			continue
		}
		ret = append(ret, issue)
	}
	return ret
}

func (t *Tracker) Count(issue Issue) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[issue.Key()]
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.counts)
}
