// Package history persists validated performance runs and computes
// trends over them.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/perfgate/perfgate/internal/budget"
	"github.com/perfgate/perfgate/internal/perf"
)

// Retention keeps the intersection of both limits: an entry survives
// only while it is within the rolling window and among the most recent
// RetentionCap entries for its test.
const (
	RetentionWindow = 30 * 24 * time.Hour
	RetentionCap    = 100
)

type Metadata struct {
	Browser  string `json:"browser,omitempty"`
	Viewport string `json:"viewport,omitempty"`
	Commit   string `json:"commit,omitempty"`
	Branch   string `json:"branch,omitempty"`
}

type Entry struct {
	ID          uuid.UUID               `json:"id"`
	TestName    string                  `json:"test_name"`
	Timestamp   time.Time               `json:"timestamp"`
	Environment string                  `json:"environment"`
	Snapshot    perf.Snapshot           `json:"snapshot"`
	Validation  budget.ValidationResult `json:"validation"`
	Metadata    Metadata                `json:"metadata"`
}

// RunSummary is the index record kept for the current-run document.
type RunSummary struct {
	TestName   string    `json:"test_name"`
	Timestamp  time.Time `json:"timestamp"`
	Commit     string    `json:"commit,omitempty"`
	Branch     string    `json:"branch,omitempty"`
	Passed     bool      `json:"passed"`
	Violations int       `json:"violations"`
}

type Store interface {
	// Record appends entry to its test's history and enforces
	// retention. Entries are stored in arrival order with
	// non-decreasing timestamps.
	Record(ctx context.Context, entry Entry) error

	// History returns the retained entries for testName, oldest
	// first. A test with no history yields an empty slice, not an
	// error.
	History(ctx context.Context, testName string) ([]Entry, error)

	// Tests lists the test names with retained history.
	Tests(ctx context.Context) ([]string, error)
}

// prune applies the dual retention policy to an ordered history.
func prune(entries []Entry, now time.Time) []Entry {
	cutoff := now.Add(-RetentionWindow)

	kept := entries[:0]
	for _, e := range entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}

	if len(kept) > RetentionCap {
		kept = kept[len(kept)-RetentionCap:]
	}

	return kept
}
