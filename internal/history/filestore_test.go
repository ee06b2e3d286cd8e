package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfgate/perfgate/internal/budget"
	"github.com/perfgate/perfgate/internal/perf"
)

func testEntry(testName string, ts time.Time, domContentLoaded float64) Entry {
	var snap perf.Snapshot
	snap.SessionID = uuid.NewString()
	snap.PageLoad.DOMContentLoaded = domContentLoaded

	return Entry{
		ID:          uuid.New(),
		TestName:    testName,
		Timestamp:   ts,
		Environment: "ci",
		Snapshot:    snap,
		Validation:  budget.ValidationResult{Passed: true},
		Metadata: Metadata{
			Browser:  "chromium",
			Viewport: "1280x720",
			Commit:   "abc1234",
			Branch:   "main",
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	entry := testEntry("dashboard-load", time.Now().UTC().Truncate(time.Millisecond), 1800)

	require.NoError(t, store.Record(ctx, entry))

	entries, err := store.History(ctx, "dashboard-load")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, entry, entries[0], "the recorded entry reads back field-for-field")
}

func TestFileStoreUnknownTest(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	entries, err := store.History(context.Background(), "never-recorded")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStoreTests(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Record(ctx, testEntry("login-flow", now, 900)))
	require.NoError(t, store.Record(ctx, testEntry("dashboard-load", now, 1100)))

	names, err := store.Tests(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dashboard-load", "login-flow"}, names)
}

func TestFileStoreRetentionCap(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < RetentionCap+20; i++ {
		entry := testEntry("busy-test", base.Add(time.Duration(i)*time.Second), float64(i))
		require.NoError(t, store.Record(ctx, entry))
	}

	entries, err := store.History(ctx, "busy-test")
	require.NoError(t, err)
	require.Len(t, entries, RetentionCap)

	// The oldest 20 were dropped; the newest survive in order.
	assert.Equal(t, float64(20), entries[0].Snapshot.PageLoad.DOMContentLoaded)
	assert.Equal(t, float64(RetentionCap+19), entries[len(entries)-1].Snapshot.PageLoad.DOMContentLoaded)
}

func TestFileStoreRetentionWindow(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Record(ctx, testEntry("aging-test", now.Add(-31*24*time.Hour), 1)))
	require.NoError(t, store.Record(ctx, testEntry("aging-test", now.Add(-10*24*time.Hour), 2)))
	require.NoError(t, store.Record(ctx, testEntry("aging-test", now, 3)))

	entries, err := store.History(ctx, "aging-test")
	require.NoError(t, err)
	require.Len(t, entries, 2, "entries older than the window are pruned")
	assert.Equal(t, float64(2), entries[0].Snapshot.PageLoad.DOMContentLoaded)
}

func TestFileStoreTimestampsNonDecreasing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Record(ctx, testEntry("clock-skew", now, 1)))
	// A timestamp behind the stored head gets clamped, keeping
	// storage order monotonic.
	require.NoError(t, store.Record(ctx, testEntry("clock-skew", now.Add(-time.Minute), 2)))

	entries, err := store.History(ctx, "clock-skew")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[1].Timestamp.Before(entries[0].Timestamp))
}

func TestFileStoreSanitizesTestNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	name := "journeys/checkout: happy path"

	require.NoError(t, store.Record(ctx, testEntry(name, time.Now(), 1500)))

	entries, err := store.History(ctx, name)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, name, entries[0].TestName)
}
