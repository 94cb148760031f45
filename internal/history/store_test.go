package history_test

import (
	"testing"
	"time"

	"github.com/mealpix/mealpix-go/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryStore(t *testing.T) *history.Store {
	t.Helper()

	store, err := history.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenAppliesMigrations(t *testing.T) {
	store := openMemoryStore(t)

	versions, err := store.AppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, versions)
}

func TestAddAndRecent(t *testing.T) {
	store := openMemoryStore(t)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	records := []history.Record{
		{JobID: "imp_1", AssetPath: "/photos/a.jpg", Status: "ready", StartedAt: base, FinishedAt: base.Add(time.Minute)},
		{JobID: "imp_2", AssetPath: "/photos/b.jpg", Status: "failed", Error: "We couldn't read a recipe from that photo.", StartedAt: base.Add(2 * time.Minute), FinishedAt: base.Add(3 * time.Minute)},
		{JobID: "", AssetPath: "/photos/c.jpg", Status: "failed", Error: "We couldn't upload your photo. Check your connection and try again.", StartedAt: base.Add(4 * time.Minute), FinishedAt: base.Add(5 * time.Minute)},
	}
	for _, rec := range records {
		require.NoError(t, store.Add(rec))
	}

	recent, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// Most recently finished first.
	assert.Equal(t, "/photos/c.jpg", recent[0].AssetPath)
	assert.Equal(t, "imp_2", recent[1].JobID)
	assert.Equal(t, "imp_1", recent[2].JobID)

	assert.Empty(t, recent[0].JobID, "imports that never registered carry no job id")
	assert.Equal(t, "failed", recent[1].Status)
	assert.NotEmpty(t, recent[1].Error)
	assert.Empty(t, recent[2].Error)
	assert.True(t, recent[2].FinishedAt.Equal(base.Add(time.Minute)))
}

func TestRecentHonorsLimit(t *testing.T) {
	store := openMemoryStore(t)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Add(history.Record{
			JobID:      "imp_x",
			AssetPath:  "/photos/x.jpg",
			Status:     "ready",
			StartedAt:  base,
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := store.Recent(2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	recent, err = store.Recent(0)
	require.NoError(t, err)
	assert.Len(t, recent, 5, "non-positive limit falls back to the default")
}

func TestRecentEmptyStore(t *testing.T) {
	store := openMemoryStore(t)

	recent, err := store.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestReopenIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	store, err := history.Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Add(history.Record{
		JobID:      "imp_1",
		AssetPath:  "/photos/a.jpg",
		Status:     "ready",
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}))
	require.NoError(t, store.Close())

	// Reopening must not reapply migrations or lose data.
	store, err = history.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	versions, err := store.AppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, versions)

	recent, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "imp_1", recent[0].JobID)
}
