package statsstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guidemcp/gateway/internal/taskmanager"
)

func TestStore_SnapshotAndHistory(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "stats.db")

	store, err := Open(ctx, dbPath)
	require.NoError(t, err)
	defer store.Close()

	stats := taskmanager.Statistics{
		Running:        []taskmanager.TaskStats{{Name: "openspec", Type: "regular", RunCount: 3}},
		Timers:         []taskmanager.TaskStats{{Name: "workflow", Type: "timer", RunCount: 7}},
		PeakCount:      2,
		TotalTimerRuns: 7,
	}

	first := time.Now().Add(-time.Hour)
	require.NoError(t, store.Snapshot(ctx, first, stats))

	stats.Running[0].RunCount = 5
	second := time.Now()
	require.NoError(t, store.Snapshot(ctx, second, stats))

	history, err := store.TaskRunHistory(ctx, "openspec")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 3, history[0].RunCount)
	require.Equal(t, 5, history[1].RunCount)
	require.True(t, history[0].TakenAt.Before(history[1].TakenAt))
}

func TestStore_TaskRunHistory_Empty(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer store.Close()

	history, err := store.TaskRunHistory(ctx, "nothing")
	require.NoError(t, err)
	require.Empty(t, history)
}
