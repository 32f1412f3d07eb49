package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolfleet/toolfleet/internal/job"
	"github.com/toolfleet/toolfleet/internal/store"
)

func newRuntimeWithStore(t *testing.T) (*Runtime, store.Store) {
	t.Helper()
	db, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st := store.NewSQLiteStore(db)
	return NewRuntime(st, nil), st
}

func TestRuntimeProgressPersists(t *testing.T) {
	t.Parallel()
	rt, st := newRuntimeWithStore(t)
	ctx := context.Background()

	j, err := st.Create(ctx, store.CreateRequest{Toolkit: "echo", Operation: "run"})
	require.NoError(t, err)

	require.NoError(t, rt.Progress(ctx, j, 50, "halfway"))

	stored, err := st.Get(ctx, j.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 50, stored.Progress)
	require.Len(t, stored.Logs, 1)
	assert.Equal(t, "halfway", stored.Logs[0].Message)

	// Negative progress leaves the value alone, values above 100 clamp.
	require.NoError(t, rt.Progress(ctx, j, -1, "still going"))
	require.NoError(t, rt.Progress(ctx, j, 150, ""))
	stored, err = st.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Progress)
}

func TestRuntimeCancelled(t *testing.T) {
	t.Parallel()
	rt, st := newRuntimeWithStore(t)
	ctx := context.Background()

	j, err := st.Create(ctx, store.CreateRequest{Toolkit: "echo", Operation: "run"})
	require.NoError(t, err)

	cancelled, err := rt.Cancelled(ctx, j.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	j.MarkCancelling("cancellation requested")
	require.NoError(t, st.Save(ctx, j))

	cancelled, err = rt.Cancelled(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	// A vanished record reads as cancelled.
	cancelled, err = rt.Cancelled(ctx, "no-such-id")
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestRuntimeCancelledAfterTerminal(t *testing.T) {
	t.Parallel()
	rt, st := newRuntimeWithStore(t)
	ctx := context.Background()

	j, err := st.Create(ctx, store.CreateRequest{Toolkit: "echo", Operation: "run"})
	require.NoError(t, err)
	j.Status = job.StatusCancelled
	require.NoError(t, st.Save(ctx, j))

	cancelled, err := rt.Cancelled(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)
}
