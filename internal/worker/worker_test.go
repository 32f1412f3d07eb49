package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolfleet/toolfleet/internal/broker"
	"github.com/toolfleet/toolfleet/internal/job"
	"github.com/toolfleet/toolfleet/internal/registry"
)

func TestWorkerProcessesQueue(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	b := broker.NewInProc()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registry.New(nil, b, nil)
	reg.Register("echo.run", func(_ context.Context, _ *registry.Runtime, j *job.Job) (*job.Job, error) {
		return j, nil
	})

	j := createQueued(t, st, "echo", "run")
	_, err := b.Submit(ctx, j.ID, "")
	require.NoError(t, err)

	w := New(b, NewRunner(st, reg), "")
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool {
		stored, err := st.Get(context.Background(), j.ID)
		return err == nil && stored != nil && stored.Status == job.StatusSucceeded
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestWorkerSkipsRevokedTask(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	b := broker.NewInProc()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registry.New(nil, b, nil)
	reg.Register("echo.run", func(_ context.Context, _ *registry.Runtime, j *job.Job) (*job.Job, error) {
		return j, nil
	})

	revokedJob := createQueued(t, st, "echo", "run")
	taskID, err := b.Submit(ctx, revokedJob.ID, "")
	require.NoError(t, err)
	require.NoError(t, b.Revoke(ctx, taskID))

	liveJob := createQueued(t, st, "echo", "run")
	_, err = b.Submit(ctx, liveJob.ID, "")
	require.NoError(t, err)

	w := New(b, NewRunner(st, reg), "")
	go func() { _ = w.Start(ctx) }()

	// The live job follows the revoked one on the same queue, so its
	// completion proves the revoked delivery was skipped, not stuck.
	require.Eventually(t, func() bool {
		stored, err := st.Get(context.Background(), liveJob.ID)
		return err == nil && stored != nil && stored.Status == job.StatusSucceeded
	}, 5*time.Second, 10*time.Millisecond)

	stored, err := st.Get(context.Background(), revokedJob.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusQueued, stored.Status, "revoked job never ran")
}
