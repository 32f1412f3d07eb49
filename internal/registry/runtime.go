package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/toolfleet/toolfleet/internal/job"
	"github.com/toolfleet/toolfleet/internal/store"
)

// Runtime is handed to handlers for progress reporting and cooperative
// cancellation. Handlers own the idempotency of their side effects; the
// runtime only touches the job record.
type Runtime struct {
	store  store.Store
	logger *slog.Logger
}

func NewRuntime(st store.Store, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{store: st, logger: logger}
}

// Store exposes the job store for handlers that manage their own
// read-modify-write cycles.
func (rt *Runtime) Store() store.Store {
	return rt.store
}

// Progress appends a log entry, updates the progress value on the given
// record and persists it. progress < 0 leaves the current value alone.
func (rt *Runtime) Progress(ctx context.Context, j *job.Job, progress int, message string) error {
	if progress >= 0 {
		if progress > 100 {
			progress = 100
		}
		j.Progress = progress
	}
	if message != "" {
		j.AppendLog(message)
	}
	if err := rt.store.Save(ctx, j); err != nil {
		return fmt.Errorf("save progress for job %s: %w", j.ID, err)
	}
	return nil
}

// Cancelled re-reads the stored job and reports whether a cancellation
// was requested. Cancellation is cooperative: long-running handlers poll
// this between units of work and abort early when it reports true.
func (rt *Runtime) Cancelled(ctx context.Context, jobID string) (bool, error) {
	stored, err := rt.store.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	if stored == nil {
		// Record vanished under us; treat as cancelled so the handler
		// stops doing work nobody can observe.
		return true, nil
	}
	return stored.Status == job.StatusCancelling || stored.Status == job.StatusCancelled, nil
}
