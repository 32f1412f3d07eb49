// Package dispatch is the request-server side of job orchestration:
// enqueue, status queries, and the cancellation coordinator. It never
// executes handlers; that is the worker's job.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/toolfleet/toolfleet/internal/job"
	"github.com/toolfleet/toolfleet/internal/log"
	"github.com/toolfleet/toolfleet/internal/store"
)

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks github.com/toolfleet/toolfleet/internal/dispatch Backend

// Backend is the slice of the execution backend the dispatcher needs.
// broker.Broker satisfies it.
type Backend interface {
	Submit(ctx context.Context, jobID, queue string) (string, error)
	Revoke(ctx context.Context, taskID string) error
}

// ResolveQueue returns the first non-empty name from an ordered list of
// configuration sources. Empty means the backend's default queue. Callers
// evaluate this once at startup, not per enqueue.
func ResolveQueue(sources ...string) string {
	for _, s := range sources {
		if s != "" {
			return s
		}
	}
	return ""
}

// Dispatcher creates job records and hands them to the execution backend.
type Dispatcher struct {
	store   store.Store
	backend Backend
	queue   string
	logger  *slog.Logger
}

func New(st store.Store, backend Backend, queue string) *Dispatcher {
	return &Dispatcher{
		store:   st,
		backend: backend,
		queue:   queue,
		logger:  log.WithComponent("dispatch"),
	}
}

// Enqueue creates the job record, submits its id to the backend and
// attaches the backend's task id with a second save. The two phases are
// deliberate: once Create succeeds the record is visible to status
// queries even if submission or the attach fails, so a non-nil error may
// accompany a non-nil job. The returned job is the record as it stood
// after creation; callers needing the broker task id re-fetch.
func (d *Dispatcher) Enqueue(ctx context.Context, req store.CreateRequest) (*job.Job, error) {
	j, err := d.store.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	taskID, err := d.backend.Submit(ctx, j.ID, d.queue)
	if err != nil {
		d.logger.Error("broker submission failed; job remains queued", "job_id", j.ID, "error", err)
		return j, fmt.Errorf("submit job %s: %w", j.ID, err)
	}

	stored, err := d.store.Get(ctx, j.ID)
	if err != nil {
		return j, fmt.Errorf("reload job %s: %w", j.ID, err)
	}
	if stored == nil {
		// Nothing to attach to; the submission stands.
		d.logger.Warn("job record missing during task id attach", "job_id", j.ID)
		return j, nil
	}
	stored.BrokerTaskID = taskID
	if err := d.store.Save(ctx, stored); err != nil {
		return j, fmt.Errorf("attach broker task id to job %s: %w", j.ID, err)
	}

	d.logger.Info("job enqueued", "job_id", j.ID, "type", j.Type, "queue", d.queue, "broker_task_id", taskID)
	return j, nil
}

// GetStatus returns the stored record, or (nil, nil) when the id is
// unknown.
func (d *Dispatcher) GetStatus(ctx context.Context, id string) (*job.Job, error) {
	return d.store.Get(ctx, id)
}

// List returns the filtered page and the total count of the filtered set.
func (d *Dispatcher) List(ctx context.Context, f store.Filter, limit, offset int) ([]*job.Job, int, error) {
	return d.store.List(ctx, f, limit, offset)
}

// Cancel transitions a non-terminal job through cancelling to cancelled
// and asks the backend to abandon the underlying task. Cancellation is
// cooperative: a running handler keeps running until it polls the stored
// status. Terminal jobs are a no-op; a missing id returns (nil, nil).
func (d *Dispatcher) Cancel(ctx context.Context, id string) (*job.Job, error) {
	j, err := d.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, nil
	}
	if j.Status.Terminal() {
		return j, nil
	}

	j.MarkCancelling("Cancellation requested")
	if err := d.store.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("save cancelling job %s: %w", id, err)
	}

	if j.BrokerTaskID != "" {
		if err := d.backend.Revoke(ctx, j.BrokerTaskID); err != nil {
			// Best-effort: the task may already be running or done.
			d.logger.Warn("broker revoke failed", "job_id", id, "broker_task_id", j.BrokerTaskID, "error", err)
		}
	}

	j.MarkCancelled("Job cancelled")
	if err := d.store.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("save cancelled job %s: %w", id, err)
	}

	d.logger.Info("job cancelled", "job_id", id)
	return j, nil
}
