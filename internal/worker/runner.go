// Package worker executes jobs delivered by the execution backend. The
// runner owns the terminal transition: exactly one of handler-not-found,
// handler-failure or the success finalizer fires per execution.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/toolfleet/toolfleet/internal/job"
	"github.com/toolfleet/toolfleet/internal/log"
	"github.com/toolfleet/toolfleet/internal/registry"
	"github.com/toolfleet/toolfleet/internal/store"
)

// Runner loads a job by id, resolves its handler and finalizes status.
type Runner struct {
	store    store.Store
	registry *registry.Registry
	runtime  *registry.Runtime
	logger   *slog.Logger
}

func NewRunner(st store.Store, reg *registry.Registry) *Runner {
	return &Runner{
		store:    st,
		registry: reg,
		runtime:  registry.NewRuntime(st, log.WithComponent("runtime")),
		logger:   log.WithComponent("worker"),
	}
}

// Run executes one job to a terminal state. Handler problems are recorded
// into the job record, never returned: nobody is waiting synchronously.
// Only store failures propagate.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	jobLogger := r.logger.With("job_id", jobID)

	j, err := r.store.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if j == nil {
		// No record to update, nothing else to do.
		jobLogger.Warn("job record not found")
		return nil
	}
	if j.Status.Terminal() {
		// Redelivery of a finished task; a terminal job is never revived.
		jobLogger.Info("job already terminal, skipping", "status", j.Status)
		return nil
	}

	j.Status = job.StatusRunning
	j.AppendLog("Job started")
	if err := r.store.Save(ctx, j); err != nil {
		return fmt.Errorf("save running job %s: %w", jobID, err)
	}

	h, ok := r.registry.Resolve(j.Type)
	if !ok {
		j.Status = job.StatusFailed
		j.Error = fmt.Sprintf("no handler registered for type %q", j.Type)
		j.AppendLog(j.Error)
		if err := r.store.Save(ctx, j); err != nil {
			return fmt.Errorf("save failed job %s: %w", jobID, err)
		}
		jobLogger.Error("no handler for job type", "type", j.Type)
		return nil
	}

	out, handlerErr := r.invoke(ctx, h, j)
	if handlerErr != nil {
		if out == nil {
			out = j
		}
		out.AppendLog(fmt.Sprintf("Job failed: %v", handlerErr))
		out.Error = handlerErr.Error()
		out.Status = job.StatusFailed
		if err := r.store.Save(ctx, out); err != nil {
			return fmt.Errorf("save failed job %s: %w", jobID, err)
		}
		jobLogger.Warn("handler failed", "type", j.Type, "error", handlerErr)
		return nil
	}

	if out == nil {
		out = j
	}
	// A handler's only terminal responsibility is result/error; force
	// success if it returned without settling status itself.
	if !out.Status.Terminal() {
		out.Status = job.StatusSucceeded
		out.Progress = 100
	}
	if err := r.store.Save(ctx, out); err != nil {
		return fmt.Errorf("save finished job %s: %w", jobID, err)
	}
	jobLogger.Info("job finished", "type", j.Type, "status", out.Status)
	return nil
}

// invoke runs the handler with panic containment. Handlers do arbitrary
// I/O against external systems; a panic there must not take the worker
// loop down.
func (r *Runner) invoke(ctx context.Context, h registry.Handler, j *job.Job) (out *job.Job, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h(ctx, r.runtime, j)
}
