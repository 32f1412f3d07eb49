package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/toolfleet/toolfleet/internal/broker"
	"github.com/toolfleet/toolfleet/internal/log"
)

// consumeRetryDelay paces the loop after a broker failure.
const consumeRetryDelay = time.Second

// Worker consumes tasks from one queue and runs them serially: one job to
// completion before taking the next. Scale out by running more workers.
type Worker struct {
	broker broker.Broker
	runner *Runner
	queue  string
	logger *slog.Logger
}

func New(b broker.Broker, runner *Runner, queue string) *Worker {
	return &Worker{
		broker: b,
		runner: runner,
		queue:  queue,
		logger: log.WithComponent("worker"),
	}
}

// Start runs the consume loop until ctx is cancelled. Individual job
// failures are logged and never stop the loop.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker loop started", "queue", w.queue)
	defer w.logger.Info("worker loop stopped")

	for {
		task, err := w.broker.Consume(ctx, w.queue)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("consume failed", "error", err)
			select {
			case <-time.After(consumeRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		revoked, err := w.broker.Revoked(ctx, task.ID)
		if err != nil {
			// Assume not revoked; cancellation stays best-effort.
			w.logger.Warn("revocation check failed", "task_id", task.ID, "error", err)
		}
		if revoked {
			w.logger.Info("skipping revoked task", "task_id", task.ID, "job_id", task.JobID)
			continue
		}

		if err := w.runner.Run(ctx, task.JobID); err != nil {
			w.logger.Error("job execution failed", "job_id", task.JobID, "error", err)
		}
	}
}
