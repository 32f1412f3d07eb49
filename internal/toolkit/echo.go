package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/toolfleet/toolfleet/internal/broker"
	"github.com/toolfleet/toolfleet/internal/job"
	"github.com/toolfleet/toolfleet/internal/registry"
)

// registerEcho is the echo toolkit's worker entrypoint. Echo exists for
// smoke tests and operator sanity checks.
func registerEcho(_ broker.Broker, register func(jobType string, h registry.Handler)) {
	register("echo.run", echoRun)
	register("echo.sleep", echoSleep)
}

// echoRun reflects the payload back as the result.
func echoRun(_ context.Context, _ *registry.Runtime, j *job.Job) (*job.Job, error) {
	if len(j.Payload) == 0 {
		j.Result = json.RawMessage(`{}`)
		return j, nil
	}
	j.Result = j.Payload
	return j, nil
}

type echoSleepPayload struct {
	Steps      int `json:"steps"`
	IntervalMS int `json:"interval_ms"`
}

// echoSleep sleeps in increments, reporting progress and checking for
// cancellation between steps. It exercises the whole cooperative
// cancellation path end to end.
func echoSleep(ctx context.Context, rt *registry.Runtime, j *job.Job) (*job.Job, error) {
	p := echoSleepPayload{Steps: 10, IntervalMS: 1000}
	if len(j.Payload) > 0 {
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return j, fmt.Errorf("invalid payload: %w", err)
		}
	}
	if p.Steps <= 0 {
		p.Steps = 1
	}
	if p.IntervalMS < 0 {
		p.IntervalMS = 0
	}
	interval := time.Duration(p.IntervalMS) * time.Millisecond

	for i := 1; i <= p.Steps; i++ {
		cancelled, err := rt.Cancelled(ctx, j.ID)
		if err != nil {
			return j, err
		}
		if cancelled {
			// The coordinator already settled the record; stop quietly.
			j.Status = job.StatusCancelled
			return j, nil
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return j, ctx.Err()
		}

		progress := i * 100 / p.Steps
		if err := rt.Progress(ctx, j, progress, fmt.Sprintf("slept %d of %d steps", i, p.Steps)); err != nil {
			return j, err
		}
	}

	j.Result = json.RawMessage(fmt.Sprintf(`{"slept_steps":%d}`, p.Steps))
	return j, nil
}
