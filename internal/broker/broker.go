// Package broker abstracts the asynchronous execution backend that hands
// job ids to worker processes. Delivery is at-least-once; nothing here
// prevents the same job id from being delivered twice, and revocation is
// best-effort only.
package broker

import "context"

// DefaultQueue is used when no queue name is configured anywhere.
const DefaultQueue = "toolfleet"

// Task is the envelope delivered to a worker: the backend's own task id
// plus the job id to execute.
type Task struct {
	ID    string `json:"task_id"`
	JobID string `json:"job_id"`
}

// Broker is the execution backend contract.
type Broker interface {
	// Submit enqueues a reference to the job id under the given queue
	// and returns the backend's task id.
	Submit(ctx context.Context, jobID, queue string) (string, error)

	// Consume blocks until a task is available on the queue or ctx is
	// done. Revoked tasks may still be delivered; callers check Revoked.
	Consume(ctx context.Context, queue string) (*Task, error)

	// Revoke asks the backend to abandon the task. Best-effort: the task
	// may already be running or finished.
	Revoke(ctx context.Context, taskID string) error

	// Revoked reports whether the task id has been revoked.
	Revoked(ctx context.Context, taskID string) (bool, error)
}
