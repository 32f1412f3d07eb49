package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const inprocQueueDepth = 256

// InProc is a channel-backed broker for single-process deployments and
// tests, where the server and worker loops share one binary.
type InProc struct {
	mu      sync.Mutex
	queues  map[string]chan Task
	revoked map[string]bool
}

func NewInProc() *InProc {
	return &InProc{
		queues:  make(map[string]chan Task),
		revoked: make(map[string]bool),
	}
}

func (b *InProc) queue(name string) chan Task {
	if name == "" {
		name = DefaultQueue
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.queues[name]
	if !ok {
		ch = make(chan Task, inprocQueueDepth)
		b.queues[name] = ch
	}
	return ch
}

func (b *InProc) Submit(ctx context.Context, jobID, queue string) (string, error) {
	if jobID == "" {
		return "", fmt.Errorf("job id is empty")
	}

	task := Task{ID: uuid.NewString(), JobID: jobID}
	select {
	case b.queue(queue) <- task:
		return task.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", fmt.Errorf("queue %q is full", queue)
	}
}

func (b *InProc) Consume(ctx context.Context, queue string) (*Task, error) {
	select {
	case task := <-b.queue(queue):
		return &task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *InProc) Revoke(_ context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task id is empty")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[taskID] = true
	return nil
}

func (b *InProc) Revoked(_ context.Context, taskID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revoked[taskID], nil
}
