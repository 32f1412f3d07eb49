package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	queueKeyPrefix = "tf:queue:"
	revokedSetKey  = "tf:revoked"

	// revokedTTL bounds growth of the revoked set. A task still pending
	// after this long is an operational problem, not a bookkeeping one.
	revokedTTL = 24 * time.Hour
)

// RedisBroker delivers tasks through a Redis list per queue (LPUSH on
// submit, BRPOP on consume). Revocation marks the task id in a shared
// set that workers check at delivery time.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker creates a RedisBroker from a Redis URL.
func NewRedisBroker(redisURL string) (*RedisBroker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisBroker{client: redis.NewClient(opts)}, nil
}

// NewRedisBrokerWithClient wraps an existing client, letting the broker
// and store share one connection pool.
func NewRedisBrokerWithClient(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func queueKey(queue string) string {
	if queue == "" {
		queue = DefaultQueue
	}
	return queueKeyPrefix + queue
}

func (b *RedisBroker) Submit(ctx context.Context, jobID, queue string) (string, error) {
	if jobID == "" {
		return "", fmt.Errorf("job id is empty")
	}

	task := Task{ID: uuid.NewString(), JobID: jobID}
	envelope, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("encode task envelope: %w", err)
	}
	if err := b.client.LPush(ctx, queueKey(queue), envelope).Err(); err != nil {
		return "", fmt.Errorf("submit task to %s: %w", queueKey(queue), err)
	}
	return task.ID, nil
}

func (b *RedisBroker) Consume(ctx context.Context, queue string) (*Task, error) {
	// BRPOP with timeout 0 blocks until delivery; go-redis honours ctx
	// cancellation.
	res, err := b.client.BRPop(ctx, 0, queueKey(queue)).Result()
	if err != nil {
		return nil, fmt.Errorf("consume from %s: %w", queueKey(queue), err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply length %d", len(res))
	}

	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("decode task envelope: %w", err)
	}
	return &task, nil
}

func (b *RedisBroker) Revoke(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task id is empty")
	}

	pipe := b.client.TxPipeline()
	pipe.SAdd(ctx, revokedSetKey, taskID)
	pipe.Expire(ctx, revokedSetKey, revokedTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke task %s: %w", taskID, err)
	}
	return nil
}

func (b *RedisBroker) Revoked(ctx context.Context, taskID string) (bool, error) {
	revoked, err := b.client.SIsMember(ctx, revokedSetKey, taskID).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked %s: %w", taskID, err)
	}
	return revoked, nil
}
