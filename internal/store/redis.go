package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/toolfleet/toolfleet/internal/job"
)

const jobKeyPrefix = "tf:job:"

// RedisStore keeps one JSON document per job under tf:job:<id>. This is
// the shared store between the request server and the worker fleet.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from a Redis URL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreWithClient wraps an existing client, letting the store and
// broker share one connection pool.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context, req CreateRequest) (*job.Job, error) {
	j, err := newJob(req)
	if err != nil {
		return nil, err
	}
	if err := s.write(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *RedisStore) Save(ctx context.Context, j *job.Job) error {
	if j == nil || j.ID == "" {
		return fmt.Errorf("job id is empty")
	}
	j.UpdatedAt = time.Now().UTC()
	return s.write(ctx, j)
}

func (s *RedisStore) write(ctx context.Context, j *job.Job) error {
	doc, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job document: %w", err)
	}
	if err := s.client.Set(ctx, jobKey(j.ID), doc, 0).Err(); err != nil {
		return fmt.Errorf("write job %s: %w", j.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*job.Job, error) {
	if id == "" {
		return nil, fmt.Errorf("job id is empty")
	}

	doc, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", id, err)
	}

	var j job.Job
	if err := json.Unmarshal(doc, &j); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &j, nil
}

func (s *RedisStore) List(ctx context.Context, f Filter, limit, offset int) ([]*job.Job, int, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, jobKeyPrefix+"*", 512).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasPrefix(key, jobKeyPrefix) {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, 0, fmt.Errorf("enumerate jobs: %w", err)
	}
	if len(keys) == 0 {
		return []*job.Job{}, 0, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("fetch job documents: %w", err)
	}

	var docs [][]byte
	for _, v := range vals {
		// A key can expire between SCAN and MGET.
		switch doc := v.(type) {
		case string:
			docs = append(docs, []byte(doc))
		case []byte:
			docs = append(docs, doc)
		}
	}

	return selectJobs(docs, f, limit, offset)
}
