// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paper-reader/internal/logger"
)

// DefaultKey is the Redis list used when none is configured.
const DefaultKey = "jobs:papers"

// RedisQueue implements Queue using Redis Lists.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a new Redis-backed queue on the list at key.
func NewRedisQueue(ctx context.Context, client *redis.Client, key string) (*RedisQueue, error) {
	if key == "" {
		key = DefaultKey
	}

	logger.Printf("NewRedisQueue: key=%s", key)

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Errorf("NewRedisQueue: failed to ping Redis: %v", err)
		return nil, err
	}

	return &RedisQueue{
		client: client,
		key:    key,
	}, nil
}

// Enqueue adds a job to the queue using RPUSH.
func (r *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Enqueue: failed to marshal job: %v", err)
		return err
	}

	if err := r.client.RPush(ctx, r.key, data).Err(); err != nil {
		logger.Errorf("Enqueue: failed to push to Redis: %v", err)
		return err
	}

	logger.Debugf("Enqueue: key=%s type=%s id=%s payloadSize=%d", r.key, job.Type, job.ID, len(data))
	return nil
}

// Dequeue blocks until a job is available using BLPOP, then returns it.
func (r *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	type result struct {
		val []string
		err error
	}
	resultChan := make(chan result, 1)

	go func() {
		val, err := r.client.BLPop(ctx, 0, r.key).Result()
		resultChan <- result{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case res := <-resultChan:
		if res.err != nil {
			if errors.Is(res.err, redis.Nil) || ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			if errors.Is(res.err, redis.ErrClosed) {
				return Job{}, ErrClosed
			}
			logger.Errorf("Dequeue: failed to pop from Redis: %v", res.err)
			return Job{}, res.err
		}

		if len(res.val) < 2 {
			return Job{}, fmt.Errorf("invalid BLPOP result: expected 2 elements, got %d", len(res.val))
		}

		var job Job
		if err := json.Unmarshal([]byte(res.val[1]), &job); err != nil {
			logger.Errorf("Dequeue: failed to unmarshal job: %v", err)
			return Job{}, err
		}

		logger.Debugf("Dequeue: type=%s id=%s createdAt=%s", job.Type, job.ID, job.CreatedAt.Format(time.RFC3339))
		return job, nil
	}
}

// Len reports the number of pending jobs.
func (r *RedisQueue) Len(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.key).Result()
}
