// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package queue

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestRedisQueue(t *testing.T, prefix string) (*RedisQueue, *redis.Client) {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}

	key := prefix + strconv.FormatInt(time.Now().UnixNano(), 10)
	q, err := NewRedisQueue(context.Background(), client, key)
	if err != nil {
		t.Fatalf("NewRedisQueue failed: %v", err)
	}
	t.Cleanup(func() {
		client.Del(context.Background(), key)
		client.Close()
	})
	return q, client
}

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	q, _ := newTestRedisQueue(t, "test:queue:")
	ctx := context.Background()

	job := Job{
		ID:        "job-1",
		Type:      "process_paper",
		Payload:   []byte(`{"paper_id":7}`),
		CreatedAt: time.Now(),
	}
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	dequeueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dequeued, err := q.Dequeue(dequeueCtx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if dequeued.Type != job.Type || dequeued.ID != job.ID {
		t.Errorf("Expected %s/%s, got %s/%s", job.Type, job.ID, dequeued.Type, dequeued.ID)
	}
	if string(dequeued.Payload) != `{"paper_id":7}` {
		t.Errorf("Unexpected payload %s", dequeued.Payload)
	}
}

func TestRedisQueue_FIFO(t *testing.T) {
	q, _ := newTestRedisQueue(t, "test:queue:fifo:")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(ctx, Job{ID: strconv.Itoa(i), Type: "process_paper"}); err != nil {
			t.Fatalf("Enqueue failed for job %d: %v", i, err)
		}
	}
	if n, err := q.Len(ctx); err != nil || n != 5 {
		t.Errorf("Expected 5 pending jobs, got %d (%v)", n, err)
	}

	for i := 0; i < 5; i++ {
		job, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue failed for job %d: %v", i, err)
		}
		if job.ID != strconv.Itoa(i) {
			t.Errorf("Expected job %d, got %s", i, job.ID)
		}
	}
}

func TestRedisQueue_ContextCancellation(t *testing.T) {
	q, _ := newTestRedisQueue(t, "test:queue:cancel:")

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(cancelCtx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
