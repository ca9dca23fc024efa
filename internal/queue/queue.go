// Package queue is the FIFO hand-off between the API and the workers: one
// Redis list of job ids, appended with RPUSH and consumed with LPOP.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultName is the list key shared by the API and every worker.
const DefaultName = "job_queue"

// Queue is safe for concurrent use; LPOP is the only mutual exclusion between
// workers.
type Queue struct {
	rdb  redis.Cmdable
	name string
}

func New(rdb redis.Cmdable, name string) *Queue {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	return &Queue{rdb: rdb, name: name}
}

// Name returns the list key.
func (q *Queue) Name() string { return q.name }

// Enqueue appends jobID to the tail.
func (q *Queue) Enqueue(ctx context.Context, jobID string) error {
	if jobID == "" {
		return errors.New("queue: empty job id")
	}
	if err := q.rdb.RPush(ctx, q.name, jobID).Err(); err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", jobID, err)
	}
	return nil
}

// Dequeue pops the head without blocking. ok is false when the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (jobID string, ok bool, err error) {
	jobID, err = q.rdb.LPop(ctx, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("queue: dequeue: %w", err)
	}
	return jobID, true, nil
}

// Len reports the number of waiting ids.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: len: %w", err)
	}
	return n, nil
}

// Peek returns up to n ids from the head without removing them.
func (q *Queue) Peek(ctx context.Context, n int64) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	ids, err := q.rdb.LRange(ctx, q.name, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: peek: %w", err)
	}
	return ids, nil
}
