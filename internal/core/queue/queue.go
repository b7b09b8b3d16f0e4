package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingKey = "queue:jobs"

// Task is one unit of work handed from the submission path to a worker.
type Task struct {
	JobID string `json:"job_id"`
	URL   string `json:"url"`
}

// Queue is a Redis-backed work queue. Enqueue pushes onto a shared list;
// Dequeue atomically moves a task into a per-consumer working list, so each
// task is delivered to at most one worker at a time. Ack removes the task
// from the working list once the attempt cycle is over.
type Queue struct {
	rdb      *redis.Client
	consumer string
}

func New(rdb *redis.Client, consumer string) *Queue {
	return &Queue{rdb: rdb, consumer: consumer}
}

// workingKey names this consumer's in-flight list. The consumer name
// includes the pid, so a crashed worker's working list is never redelivered;
// its jobs stay in the database until the retention sweeper reclaims them.
func (q *Queue) workingKey() string {
	return pendingKey + ":working:" + q.consumer
}

// Enqueue adds a task to the shared queue.
func (q *Queue) Enqueue(ctx context.Context, t Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.rdb.LPush(ctx, pendingKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next task, moving it into this
// consumer's working list. Returns (nil, nil) when the wait times out.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	payload, err := q.rdb.BLMove(ctx, pendingKey, q.workingKey(), "RIGHT", "LEFT", timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue task: %w", err)
	}

	var t Task
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		// Drop the malformed payload so it does not wedge the working list.
		q.rdb.LRem(ctx, q.workingKey(), 1, payload)
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &t, nil
}

// Ack removes a delivered task from the working list.
func (q *Queue) Ack(ctx context.Context, t Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.rdb.LRem(ctx, q.workingKey(), 1, payload).Err(); err != nil {
		return fmt.Errorf("ack task: %w", err)
	}
	return nil
}

// Ping checks queue connectivity.
func (q *Queue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}
