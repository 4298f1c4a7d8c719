package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("job queue full")
	ErrQueueClosed = errors.New("job queue closed")
)

type JobHandler interface {
	Handle(ctx context.Context, job *Job) error
}

// JobQueue is the in-process queue driver. Jobs live in a buffered channel
// and are lost on restart, use the redis driver where that matters.
type JobQueue struct {
	jobs    chan *Job
	handler JobHandler
	workers int

	running atomic.Int32
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

// NewJobQueue initializes a new job queue that holds at most size
// jobs waiting for a worker
func NewJobQueue(h JobHandler, workers, size int) *JobQueue {
	if workers <= 0 {
		workers = 1
	}

	if size < 0 {
		size = 0
	}

	zap.L().Debug("Initializing job queue", zap.Int("max_jobs", size), zap.Int("workers", workers))

	return &JobQueue{
		jobs:    make(chan *Job, size),
		handler: h,
		workers: workers,
	}
}

func (q *JobQueue) Start() {
	for range q.workers {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *JobQueue) worker() {
	defer q.wg.Done()

	for job := range q.jobs {
		// Errors are logged by the handler, a failed job is not retried
		_ = q.handler.Handle(context.Background(), job)
		q.running.Add(-1)
	}
}

func (q *JobQueue) Enqueue(ctx context.Context, name string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payload, %w", name, err)
	}

	job := &Job{ID: uuid.NewString(), Name: name, Payload: b}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return "", ErrQueueClosed
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Counted before the send so a fast worker can't take it below zero
	n := q.running.Add(1)

	select {
	case q.jobs <- job:
		zap.L().Debug("New job enqueued", zap.Int32("enqueued", n), zap.String("job", name), zap.String("job_id", job.ID))
		return job.ID, nil
	default:
		q.running.Add(-1)
		return "", ErrQueueFull
	}
}

// Pending returns how many jobs were enqueued but haven't finished yet
func (q *JobQueue) Pending() int {
	return int(q.running.Load())
}

// Shutdown stops accepting jobs and waits until the queued ones are drained
// or ctx is done.
func (q *JobQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
