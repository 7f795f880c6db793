package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/amazon-rank-tracker/internal/rank"
)

var ErrQueueClosed = errors.New("queue is closed")

// ScanJob is one queued tracking request: a batch of keyword targets to
// scan. Jobs are processed in submission order.
type ScanJob struct {
	ID        uuid.UUID
	Targets   []rank.Target
	CreatedAt time.Time
}

func NewScanJob(targets []rank.Target) *ScanJob {
	return &ScanJob{
		ID:        uuid.New(),
		Targets:   targets,
		CreatedAt: time.Now(),
	}
}

type Queue interface {
	Push(job *ScanJob) error
	Pop(ctx context.Context) (*ScanJob, error)
	Size() int
	Close() error
}

type InMemoryQueue struct {
	mu     sync.Mutex
	jobs   []*ScanJob
	wake   chan struct{}
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		wake: make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(job *ScanJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.jobs = append(q.jobs, job)
	q.wakeLocked()

	return nil
}

// Pop blocks until a job is available, the context ends, or the queue
// is closed and drained. Waiting never holds the lock, so a cancelled
// Pop leaves the queue usable.
func (q *InMemoryQueue) Pop(ctx context.Context) (*ScanJob, error) {
	for {
		q.mu.Lock()

		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return job, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}

		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}

// wakeLocked releases every blocked Pop by closing the current wake
// channel and arming a fresh one. Callers hold q.mu.
func (q *InMemoryQueue) wakeLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	q.wakeLocked()

	return nil
}
