// Package queue carries per-report jobs from a reconcile run to the worker pool.
package queue

import (
	"context"
	"sync"

	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Job is one report waiting to be clustered and normalized.
type Job struct {
	RunID     string
	Report    model.Report
	Preferred string // preferred reference action name, may be empty

	// Results receives exactly one Result for this job. It must be buffered
	// so that workers never block on a caller that stopped listening.
	Results chan<- Result
}

// Result is the outcome of one Job.
type Result struct {
	RunID     string
	ReportID  string
	Timeline  model.ReportTimeline
	Collapsed int // multi-hit bursts folded while building the timeline
	Err       error
}

// Reply delivers r to the job's result channel without blocking.
func (j Job) Reply(r Result) bool { //nolint:gocritic // hugeParam: Job is passed by value through channels
	if j.Results == nil {
		return false
	}
	r.RunID = j.RunID
	r.ReportID = j.Report.ID
	select {
	case j.Results <- r:
		return true
	default:
		return false
	}
}

// Queue provides blocking submit and channel-based dequeue semantics.
type Queue interface {
	// Submit adds a job, waiting for room until ctx is done.
	Submit(ctx context.Context, j Job) error

	// Dequeue returns a channel that receives jobs as they become available.
	// The channel is closed when the queue is closed or ctx is done.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the number of queued jobs.
	Len(ctx context.Context) int

	// Close stops the queue. Jobs still waiting are answered with ErrClosed.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Submit adds a job, blocking while the queue is full.
func (q *InMemoryQueue) Submit(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam: Job is passed by value through channels
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.rejected("closed")
		return ErrClosed
	}

	select {
	case q.jobs <- j:
		q.accepted()
		return nil
	case <-q.done:
		q.rejected("closed")
		return ErrClosed
	case <-ctx.Done():
		q.rejected("context_cancelled")
		return ctx.Err()
	}
}

func (q *InMemoryQueue) accepted() {
	metrics.RecordQueueEnqueue()
	metrics.UpdateQueueSize(len(q.jobs))
}

func (q *InMemoryQueue) rejected(reason string) {
	metrics.RecordQueueEnqueueError()
	metrics.RecordErrorByComponent("queue", reason)
}

// Dequeue returns a channel that will receive jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			var j Job
			select {
			case j = <-q.jobs:
			case <-q.done:
				return
			case <-ctx.Done():
				return
			}
			metrics.UpdateQueueSize(len(q.jobs))

			select {
			case out <- j:
			case <-q.done:
				j.Reply(Result{Err: ErrClosed})
				return
			case <-ctx.Done():
				j.Reply(Result{Err: ctx.Err()})
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops the queue and answers every waiting job with ErrClosed.
func (q *InMemoryQueue) Close() error {
	q.doneOnce.Do(func() { close(q.done) })

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true

	for {
		select {
		case j := <-q.jobs:
			j.Reply(Result{Err: ErrClosed})
		default:
			metrics.UpdateQueueSize(0)
			return nil
		}
	}
}
