// Package worker runs per-report jobs from the queue through a Processor.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/bosstimeline/internal/adapters/mq/queue"
	"github.com/okian/bosstimeline/pkg/logger"
	"github.com/okian/bosstimeline/pkg/metrics"
)

const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Processor turns one report job into its normalized timeline.
type Processor interface {
	Process(ctx context.Context, j queue.Job) (queue.Result, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	limiter   *rate.Limiter
	name      string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, p Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: p,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.With(logger.String("worker", w.name))
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.processJob(ctx, j)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// processJob handles a single job and always replies to it.
func (w *InMemoryWorker) processJob(ctx context.Context, j queue.Job) { //nolint:gocritic // hugeParam: Job is passed by value through channels
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if w.limiter != nil {
		waitStart := time.Now()
		if err := w.limiter.Wait(ctx); err != nil {
			metrics.RecordErrorByComponent("worker", "rate_limit")
			j.Reply(queue.Result{Err: fmt.Errorf("rate limit wait for report %s: %w", j.Report.ID, err)})
			return
		}
		metrics.RecordRateLimitWait(float64(time.Since(waitStart).Milliseconds()))
	}

	res, err := w.processor.Process(ctx, j)
	if err != nil {
		metrics.RecordReportFailed()
		metrics.RecordErrorByComponent("worker", "process")
		w.logger.Warn(ctx, "report processing failed",
			logger.String("run", j.RunID),
			logger.String("report", j.Report.ID),
			logger.Error(err),
		)
		j.Reply(queue.Result{Err: fmt.Errorf("process report %s: %w", j.Report.ID, err)})
		return
	}

	metrics.RecordReportProcessed()
	w.logger.Debug(ctx, "report processed",
		logger.String("report", j.Report.ID),
		logger.Int("occurrences", len(res.Timeline.Occurrences)),
		logger.Duration("took", time.Since(start)),
	)
	if !j.Reply(res) {
		w.logger.Warn(ctx, "result dropped", logger.String("report", j.Report.ID))
	}
}

// Pool manages multiple workers sharing one queue and one rate limiter.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	running atomic.Int32

	shutdown chan struct{}
	stopOnce sync.Once

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive workerCount uses
// runtime.NumCPU. opts are applied to every worker, so a limiter passed
// with WithLimiter is shared by the pool.
func NewPool(workerCount int, q Queue, p Processor, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, p, wopts...)
	}

	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.running.Add(1)
		go func(w *InMemoryWorker) {
			defer p.running.Add(-1)
			w.Run(ctx)
		}(w)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))

	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics(ctx)
		}
	}
}

func (p *Pool) updateMetrics(ctx context.Context) {
	metrics.UpdateWorkerActiveCount(int(p.running.Load()))
	if l, ok := p.queue.(interface{ Len(context.Context) int }); ok {
		l.Len(ctx)
	}
}

func (p *Pool) stopAll() {
	p.stopOnce.Do(func() { close(p.shutdown) })
	for _, w := range p.workers {
		w.stop()
	}
}

// Shutdown closes the queue, then stops every worker.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	p.stopAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(int(p.running.Load()))

	return nil
}
