package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/nomina-receipts/internal/pipeline"
)

// BatchProcessor runs one batch to completion.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, batchID int, archivePath string) (*pipeline.Result, error)
}

// ProcessorQueue is an in-process worker pool. Delivery is at-least-once: a job whose
// error is retryable is enqueued again after a backoff until maxAttempts is reached.
type ProcessorQueue struct {
	proc        BatchProcessor
	logger      *slog.Logger
	workers     int
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	retryable   func(error) bool

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// stop is closed first on shutdown and releases senders blocked on a full channel.
	stop     chan struct{}
	stopOnce sync.Once

	// sendMu is held shared while sending on ch and exclusively to close it.
	sendMu sync.RWMutex
	closed bool

	retryMu sync.Mutex
	retries map[*time.Timer]struct{} // nil once shutting down
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithProcessTimeout bounds a single attempt; zero leaves attempts unbounded.
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithMaxAttempts(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}
func WithRetryBackoff(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d >= 0 {
			q.backoff = d
		}
	}
}

// WithRetryPolicy replaces pipeline.IsRetryable.
func WithRetryPolicy(fn func(error) bool) Option {
	return func(q *ProcessorQueue) {
		if fn != nil {
			q.retryable = fn
		}
	}
}

func NewProcessorQueue(proc BatchProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:        proc,
		logger:      logger,
		workers:     2,
		maxAttempts: 3,
		backoff:     10 * time.Second,
		retryable:   pipeline.IsRetryable,
		ch:          make(chan Job, 64),
		stop:        make(chan struct{}),
		retries:     make(map[*time.Timer]struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if q.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
	}
	res, err := q.proc.ProcessBatch(ctx, job.BatchID, job.ArchivePath)
	cancel()

	log := q.logger.With("worker_id", workerID, "batch_id", job.BatchID, "attempt", job.Attempt+1, "trace_id", job.TraceID)
	if err == nil {
		log.Info("processed batch successfully", "status", string(res.Status), "total", res.Counters.Total)
		return
	}
	if !q.retryable(err) || job.Attempt+1 >= q.maxAttempts {
		log.Error("processing failed, giving up", "error", err)
		return
	}
	log.Warn("processing failed, retrying", "error", err, "backoff", q.backoff)
	job.Attempt++
	q.scheduleRetry(job)
}

// scheduleRetry re-enqueues job after the backoff without blocking the worker.
func (q *ProcessorQueue) scheduleRetry(job Job) {
	q.retryMu.Lock()
	defer q.retryMu.Unlock()
	if q.retries == nil {
		q.logger.Warn("dropping retry: queue is shutting down", "batch_id", job.BatchID)
		return
	}
	var t *time.Timer
	t = time.AfterFunc(q.backoff, func() {
		q.retryMu.Lock()
		delete(q.retries, t)
		q.retryMu.Unlock()
		if err := q.Enqueue(context.Background(), job); err != nil {
			q.logger.Warn("retry enqueue failed", "batch_id", job.BatchID, "error", err)
		}
	})
	q.retries[t] = struct{}{}
}

// Enqueue hands job to the workers. When the buffer is full it blocks until a worker
// frees a slot, ctx is done, or the queue shuts down.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if job.TraceID == "" {
		job.TraceID = uuid.NewString()
	}
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "batch_id", job.BatchID)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued batch for processing", "batch_id", job.BatchID, "attempt", job.Attempt+1)
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "batch_id", job.BatchID)
	select {
	case q.ch <- job:
		q.logger.Info("queued batch for processing", "batch_id", job.BatchID, "attempt", job.Attempt+1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stop:
		return ErrQueueClosed
	}
}

// Shutdown stops accepting jobs, cancels pending retries and waits for queued jobs to drain.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	first := false
	q.stopOnce.Do(func() {
		first = true
		close(q.stop)
	})
	if !first {
		return
	}

	q.retryMu.Lock()
	for t := range q.retries {
		t.Stop()
	}
	q.retries = nil
	q.retryMu.Unlock()

	q.sendMu.Lock()
	q.closed = true
	close(q.ch)
	q.sendMu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
