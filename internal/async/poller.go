package async

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/nomina-receipts/internal/common"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
)

// ClaimStore is the part of the batch repository the poller drives.
type ClaimStore interface {
	ClaimUploaded(ctx context.Context, limit int) ([]*entity.Batch, error)
	RequeueStale(ctx context.Context, olderThan time.Time) (int, error)
	MarkFailed(ctx context.Context, id int) error
}

// Poller feeds the queue from batches in status UPLOADED.
type Poller struct {
	store      ClaimStore
	queue      Queue
	interval   time.Duration
	staleAfter time.Duration
	claimLimit int
	logger     *slog.Logger
}

func NewPoller(store ClaimStore, queue Queue, interval, staleAfter time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		store:      store,
		queue:      queue,
		interval:   interval,
		staleAfter: staleAfter,
		claimLimit: 16,
		logger:     logger,
	}
}

// Run recovers stale batches once, then claims and enqueues until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	if p.staleAfter > 0 {
		n, err := p.store.RequeueStale(ctx, time.Now().UTC().Add(-p.staleAfter))
		if err != nil {
			p.logger.Error("poller.requeue_stale.failed", "error", err)
		} else if n > 0 {
			p.logger.Warn("poller.requeue_stale", "batches", n, "stale_after", p.staleAfter)
		}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			if errors.Is(err, ErrQueueClosed) {
				return err
			}
			p.logger.Error("poller.poll.failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll claims one round of UPLOADED batches and returns how many were enqueued.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	batches, err := p.store.ClaimUploaded(ctx, p.claimLimit)
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for i, b := range batches {
		job := Job{BatchID: b.ID, TraceID: uuid.NewString()}
		if b.ZipURL != nil {
			job.ArchivePath = *b.ZipURL
		}
		err := p.queue.Enqueue(ctx, job)
		switch {
		case err == nil:
			enqueued++
		case errors.Is(err, common.ErrValidation):
			// A claimed batch without a usable archive would sit in PROCESSING until it goes stale.
			p.logger.Error("poller.enqueue.invalid", "batch_id", b.ID, "error", err)
			if merr := p.store.MarkFailed(ctx, b.ID); merr != nil {
				p.logger.Error("poller.mark_failed.failed", "batch_id", b.ID, "error", merr)
			}
		default:
			// Queue closed or ctx done: the rest of the round stays PROCESSING for stale recovery.
			p.logger.Warn("poller.enqueue.stopped", "batch_id", b.ID, "remaining", len(batches)-i, "error", err)
			return enqueued, err
		}
	}
	if enqueued > 0 {
		p.logger.Info("poller.claimed", "batches", enqueued)
	}
	return enqueued, nil
}
