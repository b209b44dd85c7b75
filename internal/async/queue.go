package async

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/nomina-receipts/internal/common"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has begun.
var ErrQueueClosed = errors.New("queue is shut down")

// Job asks a worker to process one batch archive.
type Job struct {
	BatchID     int
	ArchivePath string
	Attempt     int // 0 on first delivery
	TraceID     string
}

func (j Job) Validate() error {
	return common.NewValidator().
		Field("batch_id", j.BatchID, common.Positive).
		Field("archive_path", j.ArchivePath, common.Required).
		Error()
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
