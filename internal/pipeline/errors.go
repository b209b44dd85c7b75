package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/joseph-ayodele/nomina-receipts/internal/archive"
	"github.com/joseph-ayodele/nomina-receipts/internal/common"
)

// FatalStoreError means batch-level bookkeeping could not be read or written.
// The batch is marked FAILED and the error is returned for the job runner to retry.
type FatalStoreError struct {
	BatchID int
	Op      string
	Err     error
}

func (e *FatalStoreError) Error() string {
	return fmt.Sprintf("batch %d: %s: %v", e.BatchID, e.Op, e.Err)
}

func (e *FatalStoreError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether re-running the job could succeed.
// A broken archive or an unknown batch will fail the same way every time.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ae *archive.ArchiveError
	switch {
	case errors.As(err, &ae):
		return false
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrValidation):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}
