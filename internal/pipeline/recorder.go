package pipeline

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
	"github.com/joseph-ayodele/nomina-receipts/internal/identify"
)

// AuditStore appends batch_files rows.
type AuditStore interface {
	Insert(ctx context.Context, f *entity.BatchFile) error
}

// Recorder writes one audit row per document and keeps the batch counters.
type Recorder struct {
	store    AuditStore
	batchID  int
	counters entity.BatchCounters
}

func NewRecorder(store AuditStore, batchID int) *Recorder {
	return &Recorder{store: store, batchID: batchID}
}

// Record writes the terminal row for doc; cause nil means SUCCESS.
// A write failure is returned as-is and is fatal for the batch.
func (r *Recorder) Record(ctx context.Context, doc *entity.Document, cause error) error {
	row := &entity.BatchFile{
		BatchID:  r.batchID,
		Filename: doc.Name,
		FileType: doc.Type,
		Status:   constants.FileStatusSuccess,
	}
	if doc.RFC != "" {
		rfc := doc.RFC
		row.RFCExtracted = &rfc
	}
	if cause != nil {
		msg := Cause(cause)
		row.Status = constants.FileStatusError
		row.ErrorMessage = &msg
	}
	if err := r.store.Insert(ctx, row); err != nil {
		return err
	}

	r.counters.Total++
	r.counters.Processed++
	if cause != nil {
		r.counters.Errors++
	} else {
		r.counters.Success++
	}
	return nil
}

func (r *Recorder) Counters() entity.BatchCounters {
	return r.counters
}

// Cause renders an error as the message stored on the audit row.
func Cause(err error) string {
	var ie *identify.IdentityError
	if errors.As(err, &ie) {
		return ie.Cause()
	}
	return err.Error()
}
