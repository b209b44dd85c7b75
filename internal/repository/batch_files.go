package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
)

type BatchFileRepository interface {
	Insert(ctx context.Context, f *entity.BatchFile) error
	ListByBatch(ctx context.Context, batchID int) ([]*entity.BatchFile, error)
	CountByStatus(ctx context.Context, batchID int) (map[constants.FileStatus]int, error)
}

type batchFileRepo struct {
	conn
	logger *slog.Logger
}

func NewBatchFileRepository(drv dialect.Driver, logger *slog.Logger) BatchFileRepository {
	return &batchFileRepo{
		conn:   newConn(drv),
		logger: logger,
	}
}

func (r *batchFileRepo) Insert(ctx context.Context, f *entity.BatchFile) error {
	now := time.Now().UTC()
	processedAt := f.ProcessedAt
	if processedAt == nil && f.Status != constants.FileStatusPending {
		processedAt = &now
	}
	ins := r.sql().Insert(tableBatchFiles).
		Columns("batch_id", "filename", "file_type", "status", "error_message", "rfc_extracted", "created_at", "processed_at").
		Values(f.BatchID, f.Filename, string(f.FileType), string(f.Status), f.ErrorMessage, f.RFCExtracted, now, processedAt)
	id, err := r.insertID(ctx, ins)
	if err != nil {
		r.logger.Error("failed to insert batch file", "batch_id", f.BatchID, "filename", f.Filename, "error", err)
		return err
	}
	f.ID = id
	f.CreatedAt = now
	f.ProcessedAt = processedAt
	return nil
}

func (r *batchFileRepo) ListByBatch(ctx context.Context, batchID int) ([]*entity.BatchFile, error) {
	q := r.sql().Select("id", "batch_id", "filename", "file_type", "status", "error_message", "rfc_extracted", "created_at", "processed_at").
		From(entsql.Table(tableBatchFiles)).
		Where(entsql.EQ("batch_id", batchID)).
		OrderBy("id")
	var out []*entity.BatchFile
	err := r.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			f                entity.BatchFile
			fileType, status string
			errMsg, rfc      sql.NullString
			processedAt      sql.NullTime
		)
		if err := rows.Scan(&f.ID, &f.BatchID, &f.Filename, &fileType, &status, &errMsg, &rfc, &f.CreatedAt, &processedAt); err != nil {
			return err
		}
		f.FileType = constants.FileType(fileType)
		f.Status = constants.FileStatus(status)
		f.ErrorMessage = nullString(errMsg)
		f.RFCExtracted = nullString(rfc)
		f.ProcessedAt = nullTime(processedAt)
		out = append(out, &f)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list batch files", "batch_id", batchID, "error", err)
		return nil, err
	}
	return out, nil
}

func (r *batchFileRepo) CountByStatus(ctx context.Context, batchID int) (map[constants.FileStatus]int, error) {
	q := r.sql().Select("status", entsql.Count("*")).
		From(entsql.Table(tableBatchFiles)).
		Where(entsql.EQ("batch_id", batchID)).
		GroupBy("status")
	out := make(map[constants.FileStatus]int)
	err := r.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return err
		}
		out[constants.FileStatus(status)] = n
		return nil
	})
	if err != nil {
		r.logger.Error("failed to count batch files", "batch_id", batchID, "error", err)
		return nil, err
	}
	return out, nil
}
