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

type BatchRepository interface {
	Create(ctx context.Context, b *entity.Batch) (*entity.Batch, error)
	GetByID(ctx context.Context, id int) (*entity.Batch, error)
	List(ctx context.Context, limit int) ([]*entity.Batch, error)
	AttachArchive(ctx context.Context, id int, zipFilename, zipURL string) error
	MarkProcessing(ctx context.Context, id int) error
	ClaimUploaded(ctx context.Context, limit int) ([]*entity.Batch, error)
	RequeueStale(ctx context.Context, olderThan time.Time) (int, error)
	Complete(ctx context.Context, id int, status constants.BatchStatus, counters entity.BatchCounters) error
	MarkFailed(ctx context.Context, id int) error
}

type batchRepo struct {
	conn
	logger *slog.Logger
}

func NewBatchRepository(drv dialect.Driver, logger *slog.Logger) BatchRepository {
	return &batchRepo{
		conn:   newConn(drv),
		logger: logger,
	}
}

var batchColumns = []string{
	"id", "period_type", "period_id", "fecha_periodo", "zip_filename", "zip_url", "status",
	"total_files", "processed_files", "success_files", "error_files",
	"created_by", "created_at", "updated_at", "completed_at",
}

func scanBatch(rows *entsql.Rows) (*entity.Batch, error) {
	var (
		b                   entity.Batch
		periodType, status  string
		zipFilename, zipURL sql.NullString
		createdBy           sql.NullString
		completedAt         sql.NullTime
	)
	if err := rows.Scan(
		&b.ID, &periodType, &b.PeriodID, &b.FechaPeriodo, &zipFilename, &zipURL, &status,
		&b.TotalFiles, &b.ProcessedFiles, &b.SuccessFiles, &b.ErrorFiles,
		&createdBy, &b.CreatedAt, &b.UpdatedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	b.PeriodType = constants.PeriodType(periodType)
	b.Status = constants.BatchStatus(status)
	b.ZipFilename = nullString(zipFilename)
	b.ZipURL = nullString(zipURL)
	b.CreatedBy = nullString(createdBy)
	b.CompletedAt = nullTime(completedAt)
	return &b, nil
}

func (r *batchRepo) Create(ctx context.Context, b *entity.Batch) (*entity.Batch, error) {
	now := time.Now().UTC()
	status := b.Status
	if status == "" {
		status = constants.BatchStatusCreated
	}
	ins := r.sql().Insert(tableBatches).
		Columns("period_type", "period_id", "fecha_periodo", "zip_filename", "zip_url", "status",
			"total_files", "processed_files", "success_files", "error_files",
			"created_by", "created_at", "updated_at").
		Values(string(b.PeriodType), b.PeriodID, b.FechaPeriodo, b.ZipFilename, b.ZipURL, string(status),
			0, 0, 0, 0, b.CreatedBy, now, now)
	id, err := r.insertID(ctx, ins)
	if err != nil {
		r.logger.Error("failed to create batch", "period_id", b.PeriodID, "error", err)
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *batchRepo) GetByID(ctx context.Context, id int) (*entity.Batch, error) {
	q := r.sql().Select(batchColumns...).
		From(entsql.Table(tableBatches)).
		Where(entsql.EQ("id", id))
	var out *entity.Batch
	err := r.queryOne(ctx, q, func(rows *entsql.Rows) error {
		var err error
		out, err = scanBatch(rows)
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("batch", id)
		}
		r.logger.Error("failed to get batch", "batch_id", id, "error", err)
		return nil, err
	}
	return out, nil
}

func (r *batchRepo) List(ctx context.Context, limit int) ([]*entity.Batch, error) {
	q := r.sql().Select(batchColumns...).
		From(entsql.Table(tableBatches)).
		OrderBy(entsql.Desc("id"))
	if limit > 0 {
		q.Limit(limit)
	}
	return r.list(ctx, q)
}

func (r *batchRepo) list(ctx context.Context, q *entsql.Selector) ([]*entity.Batch, error) {
	var out []*entity.Batch
	err := r.query(ctx, q, func(rows *entsql.Rows) error {
		b, err := scanBatch(rows)
		if err != nil {
			return err
		}
		out = append(out, b)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list batches", "error", err)
		return nil, err
	}
	return out, nil
}

// AttachArchive records the uploaded archive and moves the batch to UPLOADED.
func (r *batchRepo) AttachArchive(ctx context.Context, id int, zipFilename, zipURL string) error {
	u := r.sql().Update(tableBatches).
		Set("zip_filename", zipFilename).
		Set("zip_url", zipURL).
		Set("status", string(constants.BatchStatusUploaded)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id))
	return r.updateOne(ctx, u, id, "attach archive")
}

func (r *batchRepo) MarkProcessing(ctx context.Context, id int) error {
	u := r.sql().Update(tableBatches).
		Set("status", string(constants.BatchStatusProcessing)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id))
	return r.updateOne(ctx, u, id, "mark processing")
}

// ClaimUploaded moves up to limit UPLOADED batches to PROCESSING and returns the ones this caller won.
func (r *batchRepo) ClaimUploaded(ctx context.Context, limit int) ([]*entity.Batch, error) {
	q := r.sql().Select(batchColumns...).
		From(entsql.Table(tableBatches)).
		Where(entsql.EQ("status", string(constants.BatchStatusUploaded))).
		OrderBy("id")
	if limit > 0 {
		q.Limit(limit)
	}
	candidates, err := r.list(ctx, q)
	if err != nil {
		return nil, err
	}

	var claimed []*entity.Batch
	for _, b := range candidates {
		now := time.Now().UTC()
		u := r.sql().Update(tableBatches).
			Set("status", string(constants.BatchStatusProcessing)).
			Set("updated_at", now).
			Where(entsql.And(
				entsql.EQ("id", b.ID),
				entsql.EQ("status", string(constants.BatchStatusUploaded)),
			))
		n, err := r.exec(ctx, u)
		if err != nil {
			r.logger.Error("failed to claim batch", "batch_id", b.ID, "error", err)
			return claimed, err
		}
		if n == 0 {
			continue
		}
		b.Status = constants.BatchStatusProcessing
		b.UpdatedAt = now
		claimed = append(claimed, b)
	}
	return claimed, nil
}

// RequeueStale returns PROCESSING batches untouched since olderThan to UPLOADED.
func (r *batchRepo) RequeueStale(ctx context.Context, olderThan time.Time) (int, error) {
	u := r.sql().Update(tableBatches).
		Set("status", string(constants.BatchStatusUploaded)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(
			entsql.EQ("status", string(constants.BatchStatusProcessing)),
			entsql.LT("updated_at", olderThan),
		))
	n, err := r.exec(ctx, u)
	if err != nil {
		r.logger.Error("failed to requeue stale batches", "error", err)
		return 0, err
	}
	return int(n), nil
}

// Complete writes the counters, the terminal status and completed_at in one statement.
func (r *batchRepo) Complete(ctx context.Context, id int, status constants.BatchStatus, c entity.BatchCounters) error {
	now := time.Now().UTC()
	u := r.sql().Update(tableBatches).
		Set("status", string(status)).
		Set("total_files", c.Total).
		Set("processed_files", c.Processed).
		Set("success_files", c.Success).
		Set("error_files", c.Errors).
		Set("completed_at", now).
		Set("updated_at", now).
		Where(entsql.EQ("id", id))
	return r.updateOne(ctx, u, id, "complete")
}

func (r *batchRepo) MarkFailed(ctx context.Context, id int) error {
	now := time.Now().UTC()
	u := r.sql().Update(tableBatches).
		Set("status", string(constants.BatchStatusFailed)).
		Set("completed_at", now).
		Set("updated_at", now).
		Where(entsql.EQ("id", id))
	return r.updateOne(ctx, u, id, "mark failed")
}

func (r *batchRepo) updateOne(ctx context.Context, u *entsql.UpdateBuilder, id int, op string) error {
	n, err := r.exec(ctx, u)
	if err != nil {
		r.logger.Error("batch update failed", "op", op, "batch_id", id, "error", err)
		return err
	}
	if n == 0 {
		return notFound("batch", id)
	}
	return nil
}
