package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
)

type PayrollReceiptRepository interface {
	GetByID(ctx context.Context, id int) (*entity.PayrollReceipt, error)
	// GetByKey loads a receipt by rfc_fecha; forUpdate locks the row where the dialect supports it.
	GetByKey(ctx context.Context, key string, forUpdate bool) (*entity.PayrollReceipt, error)
	// InsertIfAbsent inserts the receipt unless rfc_fecha exists; inserted reports which happened.
	InsertIfAbsent(ctx context.Context, r *entity.PayrollReceipt) (inserted bool, err error)
	// FillSlot writes filename into slot only while the slot is still empty.
	FillSlot(ctx context.Context, key string, slot entity.Slot, filename string) (filled bool, err error)
	Touch(ctx context.Context, key string, batchID int) error
	ListByRFC(ctx context.Context, rfc string) ([]*entity.PayrollReceipt, error)
	ListByBatch(ctx context.Context, batchID int) ([]*entity.PayrollReceipt, error)
}

type payrollReceiptRepo struct {
	conn
	logger *slog.Logger
}

func NewPayrollReceiptRepository(drv dialect.Driver, logger *slog.Logger) PayrollReceiptRepository {
	return &payrollReceiptRepo{
		conn:   newConn(drv),
		logger: logger,
	}
}

var receiptColumns = []string{
	"id", "employee_id", "rfc", "fecha_periodo", "rfc_fecha", "period_type", "period_id",
	"pdf1_filename", "pdf2_filename", "xml_filename", "batch_id", "created_at", "updated_at",
}

func slotColumn(s entity.Slot) (string, error) {
	switch s {
	case entity.SlotPDF1:
		return "pdf1_filename", nil
	case entity.SlotPDF2:
		return "pdf2_filename", nil
	case entity.SlotXML:
		return "xml_filename", nil
	}
	return "", fmt.Errorf("unknown receipt slot %q", s)
}

func scanReceipt(rows *entsql.Rows) (*entity.PayrollReceipt, error) {
	var (
		rec              entity.PayrollReceipt
		periodType       string
		periodID         sql.NullString
		pdf1, pdf2, xmlf sql.NullString
		batchID          sql.NullInt64
	)
	if err := rows.Scan(
		&rec.ID, &rec.EmployeeID, &rec.RFC, &rec.FechaPeriodo, &rec.RFCFecha, &periodType, &periodID,
		&pdf1, &pdf2, &xmlf, &batchID, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.PeriodType = constants.PeriodType(periodType)
	rec.PeriodID = nullString(periodID)
	rec.PDF1Filename = nullString(pdf1)
	rec.PDF2Filename = nullString(pdf2)
	rec.XMLFilename = nullString(xmlf)
	rec.BatchID = nullInt(batchID)
	return &rec, nil
}

func (r *payrollReceiptRepo) getOne(ctx context.Context, q *entsql.Selector, key any) (*entity.PayrollReceipt, error) {
	var out *entity.PayrollReceipt
	err := r.queryOne(ctx, q, func(rows *entsql.Rows) error {
		var err error
		out, err = scanReceipt(rows)
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("payroll receipt", key)
		}
		r.logger.Error("failed to get payroll receipt", "key", key, "error", err)
		return nil, err
	}
	return out, nil
}

func (r *payrollReceiptRepo) GetByID(ctx context.Context, id int) (*entity.PayrollReceipt, error) {
	q := r.sql().Select(receiptColumns...).
		From(entsql.Table(tableReceipts)).
		Where(entsql.EQ("id", id))
	return r.getOne(ctx, q, id)
}

func (r *payrollReceiptRepo) GetByKey(ctx context.Context, key string, forUpdate bool) (*entity.PayrollReceipt, error) {
	q := r.sql().Select(receiptColumns...).
		From(entsql.Table(tableReceipts)).
		Where(entsql.EQ("rfc_fecha", key))
	if forUpdate && r.postgres() {
		q.ForUpdate()
	}
	return r.getOne(ctx, q, key)
}

func (r *payrollReceiptRepo) InsertIfAbsent(ctx context.Context, rec *entity.PayrollReceipt) (bool, error) {
	now := time.Now().UTC()
	ins := r.sql().Insert(tableReceipts).
		Columns("employee_id", "rfc", "fecha_periodo", "rfc_fecha", "period_type", "period_id",
			"pdf1_filename", "pdf2_filename", "xml_filename", "batch_id", "created_at", "updated_at").
		Values(rec.EmployeeID, rec.RFC, rec.FechaPeriodo, rec.RFCFecha, string(rec.PeriodType), rec.PeriodID,
			rec.PDF1Filename, rec.PDF2Filename, rec.XMLFilename, rec.BatchID, now, now).
		OnConflict(entsql.ConflictColumns("rfc_fecha"), entsql.DoNothing())
	n, err := r.exec(ctx, ins)
	if err != nil {
		r.logger.Error("failed to insert payroll receipt", "rfc_fecha", rec.RFCFecha, "error", err)
		return false, err
	}
	return n > 0, nil
}

func (r *payrollReceiptRepo) FillSlot(ctx context.Context, key string, slot entity.Slot, filename string) (bool, error) {
	col, err := slotColumn(slot)
	if err != nil {
		return false, err
	}
	u := r.sql().Update(tableReceipts).
		Set(col, filename).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(
			entsql.EQ("rfc_fecha", key),
			entsql.Or(entsql.IsNull(col), entsql.EQ(col, "")),
		))
	n, err := r.exec(ctx, u)
	if err != nil {
		r.logger.Error("failed to fill receipt slot", "rfc_fecha", key, "slot", slot, "error", err)
		return false, err
	}
	return n > 0, nil
}

// Touch records the batch that last changed the receipt.
func (r *payrollReceiptRepo) Touch(ctx context.Context, key string, batchID int) error {
	u := r.sql().Update(tableReceipts).
		Set("batch_id", batchID).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("rfc_fecha", key))
	if _, err := r.exec(ctx, u); err != nil {
		r.logger.Error("failed to touch payroll receipt", "rfc_fecha", key, "batch_id", batchID, "error", err)
		return err
	}
	return nil
}

func (r *payrollReceiptRepo) ListByRFC(ctx context.Context, rfc string) ([]*entity.PayrollReceipt, error) {
	q := r.sql().Select(receiptColumns...).
		From(entsql.Table(tableReceipts)).
		Where(entsql.EQ("rfc", rfc)).
		OrderBy(entsql.Desc("fecha_periodo"))
	return r.list(ctx, q)
}

func (r *payrollReceiptRepo) ListByBatch(ctx context.Context, batchID int) ([]*entity.PayrollReceipt, error) {
	q := r.sql().Select(receiptColumns...).
		From(entsql.Table(tableReceipts)).
		Where(entsql.EQ("batch_id", batchID)).
		OrderBy("rfc")
	return r.list(ctx, q)
}

func (r *payrollReceiptRepo) list(ctx context.Context, q *entsql.Selector) ([]*entity.PayrollReceipt, error) {
	var out []*entity.PayrollReceipt
	err := r.query(ctx, q, func(rows *entsql.Rows) error {
		rec, err := scanReceipt(rows)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list payroll receipts", "error", err)
		return nil, err
	}
	return out, nil
}
