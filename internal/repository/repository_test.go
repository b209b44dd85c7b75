package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/common"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := discardLogger()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	drv, err := OpenSQLite(InMemoryDSN(name), logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = drv.Close() })
	if err := Migrate(context.Background(), drv, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(drv, logger)
}

func periodDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(constants.PeriodDateLayout, s)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}

func createBatch(t *testing.T, s *Store) *entity.Batch {
	t.Helper()
	b, err := s.Batches.Create(context.Background(), &entity.Batch{
		PeriodType:   constants.PeriodBiweekly,
		PeriodID:     "2024-Q01",
		FechaPeriodo: periodDate(t, "2024-01-15"),
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return b
}

func createEmployee(t *testing.T, s *Store, rfc string) *entity.Employee {
	t.Helper()
	ctx := context.Background()
	if _, err := s.Employees.CreateIfAbsent(ctx, &entity.Employee{RFC: rfc, Name: "Empleado " + rfc, PasswordHash: "x"}); err != nil {
		t.Fatalf("create employee: %v", err)
	}
	e, err := s.Employees.GetByRFC(ctx, rfc)
	if err != nil {
		t.Fatalf("get employee: %v", err)
	}
	return e
}

func TestBatchLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := createBatch(t, s)
	if b.Status != constants.BatchStatusCreated {
		t.Fatalf("expected CREATED, got %s", b.Status)
	}
	if b.PeriodDate() != "2024-01-15" {
		t.Fatalf("unexpected period date %q", b.PeriodDate())
	}

	if err := s.Batches.AttachArchive(ctx, b.ID, "lote.zip", "/uploads/lote.zip"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	claimed, err := s.Batches.ClaimUploaded(ctx, 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != b.ID {
		t.Fatalf("expected to claim batch %d, got %+v", b.ID, claimed)
	}
	again, err := s.Batches.ClaimUploaded(ctx, 10)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("batch claimed twice")
	}

	counters := entity.BatchCounters{Total: 3, Processed: 3, Success: 2, Errors: 1}
	if err := s.Batches.Complete(ctx, b.ID, constants.BatchStatusPartialSuccess, counters); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := s.Batches.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != constants.BatchStatusPartialSuccess || got.SuccessFiles != 2 || got.ErrorFiles != 1 || got.TotalFiles != 3 {
		t.Fatalf("unexpected batch after complete: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatalf("completed_at not set")
	}
	if got.ZipFilename == nil || *got.ZipFilename != "lote.zip" {
		t.Fatalf("zip filename not stored")
	}
}

func TestBatchNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Batches.GetByID(context.Background(), 999)
	if !common.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.Batches.MarkFailed(context.Background(), 999); !common.IsNotFound(err) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestRequeueStale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b := createBatch(t, s)
	if err := s.Batches.MarkProcessing(ctx, b.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	n, err := s.Batches.RequeueStale(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("fresh batch requeued: n=%d err=%v", n, err)
	}
	n, err = s.Batches.RequeueStale(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("expected one requeue, n=%d err=%v", n, err)
	}
	got, _ := s.Batches.GetByID(ctx, b.ID)
	if got.Status != constants.BatchStatusUploaded {
		t.Fatalf("expected UPLOADED, got %s", got.Status)
	}
}

func TestEmployeeCreateIfAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := &entity.Employee{RFC: "PEGJ800101AB1", Name: "Juan Perez", PasswordHash: "hash"}

	created, err := s.Employees.CreateIfAbsent(ctx, e)
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}
	created, err = s.Employees.CreateIfAbsent(ctx, &entity.Employee{RFC: e.RFC, Name: "Other", PasswordHash: "hash"})
	if err != nil || created {
		t.Fatalf("second create should be ignored: created=%v err=%v", created, err)
	}

	got, err := s.Employees.GetByRFC(ctx, e.RFC)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Juan Perez" || !got.Active {
		t.Fatalf("unexpected employee %+v", got)
	}
	if err := s.Employees.Reactivate(ctx, got.ID); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
}

func TestReceiptInsertAndFillSlot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b := createBatch(t, s)
	e := createEmployee(t, s, "PEGJ800101AB1")

	pdf := "recibo.pdf"
	rec := &entity.PayrollReceipt{
		EmployeeID:   e.ID,
		RFC:          e.RFC,
		FechaPeriodo: b.FechaPeriodo,
		RFCFecha:     entity.ReceiptKey(e.RFC, b.FechaPeriodo),
		PeriodType:   b.PeriodType,
		PDF1Filename: &pdf,
		BatchID:      &b.ID,
	}
	inserted, err := s.Receipts.InsertIfAbsent(ctx, rec)
	if err != nil || !inserted {
		t.Fatalf("insert: inserted=%v err=%v", inserted, err)
	}
	inserted, err = s.Receipts.InsertIfAbsent(ctx, rec)
	if err != nil || inserted {
		t.Fatalf("duplicate insert should be ignored: inserted=%v err=%v", inserted, err)
	}

	filled, err := s.Receipts.FillSlot(ctx, rec.RFCFecha, entity.SlotXML, "cfdi.xml")
	if err != nil || !filled {
		t.Fatalf("fill xml: filled=%v err=%v", filled, err)
	}
	filled, err = s.Receipts.FillSlot(ctx, rec.RFCFecha, entity.SlotPDF1, "otro.pdf")
	if err != nil || filled {
		t.Fatalf("occupied slot overwritten: filled=%v err=%v", filled, err)
	}

	got, err := s.Receipts.GetByKey(ctx, "PEGJ800101AB1_2024-01-15", true)
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if got.SlotValue(entity.SlotPDF1) != "recibo.pdf" || got.SlotValue(entity.SlotXML) != "cfdi.xml" || got.SlotValue(entity.SlotPDF2) != "" {
		t.Fatalf("unexpected slots %+v", got)
	}

	list, err := s.Receipts.ListByBatch(ctx, b.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("list by batch: %d %v", len(list), err)
	}
}

func TestInTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Employees.CreateIfAbsent(ctx, &entity.Employee{RFC: "XAXX010101000", Name: "X", PasswordHash: "h"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.Employees.GetByRFC(ctx, "XAXX010101000"); !common.IsNotFound(err) {
		t.Fatalf("employee survived rollback: %v", err)
	}
}

func TestBatchFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b := createBatch(t, s)

	msg := "RFC not found in document"
	rfc := "PEGJ800101AB1"
	files := []*entity.BatchFile{
		{BatchID: b.ID, Filename: "a.pdf", FileType: constants.FileTypePDF, Status: constants.FileStatusSuccess, RFCExtracted: &rfc},
		{BatchID: b.ID, Filename: "a.xml", FileType: constants.FileTypeXML, Status: constants.FileStatusSuccess, RFCExtracted: &rfc},
		{BatchID: b.ID, Filename: "b.pdf", FileType: constants.FileTypePDF, Status: constants.FileStatusError, ErrorMessage: &msg},
	}
	for _, f := range files {
		if err := s.BatchFiles.Insert(ctx, f); err != nil {
			t.Fatalf("insert %s: %v", f.Filename, err)
		}
		if f.ID == 0 || f.ProcessedAt == nil {
			t.Fatalf("insert did not populate id/processed_at: %+v", f)
		}
	}

	got, err := s.BatchFiles.ListByBatch(ctx, b.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[2].ErrorMessage == nil || *got[2].ErrorMessage != msg {
		t.Fatalf("unexpected rows %+v", got)
	}

	counts, err := s.BatchFiles.CountByStatus(ctx, b.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[constants.FileStatusSuccess] != 2 || counts[constants.FileStatusError] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}
