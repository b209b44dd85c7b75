package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
	"github.com/joseph-ayodele/nomina-receipts/internal/repository"
)

const (
	SheetSummary  = "Summary"
	SheetFiles    = "Files"
	SheetReceipts = "Receipts"
)

// Service produces XLSX batch reports from the repositories.
type Service struct {
	batchesRepo  repository.BatchRepository
	filesRepo    repository.BatchFileRepository
	receiptsRepo repository.PayrollReceiptRepository
	logger       *slog.Logger
}

func NewService(batches repository.BatchRepository, files repository.BatchFileRepository, receipts repository.PayrollReceiptRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{batchesRepo: batches, filesRepo: files, receiptsRepo: receipts, logger: logger}
}

// ExportBatchXLSX returns a workbook with the batch summary, one row per audited file,
// and the receipts the batch touched.
func (s *Service) ExportBatchXLSX(ctx context.Context, batchID int) ([]byte, error) {
	start := time.Now()

	b, err := s.batchesRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	files, err := s.filesRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("query batch files: %w", err)
	}
	recs, err := s.receiptsRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetFiles, SheetReceipts} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	writeSummary(f, b)
	writeRows(f, SheetFiles,
		[]string{"Filename", "Type", "Status", "RFC", "Error", "Processed At"},
		len(files), func(i int) []any {
			bf := files[i]
			return []any{bf.Filename, string(bf.FileType), string(bf.Status), deref(bf.RFCExtracted), deref(bf.ErrorMessage), formatTime(bf.ProcessedAt)}
		})
	writeRows(f, SheetReceipts,
		[]string{"Key", "RFC", "Period", "PDF 1", "PDF 2", "XML"},
		len(recs), func(i int) []any {
			r := recs[i]
			return []any{r.RFCFecha, r.RFC, r.FechaPeriodo.Format("2006-01-02"), r.SlotValue(entity.SlotPDF1), r.SlotValue(entity.SlotPDF2), r.SlotValue(entity.SlotXML)}
		})

	_ = f.SetColWidth(SheetSummary, "A", "A", 18)
	_ = f.SetColWidth(SheetSummary, "B", "B", 28)
	_ = f.SetColWidth(SheetFiles, "A", "A", 40)
	_ = f.SetColWidth(SheetFiles, "E", "E", 48)
	_ = f.SetColWidth(SheetReceipts, "A", "B", 26)
	_ = f.SetColWidth(SheetReceipts, "D", "F", 36)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"batch_id", batchID,
		"files", len(files),
		"receipts", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, b *entity.Batch) {
	rows := [][2]any{
		{"Batch", b.ID},
		{"Status", string(b.Status)},
		{"Period Type", string(b.PeriodType)},
		{"Period ID", b.PeriodID},
		{"Period Date", b.PeriodDate()},
		{"Archive", deref(b.ZipFilename)},
		{"Total Files", b.TotalFiles},
		{"Processed", b.ProcessedFiles},
		{"Success", b.SuccessFiles},
		{"Errors", b.ErrorFiles},
		{"Completed At", formatTime(b.CompletedAt)},
	}
	for i, r := range rows {
		_ = f.SetCellValue(SheetSummary, fmt.Sprintf("A%d", i+1), r[0])
		_ = f.SetCellValue(SheetSummary, fmt.Sprintf("B%d", i+1), r[1])
	}
}

func writeRows(f *excelize.File, sheet string, headers []string, n int, row func(int) []any) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i := 0; i < n; i++ {
		for col, v := range row(i) {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return truncate(*s, 200)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
