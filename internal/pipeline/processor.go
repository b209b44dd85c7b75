package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/archive"
	"github.com/joseph-ayodele/nomina-receipts/internal/common"
	"github.com/joseph-ayodele/nomina-receipts/internal/employees"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
	"github.com/joseph-ayodele/nomina-receipts/internal/identify"
	"github.com/joseph-ayodele/nomina-receipts/internal/linker"
	"github.com/joseph-ayodele/nomina-receipts/internal/manifest"
	"github.com/joseph-ayodele/nomina-receipts/internal/reconcile"
	"github.com/joseph-ayodele/nomina-receipts/internal/repository"
)

// BatchStore is the batch bookkeeping the processor needs.
type BatchStore interface {
	GetByID(ctx context.Context, id int) (*entity.Batch, error)
	MarkProcessing(ctx context.Context, id int) error
	Complete(ctx context.Context, id int, status constants.BatchStatus, counters entity.BatchCounters) error
	MarkFailed(ctx context.Context, id int) error
}

// Deps are the collaborators a Processor drives; all fields are required.
type Deps struct {
	Batches    BatchStore
	Audit      AuditStore
	Tx         repository.TxRunner
	Identifier *identify.Identifier
	Employees  *employees.Resolver
	Reconciler *reconcile.Reconciler
}

// Options tune a Processor.
type Options struct {
	// WorkspaceRoot is where per-batch workspaces are created.
	WorkspaceRoot string
	// ArchiveMaxBytes caps the uncompressed archive size; zero uses the archive package default.
	ArchiveMaxBytes int64
}

// Result summarizes a completed batch.
type Result struct {
	BatchID  int
	Status   constants.BatchStatus
	Counters entity.BatchCounters
	Mode     manifest.Mode
	Links    linker.Stats
	Warnings []string
}

// Processor runs one batch end to end: unpack, resolve, identify, link, reconcile, record.
type Processor struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

func NewProcessor(deps Deps, opts Options, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{deps: deps, opts: opts, logger: logger}
}

// ProcessBatch processes the archive for batchID. Document and group failures end up in
// batch_files; a returned error means the batch itself failed and was marked FAILED.
func (p *Processor) ProcessBatch(ctx context.Context, batchID int, archivePath string) (*Result, error) {
	ctx = common.WithBatchID(ctx, batchID)
	log := common.LoggerWithContext(ctx, p.logger)
	start := time.Now()

	batch, err := p.deps.Batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, p.fail(ctx, log, &FatalStoreError{BatchID: batchID, Op: "load batch", Err: err})
	}
	if batch.Status != constants.BatchStatusProcessing {
		if err := p.deps.Batches.MarkProcessing(ctx, batchID); err != nil {
			return nil, p.fail(ctx, log, &FatalStoreError{BatchID: batchID, Op: "mark processing", Err: err})
		}
	}
	log.Info("pipeline.batch.start", "archive", archivePath, "period", batch.PeriodDate())

	ws, err := archive.Open(ctx, archivePath, p.opts.WorkspaceRoot, batchID, archive.Options{MaxBytes: p.opts.ArchiveMaxBytes}, log)
	if err != nil {
		return nil, p.fail(ctx, log, err)
	}
	defer ws.Close()

	res, err := manifest.Resolve(ws.Dir(), log)
	if err != nil {
		return nil, p.fail(ctx, log, &archive.ArchiveError{Path: archivePath, Reason: "cannot list workspace", Err: err})
	}
	mismatch := periodWarnings(batch, res.Manifest)
	for _, w := range mismatch {
		log.Warn("pipeline.manifest.period_mismatch", "detail", w)
	}
	warnings := append(append([]string(nil), res.Warnings...), mismatch...)
	docs := res.Documents
	log.Info("pipeline.documents.resolved", "mode", string(res.Mode), "documents", len(docs))

	if err := p.deps.Identifier.IdentifyAll(ctx, docs); err != nil {
		return nil, p.fail(ctx, log, err)
	}
	links := linker.Link(docs, log)
	for _, d := range docs {
		if d.Err == nil && d.RFC == "" {
			d.Err = &identify.IdentityError{File: d.Name, Err: identify.ErrUnresolvable}
		}
	}
	log.Info("pipeline.documents.linked",
		"orphans", links.Orphans,
		"by_employee_number", links.ByEmployeeNumber,
		"by_name", links.ByName,
		"unresolved", links.Unresolved)

	period := reconcile.Period{
		BatchID: batchID,
		Date:    batch.FechaPeriodo,
		Type:    batch.PeriodType,
		ID:      batch.PeriodID,
	}
	outcomes := make(map[*entity.Document]error, len(docs))
	for _, g := range reconcile.GroupByRFC(docs) {
		for _, o := range p.processGroup(ctx, log, period, g) {
			outcomes[o.Doc] = o.Err
		}
	}

	rec := NewRecorder(p.deps.Audit, batchID)
	for _, d := range docs {
		cause := d.Err
		if cause == nil {
			cause = outcomes[d]
		}
		if err := rec.Record(ctx, d, cause); err != nil {
			return nil, p.fail(ctx, log, &FatalStoreError{BatchID: batchID, Op: "record " + d.Name, Err: err})
		}
	}

	counters := rec.Counters()
	status := DeriveStatus(counters.Success, counters.Errors)
	if err := p.deps.Batches.Complete(ctx, batchID, status, counters); err != nil {
		return nil, p.fail(ctx, log, &FatalStoreError{BatchID: batchID, Op: "complete", Err: err})
	}

	log.Info("pipeline.batch.done",
		"status", string(status),
		"total", counters.Total,
		"success", counters.Success,
		"errors", counters.Errors,
		"duration_ms", time.Since(start).Milliseconds())
	return &Result{
		BatchID:  batchID,
		Status:   status,
		Counters: counters,
		Mode:     res.Mode,
		Links:    links,
		Warnings: warnings,
	}, nil
}

// processGroup provisions the employee and reconciles the group in one transaction.
// It always returns one outcome per document.
func (p *Processor) processGroup(ctx context.Context, log *slog.Logger, period reconcile.Period, g reconcile.Group) []reconcile.Outcome {
	var (
		outs     []reconcile.Outcome
		groupErr error
	)
	txErr := p.deps.Tx.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		emp, err := p.deps.Employees.Resolve(ctx, tx.Employees, g.RFC, g.DisplayName())
		if err != nil {
			groupErr = err
			return err
		}
		outs, groupErr = p.deps.Reconciler.Reconcile(ctx, tx.Receipts, emp, period, g)
		return groupErr
	})

	switch {
	case groupErr != nil && outs == nil:
		log.Warn("pipeline.group.failed", "rfc", g.RFC, "documents", len(g.Docs), "error", groupErr)
		outs = failGroup(g, func(*entity.Document) error { return groupErr })
	case txErr != nil && groupErr == nil:
		key := entity.ReceiptKey(g.RFC, period.Date)
		log.Error("pipeline.group.tx_failed", "rfc", g.RFC, "error", txErr)
		outs = failGroup(g, func(d *entity.Document) error {
			return &reconcile.ReconciliationError{Key: key, File: d.Name, Op: "commit", Err: txErr}
		})
	}
	return outs
}

func failGroup(g reconcile.Group, errFor func(*entity.Document) error) []reconcile.Outcome {
	out := make([]reconcile.Outcome, len(g.Docs))
	for i, d := range g.Docs {
		out[i] = reconcile.Outcome{Doc: d, Err: errFor(d)}
	}
	return out
}

// fail marks the batch FAILED even when ctx is already cancelled, then returns err.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, err error) error {
	batchID, _ := common.BatchIDFromContext(ctx)
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if merr := p.deps.Batches.MarkFailed(markCtx, batchID); merr != nil {
		log.Error("pipeline.batch.mark_failed_error", "error", merr)
		err = errors.Join(err, fmt.Errorf("mark failed: %w", merr))
	}
	log.Error("pipeline.batch.failed", "error", err, "retryable", IsRetryable(err))
	return err
}

// periodWarnings compares manifest period metadata with the batch; the batch wins.
func periodWarnings(b *entity.Batch, m *manifest.Manifest) []string {
	if m == nil {
		return nil
	}
	var out []string
	if m.FechaPeriodo != "" && !strings.HasPrefix(m.FechaPeriodo, b.PeriodDate()) {
		out = append(out, fmt.Sprintf("manifest fechaPeriodo %s differs from batch %s", m.FechaPeriodo, b.PeriodDate()))
	}
	if m.PeriodType != "" {
		if pt, ok := constants.CanonicalPeriodType(m.PeriodType); !ok || pt != b.PeriodType {
			out = append(out, fmt.Sprintf("manifest periodType %s differs from batch %s", m.PeriodType, b.PeriodType))
		}
	}
	if m.PeriodID != "" && m.PeriodID != b.PeriodID {
		out = append(out, fmt.Sprintf("manifest periodId %s differs from batch %s", m.PeriodID, b.PeriodID))
	}
	return out
}
