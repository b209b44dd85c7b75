package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/common"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
	"github.com/joseph-ayodele/nomina-receipts/internal/repository"
)

var (
	ErrNoFreeSlot = errors.New("no empty slot left")
	ErrSlotTaken  = errors.New("slot filled by another file")
)

// ReconciliationError is a file-level failure copying or recording one document of a group.
type ReconciliationError struct {
	Key  string
	File string
	Op   string
	Err  error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Op, e.File, e.Key, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// Period is the batch metadata stamped on every receipt.
type Period struct {
	BatchID int
	Date    time.Time
	Type    constants.PeriodType
	ID      string
}

// Outcome is the terminal result of one document; Err is nil on success.
type Outcome struct {
	Doc *entity.Document
	Err error
}

// FileStore copies a workspace file into the canonical receipt tree under its RFC and period.
type FileStore interface {
	CopyIn(src, rfc string, period time.Time, filename string) (string, error)
}

type Reconciler struct {
	files  FileStore
	logger *slog.Logger
}

func NewReconciler(files FileStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{files: files, logger: logger}
}

// Reconcile merges one group into the receipt for (RFC, period). It must run inside a
// transaction: a non-nil error means the record write failed and the caller should roll back.
// Outcomes cover every document of the group in either case.
func (r *Reconciler) Reconcile(ctx context.Context, repo repository.PayrollReceiptRepository, emp *entity.Employee, period Period, g Group) ([]Outcome, error) {
	key := entity.ReceiptKey(g.RFC, period.Date)
	log := r.logger.With("batch_id", period.BatchID, "rfc_fecha", key)

	existing, err := repo.GetByKey(ctx, key, true)
	if err != nil && !common.IsNotFound(err) {
		return failAll(g.Docs, key, "load", err), err
	}
	if err != nil {
		existing = nil
	}

	outcomes := make(map[*entity.Document]error, len(g.Docs))
	plan, kept := r.copyIn(log, existing, period, key, g, outcomes)
	for _, d := range plan.Present {
		outcomes[d] = nil
	}
	for _, d := range plan.Rejected {
		outcomes[d] = &ReconciliationError{Key: key, File: d.Name, Op: "plan", Err: rejectReason(existing, d)}
	}

	if len(kept) > 0 {
		if err := r.write(ctx, repo, emp, period, key, existing, kept, outcomes); err != nil {
			for _, a := range kept {
				outcomes[a.Doc] = &ReconciliationError{Key: key, File: a.Doc.Name, Op: "upsert", Err: err}
			}
			log.Error("reconcile.upsert.failed", "error", err)
			return ordered(g.Docs, outcomes), err
		}
	}

	log.Info("reconcile.group.done",
		"rfc", g.RFC,
		"assigned", len(kept),
		"present", len(plan.Present),
		"rejected", len(plan.Rejected))
	return ordered(g.Docs, outcomes), nil
}

// copyIn places every assigned file in storage before any record points at it.
// A failed copy frees its slot, so the remaining documents are planned again
// without it and pdf1 stays filled before pdf2.
func (r *Reconciler) copyIn(log *slog.Logger, existing *entity.PayrollReceipt, period Period, key string, g Group, outcomes map[*entity.Document]error) (Plan, []Assignment) {
	copied := make(map[*entity.Document]bool, len(g.Docs))
	failed := make(map[*entity.Document]bool)
	for {
		plan := PlanSlots(existing, without(g.Docs, failed))
		replan := false
		for _, a := range plan.Assign {
			if copied[a.Doc] {
				continue
			}
			if _, err := r.files.CopyIn(a.Doc.Path, g.RFC, period.Date, a.Doc.Name); err != nil {
				failed[a.Doc] = true
				outcomes[a.Doc] = &ReconciliationError{Key: key, File: a.Doc.Name, Op: "copy", Err: err}
				log.Warn("reconcile.copy.failed", "file", a.Doc.Name, "error", err)
				replan = true
				break
			}
			copied[a.Doc] = true
		}
		if !replan {
			return plan, plan.Assign
		}
	}
}

func without(docs []*entity.Document, drop map[*entity.Document]bool) []*entity.Document {
	if len(drop) == 0 {
		return docs
	}
	out := make([]*entity.Document, 0, len(docs))
	for _, d := range docs {
		if !drop[d] {
			out = append(out, d)
		}
	}
	return out
}

func (r *Reconciler) write(ctx context.Context, repo repository.PayrollReceiptRepository, emp *entity.Employee, period Period, key string, existing *entity.PayrollReceipt, kept []Assignment, outcomes map[*entity.Document]error) error {
	if existing == nil {
		rec := &entity.PayrollReceipt{
			EmployeeID:   emp.ID,
			RFC:          emp.RFC,
			FechaPeriodo: period.Date,
			RFCFecha:     key,
			PeriodType:   period.Type,
			BatchID:      &period.BatchID,
		}
		if period.ID != "" {
			rec.PeriodID = &period.ID
		}
		for _, a := range kept {
			name := a.Doc.Name
			switch a.Slot {
			case entity.SlotPDF1:
				rec.PDF1Filename = &name
			case entity.SlotPDF2:
				rec.PDF2Filename = &name
			case entity.SlotXML:
				rec.XMLFilename = &name
			}
		}
		inserted, err := repo.InsertIfAbsent(ctx, rec)
		if err != nil {
			return err
		}
		if inserted {
			for _, a := range kept {
				outcomes[a.Doc] = nil
			}
			return nil
		}
		// Another writer created the receipt first; fall through to filling its empty slots.
	}

	filledAny := false
	for _, a := range kept {
		filled, err := repo.FillSlot(ctx, key, a.Slot, a.Doc.Name)
		if err != nil {
			return err
		}
		if filled {
			filledAny = true
			outcomes[a.Doc] = nil
			continue
		}
		current, err := repo.GetByKey(ctx, key, false)
		if err != nil {
			return err
		}
		if current.SlotValue(a.Slot) == a.Doc.Name {
			outcomes[a.Doc] = nil
			continue
		}
		outcomes[a.Doc] = &ReconciliationError{
			Key:  key,
			File: a.Doc.Name,
			Op:   "fill",
			Err:  fmt.Errorf("%w: %s holds %s", ErrSlotTaken, a.Slot, current.SlotValue(a.Slot)),
		}
	}
	if filledAny {
		return repo.Touch(ctx, key, period.BatchID)
	}
	return nil
}

func rejectReason(existing *entity.PayrollReceipt, d *entity.Document) error {
	if d.Type == constants.FileTypeXML {
		if existing != nil && existing.SlotValue(entity.SlotXML) != "" {
			return fmt.Errorf("%w: xml slot holds %s", ErrNoFreeSlot, existing.SlotValue(entity.SlotXML))
		}
		return fmt.Errorf("%w: more than one XML for this employee and period", ErrNoFreeSlot)
	}
	return fmt.Errorf("%w: both PDF slots are taken for this employee and period", ErrNoFreeSlot)
}

func failAll(docs []*entity.Document, key, op string, err error) []Outcome {
	out := make([]Outcome, len(docs))
	for i, d := range docs {
		out[i] = Outcome{Doc: d, Err: &ReconciliationError{Key: key, File: d.Name, Op: op, Err: err}}
	}
	return out
}

func ordered(docs []*entity.Document, outcomes map[*entity.Document]error) []Outcome {
	out := make([]Outcome, len(docs))
	for i, d := range docs {
		out[i] = Outcome{Doc: d, Err: outcomes[d]}
	}
	return out
}
