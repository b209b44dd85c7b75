package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/common"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
)

func doc(name string, typ constants.FileType, rfc string) *entity.Document {
	return &entity.Document{Name: name, Path: "/ws/" + name, Type: typ, RFC: rfc}
}

func strp(s string) *string { return &s }

func TestGroupByRFC(t *testing.T) {
	a1 := doc("a1.pdf", constants.FileTypePDF, "AAA010101AAA")
	b1 := doc("b1.xml", constants.FileTypeXML, "BBB010101BBB")
	a2 := doc("a2.xml", constants.FileTypeXML, "AAA010101AAA")
	orphan := doc("x.pdf", constants.FileTypePDF, "")
	failed := doc("bad.xml", constants.FileTypeXML, "CCC010101CCC")
	failed.Err = errors.New("broken")
	a2.ReceiverName = "Ana Torres"

	groups := GroupByRFC([]*entity.Document{a1, b1, orphan, a2, failed})
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].RFC != "AAA010101AAA" || len(groups[0].Docs) != 2 || groups[0].Docs[0] != a1 || groups[0].Docs[1] != a2 {
		t.Fatalf("unexpected first group %+v", groups[0])
	}
	if groups[0].DisplayName() != "Ana Torres" || groups[1].DisplayName() != "" {
		t.Fatalf("unexpected display names")
	}
}

func TestPlanSlots(t *testing.T) {
	rfc := "AAA010101AAA"
	p1 := doc("p1.pdf", constants.FileTypePDF, rfc)
	p2 := doc("p2.pdf", constants.FileTypePDF, rfc)
	p3 := doc("p3.pdf", constants.FileTypePDF, rfc)
	x1 := doc("x1.xml", constants.FileTypeXML, rfc)
	x2 := doc("x2.xml", constants.FileTypeXML, rfc)

	tests := []struct {
		name         string
		existing     *entity.PayrollReceipt
		docs         []*entity.Document
		wantAssign   map[string]entity.Slot
		wantPresent  []string
		wantRejected []string
	}{
		{
			name:       "new receipt fills in discovery order",
			docs:       []*entity.Document{p1, x1, p2},
			wantAssign: map[string]entity.Slot{"p1.pdf": entity.SlotPDF1, "x1.xml": entity.SlotXML, "p2.pdf": entity.SlotPDF2},
		},
		{
			name:         "third pdf and second xml rejected",
			docs:         []*entity.Document{p1, p2, p3, x1, x2},
			wantAssign:   map[string]entity.Slot{"p1.pdf": entity.SlotPDF1, "p2.pdf": entity.SlotPDF2, "x1.xml": entity.SlotXML},
			wantRejected: []string{"p3.pdf", "x2.xml"},
		},
		{
			name:       "existing pdf1 keeps its file",
			existing:   &entity.PayrollReceipt{PDF1Filename: strp("old.pdf")},
			docs:       []*entity.Document{p1, x1},
			wantAssign: map[string]entity.Slot{"p1.pdf": entity.SlotPDF2, "x1.xml": entity.SlotXML},
		},
		{
			name:         "occupied slots reject different files",
			existing:     &entity.PayrollReceipt{PDF1Filename: strp("old1.pdf"), PDF2Filename: strp("old2.pdf"), XMLFilename: strp("old.xml")},
			docs:         []*entity.Document{p1, x1},
			wantAssign:   map[string]entity.Slot{},
			wantRejected: []string{"p1.pdf", "x1.xml"},
		},
		{
			name:        "rerun is a no-op",
			existing:    &entity.PayrollReceipt{PDF1Filename: strp("p1.pdf"), XMLFilename: strp("x1.xml")},
			docs:        []*entity.Document{p1, x1},
			wantAssign:  map[string]entity.Slot{},
			wantPresent: []string{"p1.pdf", "x1.xml"},
		},
		{
			name:        "empty string slot counts as empty",
			existing:    &entity.PayrollReceipt{PDF1Filename: strp(""), PDF2Filename: strp("p1.pdf")},
			docs:        []*entity.Document{p1, p2},
			wantAssign:  map[string]entity.Slot{"p2.pdf": entity.SlotPDF1},
			wantPresent: []string{"p1.pdf"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PlanSlots(tt.existing, tt.docs)
			got := map[string]entity.Slot{}
			for _, a := range p.Assign {
				got[a.Doc.Name] = a.Slot
			}
			if len(got) != len(tt.wantAssign) {
				t.Fatalf("assign = %v, want %v", got, tt.wantAssign)
			}
			for name, slot := range tt.wantAssign {
				if got[name] != slot {
					t.Fatalf("assign = %v, want %v", got, tt.wantAssign)
				}
			}
			if fmt.Sprint(docNames(p.Present)) != fmt.Sprint(nilIfEmpty(tt.wantPresent)) {
				t.Fatalf("present = %v, want %v", docNames(p.Present), tt.wantPresent)
			}
			if fmt.Sprint(docNames(p.Rejected)) != fmt.Sprint(nilIfEmpty(tt.wantRejected)) {
				t.Fatalf("rejected = %v, want %v", docNames(p.Rejected), tt.wantRejected)
			}
		})
	}
}

func docNames(docs []*entity.Document) []string {
	var out []string
	for _, d := range docs {
		out = append(out, d.Name)
	}
	return out
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

type fakeReceipts struct {
	byKey     map[string]*entity.PayrollReceipt
	insertErr error
	fillErr   error
	touched   []int
	// lostInsert is stored by a concurrent writer just before the first InsertIfAbsent.
	lostInsert *entity.PayrollReceipt
}

func newFakeReceipts() *fakeReceipts {
	return &fakeReceipts{byKey: make(map[string]*entity.PayrollReceipt)}
}

func (f *fakeReceipts) GetByID(_ context.Context, id int) (*entity.PayrollReceipt, error) {
	for _, r := range f.byKey {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeReceipts) GetByKey(_ context.Context, key string, _ bool) (*entity.PayrollReceipt, error) {
	r, ok := f.byKey[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReceipts) InsertIfAbsent(_ context.Context, r *entity.PayrollReceipt) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if f.lostInsert != nil {
		f.byKey[r.RFCFecha] = f.lostInsert
		f.lostInsert = nil
		return false, nil
	}
	if _, ok := f.byKey[r.RFCFecha]; ok {
		return false, nil
	}
	cp := *r
	cp.ID = len(f.byKey) + 1
	f.byKey[r.RFCFecha] = &cp
	return true, nil
}

func (f *fakeReceipts) FillSlot(_ context.Context, key string, slot entity.Slot, filename string) (bool, error) {
	if f.fillErr != nil {
		return false, f.fillErr
	}
	r, ok := f.byKey[key]
	if !ok || r.SlotValue(slot) != "" {
		return false, nil
	}
	name := filename
	switch slot {
	case entity.SlotPDF1:
		r.PDF1Filename = &name
	case entity.SlotPDF2:
		r.PDF2Filename = &name
	case entity.SlotXML:
		r.XMLFilename = &name
	}
	return true, nil
}

func (f *fakeReceipts) Touch(_ context.Context, key string, batchID int) error {
	f.touched = append(f.touched, batchID)
	if r, ok := f.byKey[key]; ok {
		r.BatchID = &batchID
	}
	return nil
}

func (f *fakeReceipts) ListByRFC(context.Context, string) ([]*entity.PayrollReceipt, error) {
	return nil, nil
}

func (f *fakeReceipts) ListByBatch(context.Context, int) ([]*entity.PayrollReceipt, error) {
	return nil, nil
}

type fakeFiles struct {
	copied []string
	fail   map[string]bool
}

func (f *fakeFiles) CopyIn(_, rfc string, _ time.Time, filename string) (string, error) {
	if f.fail[filename] {
		return "", errors.New("disk full")
	}
	f.copied = append(f.copied, rfc+"/"+filename)
	return "/storage/receipts/" + rfc + "/" + filename, nil
}

var (
	testEmployee = &entity.Employee{ID: 1, RFC: "ABC850101AAA", Active: true}
	testPeriod   = Period{BatchID: 7, Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Type: constants.PeriodBiweekly, ID: "2024-01"}
)

func group(docs ...*entity.Document) Group {
	return Group{RFC: "ABC850101AAA", Docs: docs}
}

func errCount(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

func TestReconcileCreatesReceipt(t *testing.T) {
	repo := newFakeReceipts()
	files := &fakeFiles{}
	r := NewReconciler(files, nil)
	g := group(doc("ABC850101AAA.xml", constants.FileTypeXML, "ABC850101AAA"), doc("recibo.pdf", constants.FileTypePDF, "ABC850101AAA"))

	out, err := r.Reconcile(context.Background(), repo, testEmployee, testPeriod, g)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if errCount(out) != 0 {
		t.Fatalf("unexpected errors %+v", out)
	}
	rec := repo.byKey["ABC850101AAA_2024-01-15"]
	if rec == nil || rec.SlotValue(entity.SlotXML) != "ABC850101AAA.xml" || rec.SlotValue(entity.SlotPDF1) != "recibo.pdf" {
		t.Fatalf("unexpected receipt %+v", rec)
	}
	if rec.PeriodID == nil || *rec.PeriodID != "2024-01" || rec.BatchID == nil || *rec.BatchID != 7 {
		t.Fatalf("period metadata missing: %+v", rec)
	}
	if len(files.copied) != 2 {
		t.Fatalf("expected 2 copies, got %v", files.copied)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	repo := newFakeReceipts()
	files := &fakeFiles{}
	r := NewReconciler(files, nil)
	g := group(doc("a.pdf", constants.FileTypePDF, "ABC850101AAA"), doc("b.pdf", constants.FileTypePDF, "ABC850101AAA"))

	if _, err := r.Reconcile(context.Background(), repo, testEmployee, testPeriod, g); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := *repo.byKey["ABC850101AAA_2024-01-15"]

	out, err := r.Reconcile(context.Background(), repo, testEmployee, testPeriod, g)
	if err != nil || errCount(out) != 0 {
		t.Fatalf("rerun: err=%v outcomes=%+v", err, out)
	}
	after := repo.byKey["ABC850101AAA_2024-01-15"]
	if after.SlotValue(entity.SlotPDF1) != before.SlotValue(entity.SlotPDF1) || after.SlotValue(entity.SlotPDF2) != before.SlotValue(entity.SlotPDF2) {
		t.Fatalf("slots changed on rerun")
	}
	if len(repo.byKey) != 1 || len(files.copied) != 2 {
		t.Fatalf("rerun duplicated work: receipts=%d copies=%v", len(repo.byKey), files.copied)
	}
}

func TestReconcileNeverOverwritesSlots(t *testing.T) {
	repo := newFakeReceipts()
	repo.byKey["ABC850101AAA_2024-01-15"] = &entity.PayrollReceipt{ID: 1, RFCFecha: "ABC850101AAA_2024-01-15", PDF1Filename: strp("primero.pdf"), XMLFilename: strp("primero.xml")}
	r := NewReconciler(&fakeFiles{}, nil)
	g := group(
		doc("nuevo.xml", constants.FileTypeXML, "ABC850101AAA"),
		doc("nuevo1.pdf", constants.FileTypePDF, "ABC850101AAA"),
		doc("nuevo2.pdf", constants.FileTypePDF, "ABC850101AAA"),
	)

	out, err := r.Reconcile(context.Background(), repo, testEmployee, testPeriod, g)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	rec := repo.byKey["ABC850101AAA_2024-01-15"]
	if rec.SlotValue(entity.SlotPDF1) != "primero.pdf" || rec.SlotValue(entity.SlotXML) != "primero.xml" || rec.SlotValue(entity.SlotPDF2) != "nuevo1.pdf" {
		t.Fatalf("slots overwritten: %+v", rec)
	}
	if out[0].Err == nil || !errors.Is(out[0].Err, ErrNoFreeSlot) {
		t.Fatalf("xml should be rejected, got %v", out[0].Err)
	}
	if out[1].Err != nil || !errors.Is(out[2].Err, ErrNoFreeSlot) {
		t.Fatalf("unexpected pdf outcomes %v / %v", out[1].Err, out[2].Err)
	}
	if len(repo.touched) != 1 || repo.touched[0] != 7 {
		t.Fatalf("receipt should record the batch that filled it, got %v", repo.touched)
	}
}

func TestReconcileCopyFailureIsFileLevel(t *testing.T) {
	repo := newFakeReceipts()
	files := &fakeFiles{fail: map[string]bool{"roto.pdf": true}}
	r := NewReconciler(files, nil)
	g := group(doc("roto.pdf", constants.FileTypePDF, "ABC850101AAA"), doc("ok.xml", constants.FileTypeXML, "ABC850101AAA"))

	out, err := r.Reconcile(context.Background(), repo, testEmployee, testPeriod, g)
	if err != nil {
		t.Fatalf("copy failure must not fail the group: %v", err)
	}
	var re *ReconciliationError
	if !errors.As(out[0].Err, &re) || re.Op != "copy" {
		t.Fatalf("expected copy ReconciliationError, got %v", out[0].Err)
	}
	if out[1].Err != nil {
		t.Fatalf("xml should succeed: %v", out[1].Err)
	}
	if repo.byKey["ABC850101AAA_2024-01-15"].SlotValue(entity.SlotPDF1) != "" {
		t.Fatalf("failed copy must not be recorded")
	}
}

func TestReconcileCopyFailureKeepsSlotOrder(t *testing.T) {
	repo := newFakeReceipts()
	files := &fakeFiles{fail: map[string]bool{"primero.pdf": true}}
	r := NewReconciler(files, nil)
	g := group(
		doc("primero.pdf", constants.FileTypePDF, "ABC850101AAA"),
		doc("segundo.pdf", constants.FileTypePDF, "ABC850101AAA"),
		doc("tercero.pdf", constants.FileTypePDF, "ABC850101AAA"),
	)

	out, err := r.Reconcile(context.Background(), repo, testEmployee, testPeriod, g)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	rec := repo.byKey["ABC850101AAA_2024-01-15"]
	if rec.SlotValue(entity.SlotPDF1) != "segundo.pdf" || rec.SlotValue(entity.SlotPDF2) != "tercero.pdf" {
		t.Fatalf("remaining pdfs should move up a slot, got pdf1=%q pdf2=%q", rec.SlotValue(entity.SlotPDF1), rec.SlotValue(entity.SlotPDF2))
	}
	var re *ReconciliationError
	if !errors.As(out[0].Err, &re) || re.Op != "copy" {
		t.Fatalf("expected copy error for primero.pdf, got %v", out[0].Err)
	}
	if out[1].Err != nil || out[2].Err != nil {
		t.Fatalf("unexpected outcomes %v / %v", out[1].Err, out[2].Err)
	}
	if len(files.copied) != 2 {
		t.Fatalf("each stored file is copied once, got %v", files.copied)
	}
}

func TestReconcileCopyFailureWithSingleFreeSlot(t *testing.T) {
	repo := newFakeReceipts()
	repo.byKey["ABC850101AAA_2024-01-15"] = &entity.PayrollReceipt{ID: 1, RFCFecha: "ABC850101AAA_2024-01-15", PDF1Filename: strp("viejo.pdf")}
	r := NewReconciler(&fakeFiles{fail: map[string]bool{"a.pdf": true}}, nil)
	g := group(doc("a.pdf", constants.FileTypePDF, "ABC850101AAA"), doc("b.pdf", constants.FileTypePDF, "ABC850101AAA"))

	out, err := r.Reconcile(context.Background(), repo, testEmployee, testPeriod, g)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out[1].Err != nil {
		t.Fatalf("b.pdf should take the slot a.pdf could not, got %v", out[1].Err)
	}
	if got := repo.byKey["ABC850101AAA_2024-01-15"].SlotValue(entity.SlotPDF2); got != "b.pdf" {
		t.Fatalf("pdf2 = %q", got)
	}
}

func TestReconcileUpsertFailureFailsAssigned(t *testing.T) {
	repo := newFakeReceipts()
	repo.insertErr = errors.New("connection reset")
	r := NewReconciler(&fakeFiles{}, nil)
	g := group(doc("a.pdf", constants.FileTypePDF, "ABC850101AAA"), doc("a.xml", constants.FileTypeXML, "ABC850101AAA"))

	out, err := r.Reconcile(context.Background(), repo, testEmployee, testPeriod, g)
	if err == nil {
		t.Fatalf("expected error to roll back the group")
	}
	if errCount(out) != 2 {
		t.Fatalf("expected both documents to fail, got %+v", out)
	}
}

func TestReconcileConcurrentInsertFallsBackToFill(t *testing.T) {
	repo := newFakeReceipts()
	repo.lostInsert = &entity.PayrollReceipt{ID: 9, RFCFecha: "ABC850101AAA_2024-01-15", XMLFilename: strp("otro.xml")}
	r := NewReconciler(&fakeFiles{}, nil)
	g := group(doc("a.pdf", constants.FileTypePDF, "ABC850101AAA"), doc("a.xml", constants.FileTypeXML, "ABC850101AAA"))

	out, err := r.Reconcile(context.Background(), repo, testEmployee, testPeriod, g)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out[0].Err != nil {
		t.Fatalf("pdf should fill the empty slot: %v", out[0].Err)
	}
	if !errors.Is(out[1].Err, ErrSlotTaken) {
		t.Fatalf("xml should lose to the concurrent writer, got %v", out[1].Err)
	}
	rec := repo.byKey["ABC850101AAA_2024-01-15"]
	if rec.SlotValue(entity.SlotXML) != "otro.xml" || rec.SlotValue(entity.SlotPDF1) != "a.pdf" {
		t.Fatalf("unexpected receipt %+v", rec)
	}
}
