package receipts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/nomina-receipts/internal/common"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
	"github.com/joseph-ayodele/nomina-receipts/internal/repository"
)

// FileLocator finds stored receipt files on disk.
type FileLocator interface {
	Locate(rfc string, period time.Time, filename string) (string, error)
}

// Service handles receipt lookups for the download collaborator.
type Service struct {
	receiptRepo repository.PayrollReceiptRepository
	files       FileLocator
	logger      *slog.Logger
}

// NewService creates a new receipt service.
func NewService(receiptRepo repository.PayrollReceiptRepository, files FileLocator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		receiptRepo: receiptRepo,
		files:       files,
		logger:      logger,
	}
}

// ListByRFC returns every receipt stored for an employee RFC.
func (s *Service) ListByRFC(ctx context.Context, rfc string) ([]*entity.PayrollReceipt, error) {
	rfc = strings.ToUpper(strings.TrimSpace(rfc))
	if verr := common.RFC("rfc", rfc); verr != nil {
		s.logger.Error("invalid rfc for list receipts", "rfc", rfc)
		return nil, fmt.Errorf("%w: %s", common.ErrValidation, verr.Error())
	}

	recs, err := s.receiptRepo.ListByRFC(ctx, rfc)
	if err != nil {
		s.logger.Error("failed to list receipts", "rfc", rfc, "error", err)
		return nil, common.WrapError(err, "list receipts")
	}
	s.logger.Info("receipts listed successfully", "rfc", rfc, "count", len(recs))
	return recs, nil
}

// ResolveFile returns the on-disk path of one slot of a receipt.
// Employees may only reach receipts carrying their own RFC; staff may reach any.
func (s *Service) ResolveFile(ctx context.Context, p entity.Principal, receiptID int, slot entity.Slot) (string, error) {
	rec, err := s.receiptRepo.GetByID(ctx, receiptID)
	if err != nil {
		return "", err
	}

	switch who := p.(type) {
	case entity.EmployeePrincipal:
		if !strings.EqualFold(who.RFC, rec.RFC) {
			s.logger.Warn("receipt access denied", "receipt_id", receiptID, "employee_id", who.EmployeeID)
			return "", common.NewAppError("FORBIDDEN", "receipt belongs to another employee", common.ErrForbidden)
		}
	case entity.StaffPrincipal:
	default:
		return "", common.NewAppError("FORBIDDEN", "unknown principal", common.ErrForbidden)
	}

	name := rec.SlotValue(slot)
	if name == "" {
		return "", common.NewAppError("NOT_FOUND", fmt.Sprintf("receipt %d has no %s file", receiptID, slot), common.ErrNotFound)
	}
	path, err := s.files.Locate(rec.RFC, rec.FechaPeriodo, name)
	if err != nil {
		s.logger.Error("receipt file missing from storage", "receipt_id", receiptID, "slot", string(slot), "error", err)
		return "", err
	}
	return path, nil
}
