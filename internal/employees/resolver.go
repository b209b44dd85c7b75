package employees

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/joseph-ayodele/nomina-receipts/internal/common"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
	"github.com/joseph-ayodele/nomina-receipts/internal/repository"
)

// PlaceholderName is used when no XML in the group carries a receiver name.
func PlaceholderName(rfc string) string {
	return "Empleado " + rfc
}

// EmployeeProvisionError is an unexpected failure looking up, creating or reactivating an employee.
// It fails every document of the RFC group but not the batch.
type EmployeeProvisionError struct {
	RFC string
	Op  string
	Err error
}

func (e *EmployeeProvisionError) Error() string {
	return fmt.Sprintf("employee %s: %s: %v", e.RFC, e.Op, e.Err)
}

func (e *EmployeeProvisionError) Unwrap() error {
	return e.Err
}

// Resolver maps an RFC to an employee, creating or reactivating the row as needed.
type Resolver struct {
	passwordHash string
	logger       *slog.Logger
}

// NewResolver hashes the initial credential placeholder once; every auto-provisioned employee
// gets the same hash and an administrator resets it out of band.
func NewResolver(initialCredential string, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if initialCredential == "" {
		return nil, fmt.Errorf("%w: initial credential placeholder is required", common.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(initialCredential), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash initial credential: %w", err)
	}
	return &Resolver{passwordHash: string(hash), logger: logger}, nil
}

// Resolve returns the active employee for rfc. Absence is never an error: the employee is created.
func (r *Resolver) Resolve(ctx context.Context, repo repository.EmployeeRepository, rfc, displayName string) (*entity.Employee, error) {
	v := common.NewValidator().Field("rfc", rfc, common.Required, common.RFC)
	if v.HasErrors() {
		return nil, &EmployeeProvisionError{RFC: rfc, Op: "validate", Err: v.Error()}
	}

	emp, err := repo.GetByRFC(ctx, rfc)
	switch {
	case err == nil:
	case common.IsNotFound(err):
		emp, err = r.create(ctx, repo, rfc, displayName)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &EmployeeProvisionError{RFC: rfc, Op: "lookup", Err: err}
	}

	if !emp.Active {
		if err := repo.Reactivate(ctx, emp.ID); err != nil {
			return nil, &EmployeeProvisionError{RFC: rfc, Op: "reactivate", Err: err}
		}
		emp.Active = true
		r.logger.Info("employees.reactivated", "employee_id", emp.ID, "rfc", rfc)
	}
	return emp, nil
}

func (r *Resolver) create(ctx context.Context, repo repository.EmployeeRepository, rfc, displayName string) (*entity.Employee, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = PlaceholderName(rfc)
	}
	carpeta := strings.ToLower(rfc)
	created, err := repo.CreateIfAbsent(ctx, &entity.Employee{
		RFC:          rfc,
		Name:         name,
		Carpeta:      &carpeta,
		PasswordHash: r.passwordHash,
		Active:       true,
	})
	if err != nil {
		return nil, &EmployeeProvisionError{RFC: rfc, Op: "create", Err: err}
	}

	// Re-read: another worker may have created the row between the lookup and the insert.
	emp, err := repo.GetByRFC(ctx, rfc)
	if err != nil {
		return nil, &EmployeeProvisionError{RFC: rfc, Op: "reload", Err: err}
	}
	if created {
		r.logger.Info("employees.provisioned", "employee_id", emp.ID, "rfc", rfc, "name", name)
	}
	return emp, nil
}
