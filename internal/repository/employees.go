package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
)

type EmployeeRepository interface {
	GetByRFC(ctx context.Context, rfc string) (*entity.Employee, error)
	GetByID(ctx context.Context, id int) (*entity.Employee, error)
	// CreateIfAbsent inserts the employee unless its RFC exists; created reports which happened.
	CreateIfAbsent(ctx context.Context, e *entity.Employee) (created bool, err error)
	Reactivate(ctx context.Context, id int) error
}

type employeeRepo struct {
	conn
	logger *slog.Logger
}

func NewEmployeeRepository(drv dialect.Driver, logger *slog.Logger) EmployeeRepository {
	return &employeeRepo{
		conn:   newConn(drv),
		logger: logger,
	}
}

var employeeColumns = []string{"id", "rfc", "name", "carpeta", "password_hash", "legacy_id", "active", "created_at", "updated_at"}

func (r *employeeRepo) get(ctx context.Context, p *entsql.Predicate, key any) (*entity.Employee, error) {
	q := r.sql().Select(employeeColumns...).
		From(entsql.Table(tableEmployees)).
		Where(p)
	var e entity.Employee
	err := r.queryOne(ctx, q, func(rows *entsql.Rows) error {
		var (
			carpeta  sql.NullString
			legacyID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.RFC, &e.Name, &carpeta, &e.PasswordHash, &legacyID, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return err
		}
		e.Carpeta = nullString(carpeta)
		e.LegacyID = nullInt(legacyID)
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("employee", key)
		}
		r.logger.Error("failed to get employee", "key", key, "error", err)
		return nil, err
	}
	return &e, nil
}

func (r *employeeRepo) GetByRFC(ctx context.Context, rfc string) (*entity.Employee, error) {
	return r.get(ctx, entsql.EQ("rfc", rfc), rfc)
}

func (r *employeeRepo) GetByID(ctx context.Context, id int) (*entity.Employee, error) {
	return r.get(ctx, entsql.EQ("id", id), id)
}

func (r *employeeRepo) CreateIfAbsent(ctx context.Context, e *entity.Employee) (bool, error) {
	now := time.Now().UTC()
	ins := r.sql().Insert(tableEmployees).
		Columns("rfc", "name", "carpeta", "password_hash", "legacy_id", "active", "created_at", "updated_at").
		Values(e.RFC, e.Name, e.Carpeta, e.PasswordHash, e.LegacyID, true, now, now).
		OnConflict(entsql.ConflictColumns("rfc"), entsql.DoNothing())
	n, err := r.exec(ctx, ins)
	if err != nil {
		r.logger.Error("failed to create employee", "rfc", e.RFC, "error", err)
		return false, err
	}
	return n > 0, nil
}

func (r *employeeRepo) Reactivate(ctx context.Context, id int) error {
	u := r.sql().Update(tableEmployees).
		Set("active", true).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id))
	n, err := r.exec(ctx, u)
	if err != nil {
		r.logger.Error("failed to reactivate employee", "employee_id", id, "error", err)
		return err
	}
	if n == 0 {
		return notFound("employee", id)
	}
	return nil
}
