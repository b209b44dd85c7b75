package repository

import (
	"context"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
)

// Tx groups the repositories bound to a single transaction.
type Tx struct {
	Employees  EmployeeRepository
	Receipts   PayrollReceiptRepository
	BatchFiles BatchFileRepository
}

// TxRunner runs fn inside a transaction, committing when fn returns nil.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store owns the driver and hands out repositories bound to it.
type Store struct {
	drv    *entsql.Driver
	logger *slog.Logger

	Batches    BatchRepository
	BatchFiles BatchFileRepository
	Employees  EmployeeRepository
	Receipts   PayrollReceiptRepository
}

func NewStore(drv *entsql.Driver, logger *slog.Logger) *Store {
	return &Store{
		drv:        drv,
		logger:     logger,
		Batches:    NewBatchRepository(drv, logger),
		BatchFiles: NewBatchFileRepository(drv, logger),
		Employees:  NewEmployeeRepository(drv, logger),
		Receipts:   NewPayrollReceiptRepository(drv, logger),
	}
}

func (s *Store) Driver() *entsql.Driver {
	return s.drv
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	t, err := s.drv.Tx(ctx)
	if err != nil {
		s.logger.Error("failed to begin transaction", "error", err)
		return err
	}
	c := conn{q: t, dialect: s.drv.Dialect()}
	tx := Tx{
		Employees:  &employeeRepo{conn: c, logger: s.logger},
		Receipts:   &payrollReceiptRepo{conn: c, logger: s.logger},
		BatchFiles: &batchFileRepo{conn: c, logger: s.logger},
	}

	defer func() {
		if v := recover(); v != nil {
			_ = t.Rollback()
			panic(v)
		}
	}()
	if err := fn(ctx, tx); err != nil {
		if rerr := t.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		s.logger.Error("failed to commit transaction", "error", err)
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
