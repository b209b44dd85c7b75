package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/nomina-receipts/internal/common"
)

// conn binds a querier (driver or transaction) to the dialect used to build statements.
type conn struct {
	q       dialect.ExecQuerier
	dialect string
}

func newConn(drv dialect.Driver) conn {
	return conn{q: drv, dialect: drv.Dialect()}
}

func (c conn) sql() *entsql.DialectBuilder {
	return entsql.Dialect(c.dialect)
}

func (c conn) postgres() bool {
	return c.dialect == dialect.Postgres
}

// exec runs a statement and returns the number of affected rows.
func (c conn) exec(ctx context.Context, b entsql.Querier) (int64, error) {
	query, args := b.Query()
	var res sql.Result
	if err := c.q.Exec(ctx, query, args, &res); err != nil {
		return 0, dbError(err)
	}
	return res.RowsAffected()
}

// query runs a statement and calls scan once per row.
func (c conn) query(ctx context.Context, b entsql.Querier, scan func(*entsql.Rows) error) error {
	query, args := b.Query()
	rows := &entsql.Rows{}
	if err := c.q.Query(ctx, query, args, rows); err != nil {
		return dbError(err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return dbError(rows.Err())
}

// dbError tags driver failures with common.ErrDatabase and keeps the cause reachable.
func dbError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", common.ErrDatabase, err)
}

// queryOne is query for exactly one row; zero rows maps to common.ErrNotFound.
func (c conn) queryOne(ctx context.Context, b entsql.Querier, scan func(*entsql.Rows) error) error {
	found := false
	err := c.query(ctx, b, func(rows *entsql.Rows) error {
		if found {
			return nil
		}
		found = true
		return scan(rows)
	})
	if err != nil {
		return err
	}
	if !found {
		return common.ErrNotFound
	}
	return nil
}

// insertID runs an INSERT ... RETURNING id.
func (c conn) insertID(ctx context.Context, b *entsql.InsertBuilder) (int, error) {
	var id int
	err := c.queryOne(ctx, b.Returning("id"), func(rows *entsql.Rows) error {
		return rows.Scan(&id)
	})
	if errors.Is(err, common.ErrNotFound) {
		return 0, errors.New("insert returned no id")
	}
	return id, err
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func strOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func notFound(kind string, id any) error {
	return common.NewAppError("NOT_FOUND", fmt.Sprintf("%s %v not found", kind, id), common.ErrNotFound)
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
