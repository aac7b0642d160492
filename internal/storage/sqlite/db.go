// Package sqlite implements the storefront repositories on SQLite through
// sqlx and the pure-Go modernc driver. It backs local development and the
// end-to-end tests; money is stored as decimal text.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/order"
)

// Open connects to dsn and applies the embedded schema. SQLite allows one
// writer, so the pool is pinned to a single connection; this also keeps
// ":memory:" databases alive for the lifetime of the handle.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}
	if _, err := conn.ExecContext(ctx, db.SQLiteSchema); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return conn, nil
}

type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type txKey struct{}

var _ order.Transactor = (*DB)(nil)

// DB hands repositories the transaction bound to the context, or the
// connection pool when there is none.
type DB struct {
	conn *sqlx.DB
}

// NewDB wraps conn.
func NewDB(conn *sqlx.DB) *DB {
	return &DB{conn: conn}
}

// WithTx runs fn in a transaction. Nested calls join the outer transaction.
func (d *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Unavailable(err, "begin tx")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperr.Unavailable(err, "commit tx")
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

func (d *DB) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return d.conn
}

func unavailable(err error, format string, args ...any) error {
	return apperr.Unavailable(errors.Wrapf(err, format, args...), "sqlite")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var e *sqlite.Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}

func affected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
