package sqlexec

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
)

// cgoExecutor wraps a *sql.DB opened with the cgo mattn/go-sqlite3 driver.
// Its sole purpose in this module is to prove the Executor surface is
// engine-agnostic: a second, independently implemented SQL engine drives
// the exact same migration engine and store runtime as modernc.org/sqlite.
type cgoExecutor struct {
	db *sql.DB
}

// OpenCgoSQLite opens dsn with mattn/go-sqlite3. MaxVariables mirrors
// SQLite's default bound-variable cap; RequiresUnicodeReplacement is true so
// this adapter exercises the U+2028/U+2029 stripping path as a modeled
// driver quirk rather than a hard-coded universal behavior.
func OpenCgoSQLite(dsn string) (Executor, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	return &cgoExecutor{db: db}, nil
}

func (e *cgoExecutor) ExecuteSQL(ctx context.Context, query string, args []any) (*sql.Rows, error) {
	return e.db.QueryContext(ctx, query, args...)
}

func (e *cgoExecutor) MaxVariables() int { return 999 }

func (e *cgoExecutor) RequiresUnicodeReplacement() bool { return true }

func (e *cgoExecutor) Begin(ctx context.Context) (Tx, error) {
	return e.db.BeginTx(ctx, nil)
}

func (e *cgoExecutor) DB() *sql.DB { return e.db }

func (e *cgoExecutor) Close() error { return e.db.Close() }

// IsUniqueViolationCgo reports whether err is a unique-constraint violation
// surfaced by mattn/go-sqlite3's typed sqlite3.Error.
func IsUniqueViolationCgo(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
