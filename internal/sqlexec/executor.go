// Package sqlexec is the uniform statement-executor surface (component C4,
// SQL flavor) over a database/sql handle. Two concrete adapters
// (modernc.org/sqlite and mattn/go-sqlite3) satisfy Executor so the schema
// migration engine and store runtime never depend on a concrete driver.
package sqlexec

import (
	"context"
	"database/sql"
)

// Rows is the minimal row-iteration surface the store runtime needs; it is
// satisfied directly by *sql.Rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Tx is the minimal transaction surface the migration engine and store
// runtime drive; it is satisfied directly by *sql.Tx.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Commit() error
	Rollback() error
}

// Executor is the statement-executor contract driver adapters implement.
type Executor interface {
	// ExecuteSQL runs query with args and returns its result set. Use within
	// a Tx obtained from Begin when the statement must be transactional.
	ExecuteSQL(ctx context.Context, query string, args []any) (*sql.Rows, error)

	// MaxVariables is the driver's per-statement bound-parameter cap
	// (internal_getMaxVariables in the distilled spec), typically 999.
	MaxVariables() int

	// RequiresUnicodeReplacement reports whether U+2028/U+2029 must be
	// stripped from serialized payloads before insertion — a quirk of some
	// embedded SQL engines, not a universal behavior.
	RequiresUnicodeReplacement() bool

	// Begin starts a driver transaction. Either adapter must support
	// rollback on error and surface unique-constraint violations
	// distinguishably (see IsUniqueViolation).
	Begin(ctx context.Context) (Tx, error)

	// DB exposes the underlying handle for direct use by the migration
	// engine (e.g. reading sqlite_master).
	DB() *sql.DB

	// Close releases the underlying connection.
	Close() error
}

// IsUniqueViolation reports whether err is a unique-constraint violation from
// either supported driver. Store code calls this one entry point instead of
// branching on the concrete Executor in use.
func IsUniqueViolation(err error) bool {
	return IsUniqueViolationModernc(err) || IsUniqueViolationCgo(err)
}
