package sqlexec

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

// moderncExecutor wraps a *sql.DB opened with the pure-Go modernc.org/sqlite
// driver.
type moderncExecutor struct {
	db *sql.DB
}

// OpenModernc opens dsn with modernc.org/sqlite. MaxVariables is 999 (the
// driver's default SQLITE_LIMIT_VARIABLE_NUMBER) and no unicode replacement
// is required.
func OpenModernc(dsn string) (Executor, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &moderncExecutor{db: db}, nil
}

func (e *moderncExecutor) ExecuteSQL(ctx context.Context, query string, args []any) (*sql.Rows, error) {
	return e.db.QueryContext(ctx, query, args...)
}

func (e *moderncExecutor) MaxVariables() int { return 999 }

func (e *moderncExecutor) RequiresUnicodeReplacement() bool { return false }

func (e *moderncExecutor) Begin(ctx context.Context) (Tx, error) {
	return e.db.BeginTx(ctx, nil)
}

func (e *moderncExecutor) DB() *sql.DB { return e.db }

func (e *moderncExecutor) Close() error { return e.db.Close() }

// IsUniqueViolationModernc reports whether err is a unique-constraint
// violation surfaced by modernc.org/sqlite. The driver doesn't export a
// typed error for this, so the constraint text is matched the way the
// driver's own tests do.
func IsUniqueViolationModernc(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint")
}
