package schema

import "errors"

// Kind classifies a schema or runtime error into one of the categories
// callers are expected to branch on.
type Kind string

// Error kinds surfaced to callers of the provider and store runtime.
const (
	KindInvalidArgument    Kind = "invalid_argument"
	KindInvalidKey         Kind = "invalid_key"
	KindStoreNotFound      Kind = "store_not_found"
	KindIndexNotFound      Kind = "index_not_found"
	KindTransactionClosed  Kind = "transaction_closed"
	KindTransactionAborted Kind = "transaction_aborted"
	KindDatabaseClosed     Kind = "database_closed"
	KindDatabaseClosing    Kind = "database_closing"
	KindVersionTooNew      Kind = "version_too_new"
	KindBackendUnavailable Kind = "backend_unavailable"
	KindBackendError       Kind = "backend_error"
)

// Sentinel errors, one per Kind. Wrap these with fmt.Errorf("...: %w", ...)
// rather than constructing new error values.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidKey         = errors.New("invalid key")
	ErrStoreNotFound      = errors.New("store not found")
	ErrIndexNotFound      = errors.New("index not found")
	ErrTransactionClosed  = errors.New("transaction closed")
	ErrTransactionAborted = errors.New("transaction aborted")
	ErrDatabaseClosed     = errors.New("database closed")
	ErrDatabaseClosing    = errors.New("database closing")
	ErrVersionTooNew      = errors.New("version too new")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrBackendError       = errors.New("backend error")
)

// kindBySentinel backs KindOf; order doesn't matter, errors.Is does the work.
var kindBySentinel = map[error]Kind{
	ErrInvalidArgument:    KindInvalidArgument,
	ErrInvalidKey:         KindInvalidKey,
	ErrStoreNotFound:      KindStoreNotFound,
	ErrIndexNotFound:      KindIndexNotFound,
	ErrTransactionClosed:  KindTransactionClosed,
	ErrTransactionAborted: KindTransactionAborted,
	ErrDatabaseClosed:     KindDatabaseClosed,
	ErrDatabaseClosing:    KindDatabaseClosing,
	ErrVersionTooNew:      KindVersionTooNew,
	ErrBackendUnavailable: KindBackendUnavailable,
	ErrBackendError:       KindBackendError,
}

// KindOf reports the Kind of err by walking its Unwrap chain against the
// package sentinels. Returns ("", false) for errors not rooted in one of them.
func KindOf(err error) (Kind, bool) {
	for sentinel, kind := range kindBySentinel {
		if errors.Is(err, sentinel) {
			return kind, true
		}
	}
	return "", false
}
