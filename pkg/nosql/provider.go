// Package nosql defines the backend-agnostic indexed object-store contract:
// Provider, Transaction, Store and Index. Concrete engines (internal/sqlstore,
// internal/memstore) implement these interfaces; callers never import an
// engine package directly except to construct a Provider.
package nosql

import (
	"context"

	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// Provider is the toward-driver contract: open a database against a
// declared schema, open transactions against it, and tear it down.
type Provider interface {
	// OpenDatabase opens (creating if absent) the named database, running
	// the schema migration engine against declared. wipeIfExists forces a
	// full wipe-and-recreate regardless of drift detection. verbose routes
	// migration DDL through the logger.
	OpenDatabase(ctx context.Context, name string, declared schema.Schema, wipeIfExists bool, verbose bool) error

	// OpenTransaction suspends until admissible per the transaction lock
	// helper, then returns a Transaction scoped to storeNames.
	OpenTransaction(ctx context.Context, storeNames []string, writeNeeded bool) (Transaction, error)

	// Close drains in-flight transactions, then refuses new ones.
	Close(ctx context.Context) error

	// DeleteDatabase removes all persisted state. The provider must be
	// closed first.
	DeleteDatabase(ctx context.Context) error
}

// Transaction scopes a set of Store handles opened together, either
// read-only or read-write.
type Transaction interface {
	// GetStore returns the Store for name, which must be one of the store
	// names this transaction was opened against.
	GetStore(name string) (Store, error)

	// GetCompletionPromise returns a channel that receives the transaction's
	// terminal error (nil on success) exactly once, then closes.
	GetCompletionPromise() <-chan error

	// Abort ends the transaction and releases its locks; operations issued
	// on it afterwards fail with schema.ErrTransactionClosed, and an
	// operation already running is not interrupted. The completion promise
	// receives err, or schema.ErrTransactionAborted when err is nil.
	Abort(err error) error
}

// Store is the per-open-transaction runtime contract for a single named
// collection of items.
type Store interface {
	// Get returns the item at key, or ok=false if absent. err is
	// schema.ErrInvalidKey if key cannot be serialized.
	Get(ctx context.Context, key any) (item any, ok bool, err error)

	// GetMultiple returns items for each key in order; missing keys are
	// omitted from the result, which may therefore be shorter than keys.
	// An empty keys argument returns an empty result without touching the
	// driver.
	GetMultiple(ctx context.Context, keys []any) ([]any, error)

	// Put serializes and upserts each item, recomputing the primary key and
	// every index's derived key(s). Partial failure aborts the enclosing
	// transaction.
	Put(ctx context.Context, items ...any) error

	// Remove deletes each key's row and every side-table row that
	// references it.
	Remove(ctx context.Context, keys ...any) error

	// ClearAllData unconditionally empties the base table/store and every
	// side table/sidecar store.
	ClearAllData(ctx context.Context) error

	// OpenIndex returns a view over a declared secondary index.
	OpenIndex(name string) (Index, error)

	// OpenPrimaryKey returns a view over the store's primary key ordering.
	OpenPrimaryKey() (Index, error)
}

// Index is a view over a column or side table permitting range and
// full-text queries.
type Index interface {
	// GetAll scans the whole index in key order (descending iff reverse).
	GetAll(ctx context.Context, reverse bool, limit, offset uint32) ([]any, error)

	// GetOnly returns items whose index key equals the serialization of key.
	GetOnly(ctx context.Context, key any, reverse bool, limit, offset uint32) ([]any, error)

	// GetRange returns items whose index key falls within [lo, hi] (bounds
	// inclusive unless loExcl/hiExcl is set; either bound may be nil).
	GetRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool, reverse bool, limit, offset uint32) ([]any, error)

	// CountAll, CountOnly and CountRange mirror the read operations above,
	// returning a row count instead of materializing items.
	CountAll(ctx context.Context) (uint64, error)
	CountOnly(ctx context.Context, key any) (uint64, error)
	CountRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool) (uint64, error)

	// FullTextSearch tokenizes phrase and merges per-term matches per
	// resolution. Returns schema.ErrInvalidArgument if tokenization yields
	// no terms.
	FullTextSearch(ctx context.Context, phrase string, resolution Resolution, limit uint32) ([]any, error)
}
