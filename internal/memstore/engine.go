package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/nosqlprovider-go/cupboard/internal/logging"
	"github.com/nosqlprovider-go/cupboard/internal/txlock"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// Engine is the nosql.Provider implementation for the in-memory indexed
// variant (component C6, indexed flavor): every store's items and indexes
// live in Go maps/slices guarded by one engine-wide mutex.
//
// Mutations apply directly to the in-memory state as each Store call runs;
// there is no write-ahead log to roll back, so Abort cannot undo operations
// already applied earlier in the same transaction. It can only refuse
// further operations and release the transaction's locks, since every write
// lands immediately rather than staging a batch.
type Engine struct {
	mu       sync.RWMutex
	locker   *txlock.Locker
	declared schema.Schema
	version  int
	stores   map[string]*storeData
	opened   bool
	closed   bool
}

// NewEngine returns a ready-to-open in-memory Engine.
func NewEngine() *Engine {
	return &Engine{locker: txlock.New()}
}

func (e *Engine) OpenDatabase(ctx context.Context, name string, declared schema.Schema, wipeIfExists bool, verbose bool) error {
	if err := declared.Validate(); err != nil {
		return err
	}
	log := logging.Verbose("memstore", verbose)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opened {
		e.stores = make(map[string]*storeData)
		for _, st := range declared.Stores {
			e.stores[st.Name] = newStoreData(st)
		}
		e.declared = declared
		e.version = declared.Version
		e.opened = true
		return nil
	}

	if err := reconcile(e, declared, wipeIfExists, log); err != nil {
		return err
	}
	e.declared = declared
	return nil
}

func (e *Engine) OpenTransaction(ctx context.Context, storeNames []string, writeNeeded bool) (nosql.Transaction, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, schema.ErrDatabaseClosed
	}
	if !e.opened {
		e.mu.RUnlock()
		return nil, fmt.Errorf("%w: database not opened", schema.ErrInvalidArgument)
	}
	for _, name := range storeNames {
		if _, ok := e.declared.Store(name); !ok {
			e.mu.RUnlock()
			return nil, fmt.Errorf("%w: %q", schema.ErrStoreNotFound, name)
		}
	}
	e.mu.RUnlock()

	token, err := e.locker.OpenTransaction(ctx, storeNames, writeNeeded)
	if err != nil {
		return nil, err
	}
	return newMemTransaction(e, token, storeNames), nil
}

func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.locker.CloseWhenPossible().Wait()
	return nil
}

func (e *Engine) DeleteDatabase(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		return fmt.Errorf("%w: provider must be closed before deleting its database", schema.ErrInvalidArgument)
	}
	e.stores = make(map[string]*storeData)
	e.opened = false
	return nil
}
