package sqlstore

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/nosqlprovider-go/cupboard/internal/logging"
	"github.com/nosqlprovider-go/cupboard/internal/sqlexec"
	"github.com/nosqlprovider-go/cupboard/internal/txlock"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// Provider is the nosql.Provider implementation for SQL-backed engines
// (component C6, SQL flavor), driving an sqlexec.Executor through the
// migration engine and transaction lock helper.
type Provider struct {
	mu       sync.RWMutex
	executor sqlexec.Executor
	caps     nosql.DriverCapabilities
	dsn      string
	locker   *txlock.Locker
	declared schema.Schema
	opened   bool
	closed   bool
}

// NewProvider wires executor (an adapter over modernc.org/sqlite or
// mattn/go-sqlite3) into a Provider. dsn is retained only so DeleteDatabase
// can remove the backing file; it is ignored for in-memory DSNs.
func NewProvider(executor sqlexec.Executor, caps nosql.DriverCapabilities, dsn string) *Provider {
	return &Provider{executor: executor, caps: caps, dsn: dsn, locker: txlock.New()}
}

func (p *Provider) OpenDatabase(ctx context.Context, name string, declared schema.Schema, wipeIfExists bool, verbose bool) error {
	if err := declared.Validate(); err != nil {
		return err
	}
	log := logging.Verbose("sqlstore", verbose)

	tx, err := p.executor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin migration transaction: %v", schema.ErrBackendUnavailable, err)
	}
	if err := migrate(ctx, tx, declared, wipeIfExists, p.caps, log); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit migration: %v", schema.ErrBackendError, err)
	}

	p.mu.Lock()
	p.declared = declared
	p.opened = true
	p.mu.Unlock()
	return nil
}

func (p *Provider) OpenTransaction(ctx context.Context, storeNames []string, writeNeeded bool) (nosql.Transaction, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, schema.ErrDatabaseClosed
	}
	if !p.opened {
		p.mu.RUnlock()
		return nil, fmt.Errorf("%w: database not opened", schema.ErrInvalidArgument)
	}
	declared := p.declared
	caps := p.caps
	maxVariables := p.executor.MaxVariables()
	if caps.MaxVariablesPerStatement > 0 {
		maxVariables = caps.MaxVariablesPerStatement
	}
	p.mu.RUnlock()

	for _, name := range storeNames {
		if _, ok := declared.Store(name); !ok {
			return nil, fmt.Errorf("%w: %q", schema.ErrStoreNotFound, name)
		}
	}

	token, err := p.locker.OpenTransaction(ctx, storeNames, writeNeeded)
	if err != nil {
		return nil, err
	}

	tx, err := p.executor.Begin(ctx)
	if err != nil {
		p.locker.TransactionFailed(token, err)
		return nil, fmt.Errorf("%w: begin transaction: %v", schema.ErrBackendUnavailable, err)
	}

	return newSQLTransaction(tx, p.locker, token, declared, caps, maxVariables, logging.Verbose("sqlstore", false), storeNames), nil
}

func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.locker.CloseWhenPossible().Wait()
	return p.executor.Close()
}

func (p *Provider) DeleteDatabase(ctx context.Context) error {
	p.mu.RLock()
	closed := p.closed
	dsn := p.dsn
	p.mu.RUnlock()
	if !closed {
		return fmt.Errorf("%w: provider must be closed before deleting its database", schema.ErrInvalidArgument)
	}
	if dsn == "" || dsn == ":memory:" {
		return nil
	}
	if err := os.Remove(dsn); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", schema.ErrBackendError, err)
	}
	return nil
}
