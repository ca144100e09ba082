package sqlstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nosqlprovider-go/cupboard/internal/logging"
	"github.com/nosqlprovider-go/cupboard/internal/sqlexec"
	"github.com/nosqlprovider-go/cupboard/internal/txlock"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// commitDebounce is how long a transaction waits, after its last pending
// operation completes, before committing. Operations issued against the
// same transaction from sequential, non-overlapping calls register within
// this window; it stands in for the "no outstanding operations remain
// within a turn" auto-commit rule with no event-loop turn to key off of.
const commitDebounce = 2 * time.Millisecond

// sqlTransaction is the Transaction runtime (component C6). Every Store and
// Index it vends is tracked so the transaction can auto-commit once no
// operation is outstanding and none arrives within commitDebounce.
type sqlTransaction struct {
	mu           sync.Mutex
	tx           sqlexec.Tx
	locker       *txlock.Locker
	token        *txlock.Token
	declared     schema.Schema
	caps         nosql.DriverCapabilities
	maxVariables int
	log          logging.Logger
	storeSet     map[string]bool

	pending int
	done    bool
	timer   *time.Timer
	result  chan error
}

func newSQLTransaction(tx sqlexec.Tx, locker *txlock.Locker, token *txlock.Token, declared schema.Schema, caps nosql.DriverCapabilities, maxVariables int, log logging.Logger, storeNames []string) *sqlTransaction {
	set := make(map[string]bool, len(storeNames))
	for _, n := range storeNames {
		set[n] = true
	}
	return &sqlTransaction{
		tx: tx, locker: locker, token: token,
		declared: declared, caps: caps, maxVariables: maxVariables, log: log,
		storeSet: set, result: make(chan error, 1),
	}
}

func (t *sqlTransaction) GetStore(name string) (nosql.Store, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, schema.ErrTransactionClosed
	}
	if !t.storeSet[name] {
		return nil, fmt.Errorf("%w: %q is not open on this transaction", schema.ErrStoreNotFound, name)
	}
	storeSchema, ok := t.declared.Store(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", schema.ErrStoreNotFound, name)
	}
	inner := newSQLStore(t.tx, storeSchema, t.caps, t.maxVariables, t.log)
	return &trackedStore{txn: t, inner: inner}, nil
}

func (t *sqlTransaction) GetCompletionPromise() <-chan error {
	return t.result
}

func (t *sqlTransaction) Abort(err error) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return nil
	}
	t.done = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()

	rollbackErr := t.tx.Rollback()
	t.locker.TransactionFailed(t.token, err)
	if err == nil {
		err = schema.ErrTransactionAborted
	}
	t.result <- err
	close(t.result)
	if rollbackErr != nil {
		t.log.Warn("rollback after abort failed", "error", rollbackErr)
	}
	return nil
}

// beginOp registers one outstanding operation, failing fast if the
// transaction has already committed or aborted.
func (t *sqlTransaction) beginOp() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return schema.ErrTransactionClosed
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending++
	return nil
}

// endOp retires one outstanding operation. If opErr is non-nil, the
// transaction aborts immediately instead of arming the commit timer, so a
// failed Put/Remove/etc. can never be silently auto-committed by a caller
// that forgets to call Abort itself. Otherwise, if no operation remains
// outstanding, arms the commit timer.
func (t *sqlTransaction) endOp(opErr error) {
	if opErr != nil {
		t.Abort(opErr)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.pending--
	if t.pending <= 0 {
		t.timer = time.AfterFunc(commitDebounce, t.tryCommit)
	}
}

func (t *sqlTransaction) tryCommit() {
	t.mu.Lock()
	if t.done || t.pending > 0 {
		t.mu.Unlock()
		return
	}
	t.done = true
	t.mu.Unlock()

	err := t.tx.Commit()
	if err != nil {
		err = fmt.Errorf("%w: %v", schema.ErrBackendError, err)
	}
	t.locker.TransactionComplete(t.token)
	t.result <- err
	close(t.result)
}

// trackedStore wraps sqlStore so every call counts toward the transaction's
// outstanding-operation tally.
type trackedStore struct {
	txn   *sqlTransaction
	inner nosql.Store
}

func (s *trackedStore) Get(ctx context.Context, key any) (any, bool, error) {
	if err := s.txn.beginOp(); err != nil {
		return nil, false, err
	}
	item, ok, err := s.inner.Get(ctx, key)
	s.txn.endOp(err)
	return item, ok, err
}

func (s *trackedStore) GetMultiple(ctx context.Context, keys []any) ([]any, error) {
	if err := s.txn.beginOp(); err != nil {
		return nil, err
	}
	items, err := s.inner.GetMultiple(ctx, keys)
	s.txn.endOp(err)
	return items, err
}

func (s *trackedStore) Put(ctx context.Context, items ...any) error {
	if err := s.txn.beginOp(); err != nil {
		return err
	}
	err := s.inner.Put(ctx, items...)
	s.txn.endOp(err)
	return err
}

func (s *trackedStore) Remove(ctx context.Context, keys ...any) error {
	if err := s.txn.beginOp(); err != nil {
		return err
	}
	err := s.inner.Remove(ctx, keys...)
	s.txn.endOp(err)
	return err
}

func (s *trackedStore) ClearAllData(ctx context.Context) error {
	if err := s.txn.beginOp(); err != nil {
		return err
	}
	err := s.inner.ClearAllData(ctx)
	s.txn.endOp(err)
	return err
}

func (s *trackedStore) OpenIndex(name string) (nosql.Index, error) {
	idx, err := s.inner.OpenIndex(name)
	if err != nil {
		return nil, err
	}
	return &trackedIndex{txn: s.txn, inner: idx}, nil
}

func (s *trackedStore) OpenPrimaryKey() (nosql.Index, error) {
	idx, err := s.inner.OpenPrimaryKey()
	if err != nil {
		return nil, err
	}
	return &trackedIndex{txn: s.txn, inner: idx}, nil
}

// trackedIndex wraps an Index view the same way trackedStore wraps a Store.
type trackedIndex struct {
	txn   *sqlTransaction
	inner nosql.Index
}

func (i *trackedIndex) GetAll(ctx context.Context, reverse bool, limit, offset uint32) ([]any, error) {
	if err := i.txn.beginOp(); err != nil {
		return nil, err
	}
	items, err := i.inner.GetAll(ctx, reverse, limit, offset)
	i.txn.endOp(err)
	return items, err
}

func (i *trackedIndex) GetOnly(ctx context.Context, key any, reverse bool, limit, offset uint32) ([]any, error) {
	if err := i.txn.beginOp(); err != nil {
		return nil, err
	}
	items, err := i.inner.GetOnly(ctx, key, reverse, limit, offset)
	i.txn.endOp(err)
	return items, err
}

func (i *trackedIndex) GetRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool, reverse bool, limit, offset uint32) ([]any, error) {
	if err := i.txn.beginOp(); err != nil {
		return nil, err
	}
	items, err := i.inner.GetRange(ctx, lo, hi, loExcl, hiExcl, reverse, limit, offset)
	i.txn.endOp(err)
	return items, err
}

func (i *trackedIndex) CountAll(ctx context.Context) (uint64, error) {
	if err := i.txn.beginOp(); err != nil {
		return 0, err
	}
	n, err := i.inner.CountAll(ctx)
	i.txn.endOp(err)
	return n, err
}

func (i *trackedIndex) CountOnly(ctx context.Context, key any) (uint64, error) {
	if err := i.txn.beginOp(); err != nil {
		return 0, err
	}
	n, err := i.inner.CountOnly(ctx, key)
	i.txn.endOp(err)
	return n, err
}

func (i *trackedIndex) CountRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool) (uint64, error) {
	if err := i.txn.beginOp(); err != nil {
		return 0, err
	}
	n, err := i.inner.CountRange(ctx, lo, hi, loExcl, hiExcl)
	i.txn.endOp(err)
	return n, err
}

func (i *trackedIndex) FullTextSearch(ctx context.Context, phrase string, resolution nosql.Resolution, limit uint32) ([]any, error) {
	if err := i.txn.beginOp(); err != nil {
		return nil, err
	}
	items, err := i.inner.FullTextSearch(ctx, phrase, resolution, limit)
	i.txn.endOp(err)
	return items, err
}
