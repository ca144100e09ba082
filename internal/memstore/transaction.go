package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nosqlprovider-go/cupboard/internal/txlock"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// commitDebounce mirrors sqlstore's auto-commit debounce window so both
// flavors settle on comparable timing after their last outstanding
// operation completes.
const commitDebounce = 2 * time.Millisecond

// memTransaction is the Transaction runtime over an Engine. There is no
// underlying database transaction to commit: every Store call already
// mutated the engine's state directly, so "commit" only needs to release
// the transaction's lock once no operation is outstanding, using the same
// debounce as sqlTransaction so the two flavors auto-commit on comparable
// timing.
type memTransaction struct {
	mu       sync.Mutex
	engine   *Engine
	locker   *txlock.Locker
	token    *txlock.Token
	storeSet map[string]bool

	pending int
	done    bool
	timer   *time.Timer
	result  chan error
}

func newMemTransaction(e *Engine, token *txlock.Token, storeNames []string) *memTransaction {
	set := make(map[string]bool, len(storeNames))
	for _, n := range storeNames {
		set[n] = true
	}
	return &memTransaction{
		engine: e, locker: e.locker, token: token,
		storeSet: set, result: make(chan error, 1),
	}
}

func (t *memTransaction) GetStore(name string) (nosql.Store, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, schema.ErrTransactionClosed
	}
	if !t.storeSet[name] {
		return nil, fmt.Errorf("%w: %q is not open on this transaction", schema.ErrStoreNotFound, name)
	}

	t.engine.mu.RLock()
	data, ok := t.engine.stores[name]
	t.engine.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", schema.ErrStoreNotFound, name)
	}

	inner := &memStore{engine: t.engine, data: data}
	return &trackedMemStore{txn: t, inner: inner}, nil
}

func (t *memTransaction) GetCompletionPromise() <-chan error {
	return t.result
}

func (t *memTransaction) Abort(err error) error {
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

	t.locker.TransactionFailed(t.token, err)
	if err == nil {
		err = schema.ErrTransactionAborted
	}
	t.result <- err
	close(t.result)
	return nil
}

func (t *memTransaction) beginOp() error {
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
func (t *memTransaction) endOp(opErr error) {
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

func (t *memTransaction) tryCommit() {
	t.mu.Lock()
	if t.done || t.pending > 0 {
		t.mu.Unlock()
		return
	}
	t.done = true
	t.mu.Unlock()

	t.locker.TransactionComplete(t.token)
	t.result <- nil
	close(t.result)
}

// trackedMemStore wraps memStore so every call counts toward the
// transaction's outstanding-operation tally, the same way trackedStore
// wraps sqlStore in the SQL flavor.
type trackedMemStore struct {
	txn   *memTransaction
	inner nosql.Store
}

func (s *trackedMemStore) Get(ctx context.Context, key any) (any, bool, error) {
	if err := s.txn.beginOp(); err != nil {
		return nil, false, err
	}
	item, ok, err := s.inner.Get(ctx, key)
	s.txn.endOp(err)
	return item, ok, err
}

func (s *trackedMemStore) GetMultiple(ctx context.Context, keys []any) ([]any, error) {
	if err := s.txn.beginOp(); err != nil {
		return nil, err
	}
	items, err := s.inner.GetMultiple(ctx, keys)
	s.txn.endOp(err)
	return items, err
}

func (s *trackedMemStore) Put(ctx context.Context, items ...any) error {
	if err := s.txn.beginOp(); err != nil {
		return err
	}
	err := s.inner.Put(ctx, items...)
	s.txn.endOp(err)
	return err
}

func (s *trackedMemStore) Remove(ctx context.Context, keys ...any) error {
	if err := s.txn.beginOp(); err != nil {
		return err
	}
	err := s.inner.Remove(ctx, keys...)
	s.txn.endOp(err)
	return err
}

func (s *trackedMemStore) ClearAllData(ctx context.Context) error {
	if err := s.txn.beginOp(); err != nil {
		return err
	}
	err := s.inner.ClearAllData(ctx)
	s.txn.endOp(err)
	return err
}

func (s *trackedMemStore) OpenIndex(name string) (nosql.Index, error) {
	idx, err := s.inner.OpenIndex(name)
	if err != nil {
		return nil, err
	}
	return &trackedMemIndex{txn: s.txn, inner: idx}, nil
}

func (s *trackedMemStore) OpenPrimaryKey() (nosql.Index, error) {
	idx, err := s.inner.OpenPrimaryKey()
	if err != nil {
		return nil, err
	}
	return &trackedMemIndex{txn: s.txn, inner: idx}, nil
}

// trackedMemIndex wraps an Index view the same way trackedMemStore wraps a
// Store.
type trackedMemIndex struct {
	txn   *memTransaction
	inner nosql.Index
}

func (i *trackedMemIndex) GetAll(ctx context.Context, reverse bool, limit, offset uint32) ([]any, error) {
	if err := i.txn.beginOp(); err != nil {
		return nil, err
	}
	items, err := i.inner.GetAll(ctx, reverse, limit, offset)
	i.txn.endOp(err)
	return items, err
}

func (i *trackedMemIndex) GetOnly(ctx context.Context, key any, reverse bool, limit, offset uint32) ([]any, error) {
	if err := i.txn.beginOp(); err != nil {
		return nil, err
	}
	items, err := i.inner.GetOnly(ctx, key, reverse, limit, offset)
	i.txn.endOp(err)
	return items, err
}

func (i *trackedMemIndex) GetRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool, reverse bool, limit, offset uint32) ([]any, error) {
	if err := i.txn.beginOp(); err != nil {
		return nil, err
	}
	items, err := i.inner.GetRange(ctx, lo, hi, loExcl, hiExcl, reverse, limit, offset)
	i.txn.endOp(err)
	return items, err
}

func (i *trackedMemIndex) CountAll(ctx context.Context) (uint64, error) {
	if err := i.txn.beginOp(); err != nil {
		return 0, err
	}
	n, err := i.inner.CountAll(ctx)
	i.txn.endOp(err)
	return n, err
}

func (i *trackedMemIndex) CountOnly(ctx context.Context, key any) (uint64, error) {
	if err := i.txn.beginOp(); err != nil {
		return 0, err
	}
	n, err := i.inner.CountOnly(ctx, key)
	i.txn.endOp(err)
	return n, err
}

func (i *trackedMemIndex) CountRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool) (uint64, error) {
	if err := i.txn.beginOp(); err != nil {
		return 0, err
	}
	n, err := i.inner.CountRange(ctx, lo, hi, loExcl, hiExcl)
	i.txn.endOp(err)
	return n, err
}

func (i *trackedMemIndex) FullTextSearch(ctx context.Context, phrase string, resolution nosql.Resolution, limit uint32) ([]any, error) {
	if err := i.txn.beginOp(); err != nil {
		return nil, err
	}
	items, err := i.inner.FullTextSearch(ctx, phrase, resolution, limit)
	i.txn.endOp(err)
	return items, err
}
