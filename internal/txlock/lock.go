// Package txlock serializes or parallelizes transactions by store-name set
// and read/write mode: conflicting transactions (sharing a store, at least
// one of them a writer) admit in FIFO order; non-conflicting transactions
// may proceed concurrently.
package txlock

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// Token identifies one admitted transaction's held locks.
type Token struct {
	id     string
	stores []string
	write  bool
}

type storeState struct {
	readers int
	writer  bool
}

type waiter struct {
	stores      []string
	writeNeeded bool
	ready       chan struct{}
	failed      bool
}

// Locker is the transaction lock helper (component C3).
type Locker struct {
	mu       sync.Mutex
	states   map[string]*storeState
	queue    []*waiter
	closing  bool
	inFlight int
	drained  chan struct{}
}

// New returns a ready-to-use Locker.
func New() *Locker {
	return &Locker{states: make(map[string]*storeState)}
}

func (l *Locker) lock()   { l.mu.Lock() }
func (l *Locker) unlock() { l.mu.Unlock() }

// OpenTransaction suspends until a transaction over storeNames in the given
// mode is admissible, then returns its Token. It fails fast with
// schema.ErrDatabaseClosing if CloseWhenPossible has already been called,
// and honors ctx cancellation while queued.
func (l *Locker) OpenTransaction(ctx context.Context, storeNames []string, writeNeeded bool) (*Token, error) {
	l.lock()
	if l.closing {
		l.unlock()
		return nil, schema.ErrDatabaseClosing
	}
	w := &waiter{stores: storeNames, writeNeeded: writeNeeded, ready: make(chan struct{})}
	l.queue = append(l.queue, w)
	l.admitLocked()
	l.unlock()

	select {
	case <-w.ready:
		if w.failed {
			return nil, schema.ErrTransactionAborted
		}
		l.lock()
		l.inFlight++
		l.unlock()
		return &Token{id: newTokenID(), stores: storeNames, write: writeNeeded}, nil
	case <-ctx.Done():
		l.lock()
		l.dequeueLocked(w)
		l.unlock()
		return nil, ctx.Err()
	}
}

func newTokenID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func (l *Locker) dequeueLocked(target *waiter) {
	for i, w := range l.queue {
		if w == target {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return
		}
	}
}

// admitLocked scans the queue head-to-tail, admitting every waiter whose
// store set doesn't conflict with currently held locks or with an
// earlier-queued waiter that is itself still blocked. This is what gives the
// FIFO guarantee: once a writer is stuck behind a conflicting hold, any
// later waiter sharing a store with it is held back too, so the writer is
// never starved by an unbroken stream of readers.
func (l *Locker) admitLocked() {
	var remaining []*waiter
	for _, w := range l.queue {
		if l.conflictsWithHeldLocked(w) || l.conflictsWithBlocked(w, remaining) {
			remaining = append(remaining, w)
			continue
		}
		l.holdLocked(w)
		close(w.ready)
	}
	l.queue = remaining
}

func (l *Locker) conflictsWithHeldLocked(w *waiter) bool {
	for _, s := range w.stores {
		st := l.states[s]
		if st == nil {
			continue
		}
		if st.writer || (w.writeNeeded && st.readers > 0) {
			return true
		}
	}
	return false
}

func (l *Locker) conflictsWithBlocked(w *waiter, blocked []*waiter) bool {
	for _, s := range w.stores {
		for _, other := range blocked {
			for _, os := range other.stores {
				if os == s {
					return true
				}
			}
		}
	}
	return false
}

func (l *Locker) holdLocked(w *waiter) {
	for _, s := range w.stores {
		st := l.states[s]
		if st == nil {
			st = &storeState{}
			l.states[s] = st
		}
		if w.writeNeeded {
			st.writer = true
		} else {
			st.readers++
		}
	}
}

// TransactionComplete releases tok's held locks after a successful commit.
func (l *Locker) TransactionComplete(tok *Token) {
	l.release(tok)
}

// TransactionFailed releases tok's held locks after an aborted transaction.
// Any waiter still queued behind it is unblocked normally; it is not itself
// failed — only the caller's own completion promise observes the failure.
func (l *Locker) TransactionFailed(tok *Token, err error) {
	l.release(tok)
}

func (l *Locker) release(tok *Token) {
	l.lock()
	defer l.unlock()

	for _, s := range tok.stores {
		st := l.states[s]
		if st == nil {
			continue
		}
		if tok.write {
			st.writer = false
		} else if st.readers > 0 {
			st.readers--
		}
		if !st.writer && st.readers == 0 {
			delete(l.states, s)
		}
	}
	l.inFlight--
	l.admitLocked()

	if l.closing && l.inFlight <= 0 && l.drained != nil {
		close(l.drained)
		l.drained = nil
	}
}

// CloseWhenPossible refuses new transactions from now on and returns a
// *conc.WaitGroup whose Wait() returns once every in-flight transaction has
// completed or failed.
func (l *Locker) CloseWhenPossible() *conc.WaitGroup {
	l.lock()
	l.closing = true
	ch := make(chan struct{})
	if l.inFlight <= 0 {
		close(ch)
	} else {
		l.drained = ch
	}
	// Fail every waiter still queued: a closing database accepts no new
	// transactions, in flight or queued.
	for _, w := range l.queue {
		w.failed = true
		close(w.ready)
	}
	l.queue = nil
	l.unlock()

	wg := conc.NewWaitGroup()
	wg.Go(func() {
		<-ch
	})
	return wg
}
