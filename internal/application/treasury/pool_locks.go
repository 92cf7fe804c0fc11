package treasury

import (
	"sync"

	"github.com/google/uuid"
)

// poolLocks serializes sweep execution per pool within this process.
// Concurrent submissions of the same idempotency key must not race past
// the replay check before either has written a sweep row; the database
// unique index is the cross-process backstop.
type poolLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*poolLock
}

type poolLock struct {
	mu   sync.Mutex
	refs int
}

func newPoolLocks() *poolLocks {
	return &poolLocks{locks: make(map[uuid.UUID]*poolLock)}
}

// Lock acquires the per-pool mutex, creating it on first use
func (l *poolLocks) Lock(poolID uuid.UUID) {
	l.mu.Lock()
	entry, ok := l.locks[poolID]
	if !ok {
		entry = &poolLock{}
		l.locks[poolID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

// size reports how many pool entries are currently held
func (l *poolLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// Unlock releases the per-pool mutex and drops it once no waiter remains
func (l *poolLocks) Unlock(poolID uuid.UUID) {
	l.mu.Lock()
	entry, ok := l.locks[poolID]
	if ok {
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, poolID)
		}
	}
	l.mu.Unlock()

	if ok {
		entry.mu.Unlock()
	}
}
