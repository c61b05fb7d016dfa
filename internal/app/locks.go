package app

import (
	"sync"

	"github.com/openauto/dealerdesk/internal/domain"
)

// entityLocks serializes transitions per entity id, so two staff members
// acting on the same order cannot interleave load-decide-persist cycles.
// Cascade targets are not locked here; the store's optimistic version check
// covers them. Entries are reference counted and removed once the last
// holder releases, keeping the map bounded by in-flight operations rather
// than every id ever touched.
type entityLocks struct {
	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	mu   sync.Mutex
	refs int
}

func newEntityLocks() *entityLocks {
	return &entityLocks{locks: make(map[string]*entityLock)}
}

// lock acquires the lock for (t, id) and returns the release function.
func (l *entityLocks) lock(t domain.EntityType, id string) func() {
	key := string(t) + ":" + id

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &entityLock{}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()

	m.mu.Lock()
	return func() {
		m.mu.Unlock()

		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
