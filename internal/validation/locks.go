package validation

import (
	"sync"

	"github.com/google/uuid"
)

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// locks serializes work per shipment. Entries are dropped once no caller
// holds or waits on them.
type locks struct {
	mu    sync.Mutex
	byKey map[uuid.UUID]*keyedLock
}

func newLocks() *locks {
	return &locks{byKey: make(map[uuid.UUID]*keyedLock)}
}

func (l *locks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	k, ok := l.byKey[id]
	if !ok {
		k = &keyedLock{}
		l.byKey[id] = k
	}
	k.refs++
	l.mu.Unlock()

	k.mu.Lock()

	return func() {
		k.mu.Unlock()

		l.mu.Lock()
		k.refs--
		if k.refs == 0 {
			delete(l.byKey, id)
		}
		l.mu.Unlock()
	}
}
