package ingest

import "sync"

// keyLock serializes work on overlapping entity-key sets. Locks are
// acquired in sorted key order, so two batches with intersecting key
// sets can never deadlock against each other.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*refMutex)}
}

// acquire locks every key in order. keys must already be sorted and
// deduplicated.
func (k *keyLock) acquire(keys []string) {
	for _, key := range keys {
		k.mu.Lock()
		m, ok := k.locks[key]
		if !ok {
			m = &refMutex{}
			k.locks[key] = m
		}
		m.refs++
		k.mu.Unlock()

		m.mu.Lock()
	}
}

// release unlocks in reverse order and drops mutexes nobody waits on.
func (k *keyLock) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]

		k.mu.Lock()
		m := k.locks[key]
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()

		m.mu.Unlock()
	}
}
