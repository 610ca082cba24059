package repository

import "sync"

// keyedLocks serializes mutations per session id. Step submissions and the
// grading writes are read-modify-write sequences that must not race; locking
// by key keeps independent sessions fully concurrent.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex for a key, creating it on first use. Mutexes are
// never removed; sessions are retained indefinitely anyway.
func (k *keyedLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}
