package memory

import "sync"

// lockTable hands out one exclusive lock per user identifier, created on
// first access. Locks are purely in-process: they serialize the multi-step
// append/size/drain sequences of one running instance and reset to unlocked
// on restart, which is safe because the store's own transaction is the
// final guard against data loss.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *lockTable) get(userID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[userID] = l
	}
	return l
}

// drop removes a user's entry; called from the erasure flow so the table
// does not grow past the set of users that still exist.
func (t *lockTable) drop(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.locks, userID)
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
