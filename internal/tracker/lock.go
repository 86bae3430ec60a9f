package tracker

import "sync"

// termLocks serializes runs of the same term inside one process. Entries are
// dropped once nobody holds or waits on them.
type termLocks struct {
	mu    sync.Mutex
	locks map[string]*termLock
}

type termLock struct {
	mu   sync.Mutex
	refs int
}

func newTermLocks() *termLocks {
	return &termLocks{locks: make(map[string]*termLock)}
}

func (l *termLocks) acquire(termID string) (release func()) {
	l.mu.Lock()
	lk, ok := l.locks[termID]
	if !ok {
		lk = &termLock{}
		l.locks[termID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()

		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, termID)
		}
		l.mu.Unlock()
	}
}

func (l *termLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
