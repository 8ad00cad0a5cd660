package businessflow

import "sync"

// serviceLocks serializes read-modify-write sequences per service.
// Entries are reference counted and removed once no caller holds or waits on them.
type serviceLocks struct {
	mu    sync.Mutex
	locks map[string]*serviceLock
}

type serviceLock struct {
	sync.Mutex
	refs int
}

func newServiceLocks() *serviceLocks {
	return &serviceLocks{locks: make(map[string]*serviceLock)}
}

// lock blocks until the caller owns the lock for key and returns the unlock func.
func (l *serviceLocks) lock(key string) func() {
	l.mu.Lock()
	sl, ok := l.locks[key]
	if !ok {
		sl = &serviceLock{}
		l.locks[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()

	return func() {
		sl.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *serviceLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
