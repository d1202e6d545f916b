package state

import "sync"

// Locks serializes work on one conversation. Telebot runs updates of the same
// chat concurrently, so a handler holds the key's lock from reading its
// value until the value is written back. The zero value is ready to use.
type Locks struct {
	mu   sync.Mutex
	keys map[Key]*keyLock
}

type keyLock struct {
	mu      sync.Mutex
	waiters int
}

// Lock blocks until key is free and returns the matching unlock.
func (l *Locks) Lock(key Key) (unlock func()) {
	l.mu.Lock()
	if l.keys == nil {
		l.keys = make(map[Key]*keyLock)
	}
	k, ok := l.keys[key]
	if !ok {
		k = &keyLock{}
		l.keys[key] = k
	}
	k.waiters++
	l.mu.Unlock()

	k.mu.Lock()
	return func() {
		k.mu.Unlock()
		l.mu.Lock()
		if k.waiters--; k.waiters == 0 {
			delete(l.keys, key)
		}
		l.mu.Unlock()
	}
}

// held reports how many keys have a holder or waiter.
func (l *Locks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
