package workflow

import (
	"context"
	"sync"
)

// keyedMutex serializes work per key. Locks are channel-based so a
// holder can keep the lock across blocking calls while waiters remain
// cancellable. Entries are reference-counted and removed when idle.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{} // capacity 1; full means held
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires the key's mutex, blocking until it is free or ctx is
// done. The returned release function must be called exactly once.
func (m *keyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			m.put(key, l)
		}, nil
	case <-ctx.Done():
		m.put(key, l)
		return nil, ctx.Err()
	}
}

// TryLock acquires without blocking. The second return is false when
// the key is already held.
func (m *keyedMutex) TryLock(key string) (func(), bool) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			m.put(key, l)
		}, true
	default:
		m.put(key, l)
		return nil, false
	}
}

func (m *keyedMutex) put(key string, l *keyLock) {
	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}
