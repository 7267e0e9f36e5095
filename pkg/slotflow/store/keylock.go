package store

import (
	"context"
	"sync"
	"time"
)

// UnlockFunc releases a held lock.
type UnlockFunc func(ctx context.Context) error

// Locker serializes step execution per conversation key. Two inbound
// utterances for the same key must never run concurrently; utterances
// for different keys may.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// KeyLock is the in-process Locker: one mutex per active key, freed
// when no goroutine is waiting on it. For single-instance deployments
// this is all the serialization the engine needs.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	ch   chan struct{} // capacity 1; holding the token = holding the lock
	refs int
}

// NewKeyLock creates an empty KeyLock.
func NewKeyLock() *KeyLock {
	return &KeyLock{
		locks: make(map[string]*keyLockEntry),
	}
}

// Lock implements Locker. The TTL is ignored: an in-process lock dies
// with its process, so it cannot leak past a crash.
func (k *KeyLock) Lock(ctx context.Context, key string, _ time.Duration) (UnlockFunc, error) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyLockEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, entry)
		return nil, ctx.Err()
	}

	return func(context.Context) error {
		<-entry.ch
		k.release(key, entry)
		return nil
	}, nil
}

func (k *KeyLock) release(key string, entry *keyLockEntry) {
	k.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}
