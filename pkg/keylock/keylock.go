// Package keylock provides per-key mutual exclusion with a bounded
// wait. The engine serializes slot claims and per-appointment
// transitions on string keys; a waiter that cannot acquire the key in
// time fails fast instead of queueing indefinitely.
package keylock

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/vetdesk/appointment-engine/pkg/errors"
)

type entry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is a set of named locks. The zero value is not usable;
// construct with New.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
	wait    time.Duration
}

// New creates a KeyedMutex whose acquisitions wait at most maxWait.
func New(maxWait time.Duration) *KeyedMutex {
	return &KeyedMutex{
		entries: make(map[string]*entry),
		wait:    maxWait,
	}
}

// Acquire locks key, waiting up to the configured bound or until ctx is
// done. On success it returns a release function that must be called
// exactly once. On expiry it returns a lock timeout error.
func (k *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	timer := time.NewTimer(k.wait)
	defer timer.Stop()

	select {
	case e.ch <- struct{}{}:
		return func() { k.release(key, e) }, nil
	case <-ctx.Done():
		k.cancelWait(key, e)
		return nil, apperrors.NewLockTimeoutError("lock wait cancelled for " + key)
	case <-timer.C:
		k.cancelWait(key, e)
		return nil, apperrors.NewLockTimeoutError("timed out waiting for lock on " + key)
	}
}

func (k *KeyedMutex) release(key string, e *entry) {
	<-e.ch
	k.cancelWait(key, e)
}

// cancelWait drops one reference and evicts the entry once unused, so
// the map does not grow with every slot ever contended.
func (k *KeyedMutex) cancelWait(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}
