// Package lock provides per-profile locking so that completions for the same
// hunter are serialised inside one process.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// profileMutex is a context-aware mutex: holding the lock means owning the
// single slot of sem.
type profileMutex struct {
	sem     chan struct{}
	holders int
}

// ProfileLock hands out one mutex per profile ID. Entries are dropped once no
// goroutine holds or waits on them.
type ProfileLock struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*profileMutex
}

// NewProfileLock creates a new ProfileLock instance.
func NewProfileLock() *ProfileLock {
	return &ProfileLock{locks: make(map[uuid.UUID]*profileMutex)}
}

// acquire returns the mutex for id and registers the caller on it.
func (pl *ProfileLock) acquire(id uuid.UUID) *profileMutex {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	m, ok := pl.locks[id]
	if !ok {
		m = &profileMutex{sem: make(chan struct{}, 1)}
		pl.locks[id] = m
	}
	m.holders++
	return m
}

// release unregisters the caller and forgets the mutex when unused.
func (pl *ProfileLock) release(id uuid.UUID, m *profileMutex) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	m.holders--
	if m.holders == 0 {
		delete(pl.locks, id)
	}
}

// Lock blocks until the profile's lock is held or ctx is done.
func (pl *ProfileLock) Lock(ctx context.Context, id uuid.UUID) error {
	m := pl.acquire(id)
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		pl.release(id, m)
		return ctx.Err()
	}
}

// Unlock releases the profile's lock. Unlocking a profile that is not locked
// is a no-op.
func (pl *ProfileLock) Unlock(id uuid.UUID) {
	pl.mu.Lock()
	m, ok := pl.locks[id]
	pl.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-m.sem:
		pl.release(id, m)
	default:
	}
}

// tryLock attempts to acquire the lock without blocking.
func (pl *ProfileLock) tryLock(id uuid.UUID) bool {
	m := pl.acquire(id)
	select {
	case m.sem <- struct{}{}:
		return true
	default:
		pl.release(id, m)
		return false
	}
}

// WithLock runs fn while holding the profile's lock. A timeout of zero waits
// until ctx is done; otherwise waiting longer than timeout yields ErrLockTimeout.
func (pl *ProfileLock) WithLock(ctx context.Context, id uuid.UUID, timeout time.Duration, fn func() error) error {
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := pl.Lock(waitCtx, id); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLockTimeout
	}
	defer pl.Unlock(id)

	return fn()
}

// isLocked reports whether the profile's lock is currently held.
// This is a point-in-time check.
func (pl *ProfileLock) isLocked(id uuid.UUID) bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	m, ok := pl.locks[id]
	return ok && len(m.sem) == 1
}

// Len returns the number of profiles with a live lock entry.
func (pl *ProfileLock) Len() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return len(pl.locks)
}
