// Property-based tests for per-profile locking.
package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func drawProfileID(t *rapid.T, label string) uuid.UUID {
	var id uuid.UUID
	copy(id[:], rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, label))
	return id
}

// TestSerialisedReadModifyWriteProperty tests that locked read-modify-write
// cycles on one profile produce the sequential result.
func TestSerialisedReadModifyWriteProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialXP := rapid.Int64Range(0, 100000).Draw(t, "initialXP")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		rewards := make([]int64, numOps)
		expected := initialXP
		for i := range rewards {
			rewards[i] = rapid.Int64Range(1, 500).Draw(t, "reward")
			expected += rewards[i]
		}

		id := drawProfileID(t, "profileID")
		pl := NewProfileLock()
		xp := initialXP

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, reward := range rewards {
			go func(reward int64) {
				defer wg.Done()
				if err := pl.Lock(context.Background(), id); err != nil {
					return
				}
				defer pl.Unlock(id)
				current := xp
				xp = current + reward
			}(reward)
		}
		wg.Wait()

		if xp != expected {
			t.Fatalf("xp mismatch: expected %d, got %d (initial=%d, numOps=%d)",
				expected, xp, initialXP, numOps)
		}
		if pl.Len() != 0 {
			t.Fatalf("expected no live lock entries, got %d", pl.Len())
		}
	})
}

// TestWithLockSerialisesProperty tests that WithLock serialises its callbacks.
func TestWithLockSerialisesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")
		amount := rapid.Int64Range(1, 100).Draw(t, "amount")
		id := drawProfileID(t, "profileID")

		pl := NewProfileLock()
		var total int64

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = pl.WithLock(context.Background(), id, 0, func() error {
					total += amount
					return nil
				})
			}()
		}
		wg.Wait()

		if total != int64(numOps)*amount {
			t.Fatalf("total mismatch: expected %d, got %d", int64(numOps)*amount, total)
		}
	})
}

// TestIndependentProfilesProperty tests that locks for different profiles do
// not interfere with each other.
func TestIndependentProfilesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numProfiles := rapid.IntRange(2, 10).Draw(t, "numProfiles")
		opsPerProfile := rapid.IntRange(5, 20).Draw(t, "opsPerProfile")

		pl := NewProfileLock()
		ids := make([]uuid.UUID, numProfiles)
		counters := make(map[uuid.UUID]*int64, numProfiles)
		for i := range ids {
			ids[i] = uuid.New()
			counters[ids[i]] = new(int64)
		}

		var wg sync.WaitGroup
		wg.Add(numProfiles * opsPerProfile)
		for _, id := range ids {
			for j := 0; j < opsPerProfile; j++ {
				go func(id uuid.UUID) {
					defer wg.Done()
					_ = pl.Lock(context.Background(), id)
					defer pl.Unlock(id)
					*counters[id] += 10
				}(id)
			}
		}
		wg.Wait()

		for _, id := range ids {
			if *counters[id] != int64(opsPerProfile)*10 {
				t.Fatalf("profile %s: expected %d, got %d", id, opsPerProfile*10, *counters[id])
			}
		}
	})
}

// TestTryLockSingleHolderProperty tests that at most one tryLock succeeds
// while the lock is held, and the lock is free afterwards.
func TestTryLockSingleHolderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := drawProfileID(t, "profileID")
		numAttempts := rapid.IntRange(5, 20).Draw(t, "numAttempts")

		pl := NewProfileLock()
		var holding, maxHolding atomic.Int32
		var successCount atomic.Int32

		startCh := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(numAttempts)
		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				<-startCh
				if pl.tryLock(id) {
					successCount.Add(1)
					n := holding.Add(1)
					for {
						m := maxHolding.Load()
						if n <= m || maxHolding.CompareAndSwap(m, n) {
							break
						}
					}
					holding.Add(-1)
					pl.Unlock(id)
				}
			}()
		}
		close(startCh)
		wg.Wait()

		if successCount.Load() < 1 {
			t.Fatalf("at least one tryLock should succeed, got %d", successCount.Load())
		}
		if maxHolding.Load() > 1 {
			t.Fatalf("lock held by %d goroutines at once", maxHolding.Load())
		}
		if !pl.tryLock(id) {
			t.Fatal("lock should be available after all operations complete")
		}
		pl.Unlock(id)
	})
}

func TestWithLock_Timeout(t *testing.T) {
	pl := NewProfileLock()
	id := uuid.New()

	require.NoError(t, pl.Lock(context.Background(), id))
	assert.True(t, pl.isLocked(id))

	called := false
	err := pl.WithLock(context.Background(), id, 20*time.Millisecond, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, called)

	pl.Unlock(id)
	assert.False(t, pl.isLocked(id))
	assert.Equal(t, 0, pl.Len())
}

func TestLock_ContextCancelled(t *testing.T) {
	pl := NewProfileLock()
	id := uuid.New()
	require.True(t, pl.tryLock(id))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pl.Lock(ctx, id), context.Canceled)

	err := pl.WithLock(ctx, id, time.Second, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	pl.Unlock(id)
	assert.Equal(t, 0, pl.Len())
}

func TestUnlock_NotLockedIsNoop(t *testing.T) {
	pl := NewProfileLock()
	id := uuid.New()

	pl.Unlock(id)
	assert.False(t, pl.isLocked(id))
	assert.True(t, pl.tryLock(id))
	pl.Unlock(id)
}
