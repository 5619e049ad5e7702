package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"shadowrank/internal/model"
	"shadowrank/internal/pkg/calendar"
	"shadowrank/internal/progression"
	"shadowrank/internal/repository"
	"shadowrank/internal/repository/memstore"
)

func testLevels(t testing.TB) *progression.LevelTable {
	levels, err := progression.NewLevelTable(100, 50)
	require.NoError(t, err)
	return levels
}

func testRanks(t testing.TB, bps ...progression.Breakpoint) *progression.RankClassifier {
	if len(bps) == 0 {
		bps = progression.DefaultBreakpoints
	}
	ranks, err := progression.NewRankClassifier(bps)
	require.NoError(t, err)
	return ranks
}

func newTestEngine(t testing.TB, store repository.Store, bps ...progression.Breakpoint) *Engine {
	return NewEngine(store, EngineConfig{
		Levels:        testLevels(t),
		Ranks:         testRanks(t, bps...),
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		LockTimeout:   5 * time.Second,
	})
}

func seedProfile(t testing.TB, store repository.ProfileStore, mutate func(p *model.Profile)) *model.Profile {
	p := &model.Profile{
		ID:         uuid.New(),
		Username:   "hunter_" + uuid.NewString()[:8],
		Level:      1,
		HunterRank: model.RankE,
	}
	if mutate != nil {
		mutate(p)
	}
	require.NoError(t, store.CreateProfile(context.Background(), p))
	return p
}

func seedQuest(t testing.TB, store repository.QuestStore, ownerID uuid.UUID, reward int64, daily bool) *model.Quest {
	q := &model.Quest{
		ID:         uuid.New(),
		ProfileID:  ownerID,
		Title:      "Push-ups",
		Category:   model.CategoryFitness,
		Difficulty: model.RankE,
		XPReward:   reward,
		IsDaily:    daily,
	}
	require.NoError(t, store.CreateQuest(context.Background(), q))
	return q
}

func at(day calendar.Date) time.Time {
	return day.Time().Add(12 * time.Hour)
}

func TestCompleteQuest_LevelAndRankUp(t *testing.T) {
	store := memstore.New()
	engine := newTestEngine(t, store,
		progression.Breakpoint{MinLevel: 1, Rank: model.RankE},
		progression.Breakpoint{MinLevel: 2, Rank: model.RankD},
	)
	p := seedProfile(t, store, func(p *model.Profile) { p.XP = 95 })
	q := seedQuest(t, store, p.ID, 10, true)
	day := calendar.New(2024, time.January, 1)

	res, err := engine.CompleteQuest(context.Background(), CompleteRequest{
		ProfileID: p.ID, QuestID: q.ID, Now: at(day),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), res.XPAwarded)
	assert.Equal(t, int64(105), res.NewXP)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, int64(1), res.OldLevel)
	assert.Equal(t, int64(2), res.NewLevel)
	assert.Equal(t, int64(5), res.Progress.CurrentInLevel)
	assert.Equal(t, int64(150), res.Progress.NeededForNext)
	assert.Equal(t, 3, res.Progress.Percentage)
	assert.True(t, res.RankChanged)
	assert.Equal(t, model.RankE, res.OldRank)
	assert.Equal(t, model.RankD, res.NewRank)
	assert.Equal(t, 1, res.NewStreak)

	stored, err := store.GetProfile(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(105), stored.XP)
	assert.Equal(t, int64(2), stored.Level)
	assert.Equal(t, model.RankD, stored.HunterRank)
	assert.Equal(t, int64(1), stored.TotalQuestsCompleted)
	require.NotNil(t, stored.LastActiveDate)
	assert.Equal(t, day, *stored.LastActiveDate)
	assert.Equal(t, 0, engine.ActiveLocks())
}

func TestCompleteQuest_StreakAcrossDays(t *testing.T) {
	store := memstore.New()
	engine := newTestEngine(t, store)
	p := seedProfile(t, store, nil)
	q := seedQuest(t, store, p.ID, 10, true)
	ctx := context.Background()

	d1 := calendar.New(2024, time.January, 1)
	res, err := engine.CompleteQuest(ctx, CompleteRequest{ProfileID: p.ID, QuestID: q.ID, Now: at(d1)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewStreak)

	res, err = engine.CompleteQuest(ctx, CompleteRequest{ProfileID: p.ID, QuestID: q.ID, Now: at(d1.AddDays(1))})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewStreak)

	// a missed day resets the streak
	res, err = engine.CompleteQuest(ctx, CompleteRequest{ProfileID: p.ID, QuestID: q.ID, Now: at(d1.AddDays(3))})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewStreak)
	assert.Equal(t, int64(30), res.NewXP)
}

func TestCompleteQuest_SecondCompletionSameDay(t *testing.T) {
	store := memstore.New()
	engine := newTestEngine(t, store)
	p := seedProfile(t, store, nil)
	q := seedQuest(t, store, p.ID, 20, true)
	ctx := context.Background()
	now := at(calendar.New(2024, time.March, 5))

	_, err := engine.CompleteQuest(ctx, CompleteRequest{ProfileID: p.ID, QuestID: q.ID, Now: now})
	require.NoError(t, err)
	before, err := store.GetProfile(ctx, p.ID)
	require.NoError(t, err)

	_, err = engine.CompleteQuest(ctx, CompleteRequest{ProfileID: p.ID, QuestID: q.ID, Now: now.Add(time.Hour)})
	require.ErrorIs(t, err, ErrAlreadyCompletedToday)
	assert.Equal(t, KindAlreadyCompleted, KindOf(err))

	after, err := store.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCompleteQuest_OneTimeQuestOnlyOnce(t *testing.T) {
	store := memstore.New()
	engine := newTestEngine(t, store)
	p := seedProfile(t, store, nil)
	q := seedQuest(t, store, p.ID, 50, false)
	ctx := context.Background()
	day := calendar.New(2024, time.June, 1)

	_, err := engine.CompleteQuest(ctx, CompleteRequest{ProfileID: p.ID, QuestID: q.ID, Now: at(day)})
	require.NoError(t, err)

	_, err = engine.CompleteQuest(ctx, CompleteRequest{ProfileID: p.ID, QuestID: q.ID, Now: at(day.AddDays(7))})
	assert.ErrorIs(t, err, ErrAlreadyCompletedToday)
}

func TestCompleteQuest_Rejections(t *testing.T) {
	store := memstore.New()
	engine := newTestEngine(t, store)
	owner := seedProfile(t, store, nil)
	other := seedProfile(t, store, nil)
	q := seedQuest(t, store, owner.ID, 10, true)
	ctx := context.Background()
	now := at(calendar.New(2024, time.January, 10))

	t.Run("unknown quest", func(t *testing.T) {
		_, err := engine.CompleteQuest(ctx, CompleteRequest{ProfileID: owner.ID, QuestID: uuid.New(), Now: now})
		require.ErrorIs(t, err, ErrQuestNotFound)
		assert.Equal(t, KindQuestNotFound, KindOf(err))
	})

	t.Run("foreign quest", func(t *testing.T) {
		_, err := engine.CompleteQuest(ctx, CompleteRequest{ProfileID: other.ID, QuestID: q.ID, Now: now})
		require.ErrorIs(t, err, ErrNotOwner)
		assert.Equal(t, KindNotOwner, KindOf(err))

		done, err := store.CompletedQuestIDs(ctx, other.ID, calendar.DayOf(now, time.UTC))
		require.NoError(t, err)
		assert.Empty(t, done)
	})

	t.Run("day before last activity", func(t *testing.T) {
		_, err := engine.CompleteQuest(ctx, CompleteRequest{ProfileID: owner.ID, QuestID: q.ID, Now: now})
		require.NoError(t, err)
		before, err := store.GetProfile(ctx, owner.ID)
		require.NoError(t, err)

		_, err = engine.CompleteQuest(ctx, CompleteRequest{ProfileID: owner.ID, QuestID: q.ID, Now: now.AddDate(0, 0, -3)})
		require.ErrorIs(t, err, ErrInvalidTimeOrder)
		assert.Equal(t, KindInvalidTimeOrder, KindOf(err))

		after, err := store.GetProfile(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		// the ledger insert was rolled back with the rest
		done, err := store.CompletedQuestIDs(ctx, owner.ID, calendar.DayOf(now.AddDate(0, 0, -3), time.UTC))
		require.NoError(t, err)
		assert.False(t, done[q.ID])
	})
}

func TestCompleteQuest_TimeZoneDecidesDay(t *testing.T) {
	store := memstore.New()
	engine := newTestEngine(t, store)
	p := seedProfile(t, store, func(p *model.Profile) { p.Timezone = "Asia/Tokyo" })
	q := seedQuest(t, store, p.ID, 10, true)

	// 2024-01-01 20:00 UTC is already 2024-01-02 in Tokyo.
	now := time.Date(2024, time.January, 1, 20, 0, 0, 0, time.UTC)
	res, err := engine.CompleteQuest(context.Background(), CompleteRequest{
		ProfileID: p.ID, QuestID: q.ID, Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, calendar.New(2024, time.January, 2), res.Day)

	_, err = engine.CompleteQuest(context.Background(), CompleteRequest{
		ProfileID: p.ID, QuestID: q.ID, Now: now,
	})
	assert.ErrorIs(t, err, ErrAlreadyCompletedToday)
}

func TestLocationOf(t *testing.T) {
	engine := newTestEngine(t, memstore.New())
	assert.Equal(t, time.UTC, engine.LocationOf(nil))
	assert.Equal(t, time.UTC, engine.LocationOf(&model.Profile{}))
	assert.Equal(t, "Asia/Tokyo", engine.LocationOf(&model.Profile{Timezone: "Asia/Tokyo"}).String())
	// an unusable stored zone falls back to the default
	assert.Equal(t, time.UTC, engine.LocationOf(&model.Profile{Timezone: "Mars/Olympus"}))
}

func TestLoadZone(t *testing.T) {
	loc, err := LoadZone("")
	require.NoError(t, err)
	assert.Nil(t, loc)

	loc, err = LoadZone(" Europe/Berlin ")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	for _, bad := range []string{"Local", "Mars/Olympus", "../etc/passwd"} {
		_, err := LoadZone(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

// zoneClock is an engine clock the test can move.
type zoneClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *zoneClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *zoneClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newClockedEngine(t testing.TB, store repository.Store, clock *zoneClock) *Engine {
	return NewEngine(store, EngineConfig{
		Levels:        testLevels(t),
		Ranks:         testRanks(t),
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		LockTimeout:   5 * time.Second,
		Clock:         clock.Now,
	})
}

func TestSetTimezone_CannotReopenToday(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	clock := &zoneClock{now: time.Date(2024, time.January, 1, 23, 0, 0, 0, time.UTC)}
	engine := newClockedEngine(t, store, clock)
	p := seedProfile(t, store, nil)
	q := seedQuest(t, store, p.ID, 10, true)

	res, err := engine.CompleteQuest(ctx, CompleteRequest{ProfileID: p.ID, QuestID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, calendar.New(2024, time.January, 1), res.Day)

	// Kiritimati is already on 2024-01-02: moving there would reopen the quest.
	clock.Set(clock.Now().Add(time.Second))
	_, err = engine.SetTimezone(ctx, p.ID, "Pacific/Kiritimati")
	require.ErrorIs(t, err, ErrInvalidTimeOrder)
	assert.Equal(t, KindInvalidTimeOrder, KindOf(err))

	_, err = engine.CompleteQuest(ctx, CompleteRequest{ProfileID: p.ID, QuestID: q.ID})
	assert.ErrorIs(t, err, ErrAlreadyCompletedToday)

	stored, err := store.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "", stored.Timezone)
	assert.Equal(t, int64(10), stored.XP)
	assert.Equal(t, 1, stored.StreakCount)
	assert.Equal(t, int64(1), stored.TotalQuestsCompleted)
}

func TestSetTimezone_MovesOnLaterDay(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	clock := &zoneClock{now: time.Date(2024, time.January, 1, 23, 0, 0, 0, time.UTC)}
	engine := newClockedEngine(t, store, clock)
	p := seedProfile(t, store, nil)
	q := seedQuest(t, store, p.ID, 10, true)

	_, err := engine.CompleteQuest(ctx, CompleteRequest{ProfileID: p.ID, QuestID: q.ID})
	require.NoError(t, err)

	// 2024-01-02 12:00 UTC: UTC is on the 2nd, Kiritimati on the 3rd, and the
	// last completion was on the 1st.
	clock.Set(time.Date(2024, time.January, 2, 12, 0, 0, 0, time.UTC))
	moved, err := engine.SetTimezone(ctx, p.ID, "Pacific/Kiritimati")
	require.NoError(t, err)
	assert.Equal(t, "Pacific/Kiritimati", moved.Timezone)

	res, err := engine.CompleteQuest(ctx, CompleteRequest{ProfileID: p.ID, QuestID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, calendar.New(2024, time.January, 3), res.Day)
	assert.Equal(t, int64(20), res.NewXP)

	// moving back to UTC would land on the 2nd, before the last completion
	_, err = engine.SetTimezone(ctx, p.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTimeOrder)

	// a zone on the same calendar day is fine
	moved, err = engine.SetTimezone(ctx, p.ID, "Pacific/Tongatapu")
	require.NoError(t, err)
	assert.Equal(t, "Pacific/Tongatapu", moved.Timezone)
	assert.Equal(t, int64(20), moved.XP)
}

func TestSetTimezone_Rejections(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	engine := newTestEngine(t, store)
	p := seedProfile(t, store, nil)

	_, err := engine.SetTimezone(ctx, p.ID, "Mars/Olympus")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = engine.SetTimezone(ctx, uuid.New(), "Europe/Berlin")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	// no completions yet, so any move is allowed
	moved, err := engine.SetTimezone(ctx, p.ID, " Europe/Berlin ")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", moved.Timezone)
}

func TestApply_SaturatesXP(t *testing.T) {
	engine := newTestEngine(t, memstore.New())
	p := &model.Profile{XP: math.MaxInt64 - 5, Level: 1, HunterRank: model.RankE}
	q := &model.Quest{ID: uuid.New(), XPReward: 100, IsDaily: true}

	res, err := engine.Apply(p, q, calendar.New(2024, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), p.XP)
	assert.Equal(t, int64(5), res.XPAwarded)
	assert.Equal(t, engine.Levels().LevelOf(math.MaxInt64).Level, p.Level)
	assert.Equal(t, model.RankS, p.HunterRank)
}

func TestApply_InvalidTimeOrderLeavesProfile(t *testing.T) {
	engine := newTestEngine(t, memstore.New())
	last := calendar.New(2024, time.May, 10)
	p := &model.Profile{XP: 40, Level: 1, HunterRank: model.RankE, StreakCount: 4, LastActiveDate: &last}
	snapshot := *p
	q := &model.Quest{ID: uuid.New(), XPReward: 10, IsDaily: true}

	_, err := engine.Apply(p, q, last.AddDays(-1))
	require.ErrorIs(t, err, ErrInvalidTimeOrder)
	assert.Equal(t, snapshot, *p)
}

// TestApply_DerivedFieldsProperty checks that level and rank always follow XP.
func TestApply_DerivedFieldsProperty(t *testing.T) {
	engine := newTestEngine(t, memstore.New())

	rapid.Check(t, func(rt *rapid.T) {
		xp := rapid.Int64Range(0, 1_000_000).Draw(rt, "xp")
		reward := rapid.Int64Range(1, 10_000).Draw(rt, "reward")
		p := &model.Profile{XP: xp}
		p.Level = engine.Levels().LevelOf(xp).Level
		p.HunterRank = engine.Ranks().RankOf(p.Level)
		q := &model.Quest{ID: uuid.New(), XPReward: reward, IsDaily: true}

		res, err := engine.Apply(p, q, calendar.New(2024, time.January, 1))
		if err != nil {
			rt.Fatalf("apply failed: %v", err)
		}
		if p.XP != xp+reward {
			rt.Fatalf("xp = %d, want %d", p.XP, xp+reward)
		}
		if want := engine.Levels().LevelOf(p.XP).Level; p.Level != want {
			rt.Fatalf("level = %d, want %d", p.Level, want)
		}
		if want := engine.Ranks().RankOf(p.Level); p.HunterRank != want {
			rt.Fatalf("rank = %s, want %s", p.HunterRank, want)
		}
		if res.LeveledUp != (res.NewLevel > res.OldLevel) {
			rt.Fatalf("leveled_up = %v for %d -> %d", res.LeveledUp, res.OldLevel, res.NewLevel)
		}
		if res.NewLevel < res.OldLevel || res.NewRank.Less(res.OldRank) {
			rt.Fatalf("progress went backwards: %+v", res)
		}
	})
}

// TestCompleteQuest_ConcurrentSameQuestProperty fires the same completion from
// many goroutines: exactly one must win.
func TestCompleteQuest_ConcurrentSameQuestProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := memstore.New()
		engine := newTestEngine(t, store)
		p := seedProfile(t, store, nil)
		reward := rapid.Int64Range(1, 500).Draw(rt, "reward")
		q := seedQuest(t, store, p.ID, reward, rapid.Bool().Draw(rt, "daily"))
		workers := rapid.IntRange(2, 16).Draw(rt, "workers")
		now := at(calendar.New(2024, time.February, 29))

		var wins, dupes, other atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := engine.CompleteQuest(context.Background(), CompleteRequest{ProfileID: p.ID, QuestID: q.ID, Now: now})
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, ErrAlreadyCompletedToday):
					dupes.Add(1)
				default:
					other.Add(1)
				}
			}()
		}
		wg.Wait()

		if wins.Load() != 1 || dupes.Load() != int32(workers-1) || other.Load() != 0 {
			rt.Fatalf("wins=%d dupes=%d other=%d for %d workers", wins.Load(), dupes.Load(), other.Load(), workers)
		}
		stored, err := store.GetProfile(context.Background(), p.ID)
		if err != nil {
			rt.Fatalf("get profile: %v", err)
		}
		if stored.XP != reward || stored.TotalQuestsCompleted != 1 {
			rt.Fatalf("xp=%d total=%d, want %d and 1", stored.XP, stored.TotalQuestsCompleted, reward)
		}
	})
}

// TestCompleteQuest_ConcurrentDistinctQuestsProperty checks that no XP is lost
// when different quests of one profile complete at the same time.
func TestCompleteQuest_ConcurrentDistinctQuestsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := memstore.New()
		engine := newTestEngine(t, store)
		p := seedProfile(t, store, nil)
		n := rapid.IntRange(2, 12).Draw(rt, "quests")
		rewards := rapid.SliceOfN(rapid.Int64Range(1, 1000), n, n).Draw(rt, "rewards")
		now := at(calendar.New(2024, time.April, 1))

		var total int64
		quests := make([]*model.Quest, n)
		for i, r := range rewards {
			quests[i] = seedQuest(t, store, p.ID, r, true)
			total += r
		}

		errs := make(chan error, n)
		var wg sync.WaitGroup
		for _, q := range quests {
			wg.Add(1)
			go func(q *model.Quest) {
				defer wg.Done()
				_, err := engine.CompleteQuest(context.Background(), CompleteRequest{ProfileID: p.ID, QuestID: q.ID, Now: now})
				errs <- err
			}(q)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				rt.Fatalf("completion failed: %v", err)
			}
		}

		stored, err := store.GetProfile(context.Background(), p.ID)
		if err != nil {
			rt.Fatalf("get profile: %v", err)
		}
		if stored.XP != total || stored.TotalQuestsCompleted != int64(n) {
			rt.Fatalf("xp=%d total=%d, want %d and %d", stored.XP, stored.TotalQuestsCompleted, total, n)
		}
		if stored.StreakCount != 1 {
			rt.Fatalf("streak = %d, want 1", stored.StreakCount)
		}
	})
}

// conflictStore makes the first failures conditional profile updates lose.
type conflictStore struct {
	*memstore.Store
	failures atomic.Int32
}

func (s *conflictStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Store.InTx(ctx, func(tx repository.Tx) error {
		return fn(&conflictTx{Tx: tx, store: s})
	})
}

type conflictTx struct {
	repository.Tx
	store *conflictStore
}

func (t *conflictTx) UpdateProgress(ctx context.Context, p *model.Profile, expectedXP int64) error {
	if t.store.failures.Add(-1) >= 0 {
		return repository.ErrConflict
	}
	return t.Tx.UpdateProgress(ctx, p, expectedXP)
}

func TestCompleteQuest_RetriesConflicts(t *testing.T) {
	store := &conflictStore{Store: memstore.New()}
	store.failures.Store(2)
	engine := newTestEngine(t, store)
	p := seedProfile(t, store, nil)
	q := seedQuest(t, store, p.ID, 25, true)

	res, err := engine.CompleteQuest(context.Background(), CompleteRequest{
		ProfileID: p.ID, QuestID: q.ID, Now: at(calendar.New(2024, time.July, 4)),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.NewXP)

	stored, err := store.GetProfile(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), stored.XP)
}

func TestCompleteQuest_GivesUpAfterRetries(t *testing.T) {
	store := &conflictStore{Store: memstore.New()}
	store.failures.Store(100)
	engine := newTestEngine(t, store)
	p := seedProfile(t, store, nil)
	q := seedQuest(t, store, p.ID, 25, true)
	day := calendar.New(2024, time.July, 4)

	_, err := engine.CompleteQuest(context.Background(), CompleteRequest{ProfileID: p.ID, QuestID: q.ID, Now: at(day)})
	require.ErrorIs(t, err, ErrPersistenceConflict)
	assert.True(t, KindOf(err).Retryable())

	done, err := store.CompletedQuestIDs(context.Background(), p.ID, day)
	require.NoError(t, err)
	assert.Empty(t, done)
}

func TestCompleteQuest_CancelledContext(t *testing.T) {
	store := memstore.New()
	engine := newTestEngine(t, store)
	p := seedProfile(t, store, nil)
	q := seedQuest(t, store, p.ID, 25, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.CompleteQuest(ctx, CompleteRequest{ProfileID: p.ID, QuestID: q.ID, Now: time.Now()})
	require.Error(t, err)
	assert.Equal(t, KindStoreUnavailable, KindOf(err))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{ErrQuestNotFound, KindQuestNotFound},
		{storeErr("op", repository.ErrAlreadyRecorded), KindAlreadyCompleted},
		{storeErr("op", repository.ErrConflict), KindPersistenceConflict},
		{storeErr("op", repository.ErrUnavailable), KindStoreUnavailable},
		{storeErr("op", repository.ErrUsernameTaken), KindUsernameTaken},
		{storeErr("op", context.DeadlineExceeded), KindStoreUnavailable},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
	assert.False(t, KindAlreadyCompleted.Retryable())
	assert.True(t, KindStoreUnavailable.Retryable())
}
