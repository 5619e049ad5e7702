package handler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"shadowrank/internal/model"
	"shadowrank/internal/progression"
	"shadowrank/internal/repository/memstore"
	"shadowrank/internal/service"
)

type fakeContext struct {
	tele.Context
	args    []string
	values  map[string]interface{}
	replies []string
}

func (c *fakeContext) Args() []string                    { return c.args }
func (c *fakeContext) Get(key string) interface{}        { return c.values[key] }
func (c *fakeContext) Set(key string, value interface{}) { c.values[key] = value }

func (c *fakeContext) Reply(what interface{}, _ ...interface{}) error {
	c.replies = append(c.replies, what.(string))
	return nil
}

type fixture struct {
	profile  *model.Profile
	profiles *ProfileHandler
	quests   *QuestHandler
	ranking  *RankingHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	levels, err := progression.NewLevelTable(100, 50)
	require.NoError(t, err)
	ranks, err := progression.NewRankClassifier(progression.DefaultBreakpoints)
	require.NoError(t, err)

	clock := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	engine := service.NewEngine(store, service.EngineConfig{
		Levels: levels,
		Ranks:  ranks,
		Clock:  func() time.Time { return clock },
	})
	profiles := service.NewProfileService(store, levels, ranks)
	boards := service.NewBoardService(store, profiles, engine)
	quests := service.NewQuestService(store, map[model.Rank]int64{
		model.RankE: 10, model.RankD: 20, model.RankC: 35, model.RankB: 50, model.RankA: 75, model.RankS: 100,
	})

	p, err := profiles.Register(context.Background(), "jinwoo", nil, "")
	require.NoError(t, err)

	return &fixture{
		profile:  p,
		profiles: NewProfileHandler(profiles, boards, engine),
		quests:   NewQuestHandler(quests, boards, engine),
		ranking:  NewRankingHandler(service.NewLeaderboardService(store, service.LeaderboardConfig{})),
	}
}

func (f *fixture) ctx(args ...string) *fakeContext {
	return &fakeContext{args: args, values: map[string]interface{}{ProfileKey: f.profile}}
}

func (f *fixture) call(t *testing.T, h tele.HandlerFunc, args ...string) string {
	t.Helper()
	c := f.ctx(args...)
	require.NoError(t, h(c))
	require.Len(t, c.replies, 1)
	return c.replies[0]
}

func TestQuestCommands(t *testing.T) {
	f := newFixture(t)

	reply := f.call(t, f.quests.HandleQuests)
	assert.Contains(t, reply, "empty")

	reply = f.call(t, f.quests.HandleAddDaily, "d", "Morning", "run")
	assert.Contains(t, reply, "daily quest: Morning run [D] +20 XP")
	reply = f.call(t, f.quests.HandleAddOnce, "S", "Clear", "the", "dungeon")
	assert.Contains(t, reply, "one-time quest: Clear the dungeon [S] +100 XP")

	reply = f.call(t, f.quests.HandleAddDaily, "E")
	assert.Contains(t, reply, "Usage")
	reply = f.call(t, f.quests.HandleAddDaily, "Z", "nope")
	assert.Contains(t, reply, "❌")

	reply = f.call(t, f.quests.HandleQuests)
	assert.Contains(t, reply, "1. ⬜")
	assert.Contains(t, reply, "2. ⬜")

	reply = f.call(t, f.quests.HandleDone, "2")
	assert.Contains(t, reply, "Clear the dungeon")
	assert.Contains(t, reply, "+100 XP (total 100)")
	assert.Contains(t, reply, "Level up! 1 → 2")

	// the one-time quest is gone, the daily one is now #1
	reply = f.call(t, f.quests.HandleDone, "1")
	assert.Contains(t, reply, "+20 XP (total 120)")

	reply = f.call(t, f.quests.HandleDone, "1")
	assert.Contains(t, reply, "Already done for today")

	reply = f.call(t, f.quests.HandleQuests)
	assert.Contains(t, reply, "1. ✅")
	assert.NotContains(t, reply, "2.")

	for _, args := range [][]string{nil, {"x"}, {"0"}, {"1", "2"}} {
		assert.Contains(t, f.call(t, f.quests.HandleDone, args...), "Usage", "%v", args)
	}
	assert.Contains(t, f.call(t, f.quests.HandleDone, "9"), "No quest #9")
}

func TestProfileCommands(t *testing.T) {
	f := newFixture(t)

	reply := f.call(t, f.profiles.HandleStart)
	assert.Contains(t, reply, "Welcome, hunter jinwoo")
	assert.Contains(t, reply, "E-Rank")

	f.call(t, f.quests.HandleAddDaily, "E", "Stretch")
	f.call(t, f.quests.HandleDone, "1")

	reply = f.call(t, f.profiles.HandleMe)
	assert.Contains(t, reply, "XP: 10 (10/100 to next level)")
	assert.Contains(t, reply, "Streak: 1 day(s)")
	assert.Contains(t, reply, "0 of 1 quests open today")
	assert.Contains(t, reply, "Next rank: D-Rank at level 5")
}

func TestTimezoneCommand(t *testing.T) {
	f := newFixture(t)

	assert.Contains(t, f.call(t, f.profiles.HandleTimezone), "Your day follows UTC")
	assert.Contains(t, f.call(t, f.profiles.HandleTimezone, "Asia/Tokyo", "extra"), "Usage")
	assert.Contains(t, f.call(t, f.profiles.HandleTimezone, "Mars/Olympus"), "unknown time zone")

	f.call(t, f.quests.HandleAddDaily, "E", "Stretch")
	assert.Contains(t, f.call(t, f.quests.HandleDone, "1"), "+10 XP")

	// 09:00 UTC is still the previous day in Pago Pago
	reply := f.call(t, f.profiles.HandleTimezone, "Pacific/Pago_Pago")
	assert.Contains(t, reply, "Change your time zone tomorrow")

	// same calendar day, so the move is harmless
	reply = f.call(t, f.profiles.HandleTimezone, "Asia/Tokyo")
	assert.Contains(t, reply, "Time zone set to Asia/Tokyo")
}

func TestHandlersWithoutProfile(t *testing.T) {
	f := newFixture(t)
	c := &fakeContext{values: map[string]interface{}{}}
	for _, h := range []tele.HandlerFunc{f.profiles.HandleStart, f.profiles.HandleMe, f.profiles.HandleTimezone, f.quests.HandleQuests, f.quests.HandleDone} {
		require.NoError(t, h(c))
	}
	assert.Empty(t, c.replies)
}

func TestRankingCommand(t *testing.T) {
	f := newFixture(t)
	reply := f.call(t, f.ranking.HandleTop)
	assert.Contains(t, reply, "🥇 jinwoo [E] Lv.1 · 0 XP")
}

func TestProgressBar(t *testing.T) {
	tests := map[int]string{
		-5:  "▱▱▱▱▱▱▱▱▱▱",
		0:   "▱▱▱▱▱▱▱▱▱▱",
		35:  "▰▰▰▱▱▱▱▱▱▱",
		100: "▰▰▰▰▰▰▰▰▰▰",
		250: "▰▰▰▰▰▰▰▰▰▰",
	}
	for pct, want := range tests {
		assert.Equal(t, want, progressBar(pct), "pct=%d", pct)
	}
}

func TestFormatTop(t *testing.T) {
	entries := make([]model.LeaderboardEntry, 4)
	for i := range entries {
		entries[i] = model.LeaderboardEntry{
			Position:   i + 1,
			ProfileID:  uuid.New(),
			Name:       fmt.Sprintf("h%d", i),
			Level:      int64(10 - i),
			HunterRank: model.RankC,
			XP:         int64(1000 - i),
		}
	}
	entries[0].Medal = "🥇"

	out := formatTop(entries)
	lines := strings.Split(out, "\n")
	assert.Equal(t, "🏆 Top 4 hunters", lines[0])
	assert.Equal(t, "🥇 h0 [C] Lv.10 · 1000 XP", lines[2])
	assert.Equal(t, "4. h3 [C] Lv.7 · 997 XP", lines[5])
	assert.Contains(t, formatTop(nil), "No hunters")
}

func TestErrorText(t *testing.T) {
	assert.Contains(t, errorText(service.ErrAlreadyCompletedToday), "Already done")
	assert.Contains(t, errorText(fmt.Errorf("x: %w", service.ErrStoreUnavailable)), "try again")
	assert.Equal(t, "❌ title must be short", errorText(fmt.Errorf("%w: title must be short", service.ErrInvalidInput)))
	assert.Contains(t, errorText(fmt.Errorf("boom")), "Something went wrong")
}
