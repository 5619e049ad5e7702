package service

import (
	"context"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"

	"shadowrank/internal/model"
	"shadowrank/internal/repository"
)

var medals = map[int]string{1: "🥇", 2: "🥈", 3: "🥉"}

// LeaderboardConfig bounds the leaderboard query and its cache.
type LeaderboardConfig struct {
	DefaultLimit int
	MaxLimit     int
	CacheTTL     time.Duration
	CacheSize    int
}

type cachedBoard struct {
	entries   []model.LeaderboardEntry
	fetchedAt time.Time
}

// LeaderboardService serves the top hunters by XP from a short-lived cache.
type LeaderboardService struct {
	store repository.ProfileStore
	cfg   LeaderboardConfig
	cache *lru.Cache
	mu    sync.Mutex
	now   func() time.Time
}

// NewLeaderboardService creates a new LeaderboardService instance.
func NewLeaderboardService(store repository.ProfileStore, cfg LeaderboardConfig) *LeaderboardService {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = min(50, cfg.MaxLimit)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 16
	}
	cache, _ := lru.New(cfg.CacheSize)
	return &LeaderboardService{store: store, cfg: cfg, cache: cache, now: time.Now}
}

// ClampLimit applies the default and maximum page size.
func (s *LeaderboardService) ClampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	return min(limit, s.cfg.MaxLimit)
}

// Top returns the top hunters with 1-based positions and medals for the podium.
// The slice is the caller's own; cached pages are never handed out.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	limit = s.ClampLimit(limit)

	if cached, ok := s.cache.Get(limit); ok {
		board := cached.(cachedBoard)
		if s.cfg.CacheTTL > 0 && s.now().Sub(board.fetchedAt) < s.cfg.CacheTTL {
			return slices.Clone(board.entries), nil
		}
	}

	// one refresh at a time; the rest wait and reuse it
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache.Get(limit); ok {
		board := cached.(cachedBoard)
		if s.cfg.CacheTTL > 0 && s.now().Sub(board.fetchedAt) < s.cfg.CacheTTL {
			return slices.Clone(board.entries), nil
		}
	}

	profiles, err := s.store.TopProfiles(ctx, limit)
	if err != nil {
		return nil, storeErr("failed to load leaderboard", err)
	}

	entries := make([]model.LeaderboardEntry, len(profiles))
	for i, p := range profiles {
		pos := i + 1
		entries[i] = model.LeaderboardEntry{
			Position:    pos,
			Medal:       medals[pos],
			ProfileID:   p.ID,
			Name:        p.Name(),
			XP:          p.XP,
			Level:       p.Level,
			HunterRank:  p.HunterRank,
			RankColor:   p.HunterRank.Color(),
			StreakCount: p.StreakCount,
		}
	}

	s.cache.Add(limit, cachedBoard{entries: entries, fetchedAt: s.now()})
	log.Debug().Int("limit", limit).Int("entries", len(entries)).Msg("Leaderboard refreshed")
	return slices.Clone(entries), nil
}

// Invalidate drops every cached page.
func (s *LeaderboardService) Invalidate() {
	s.cache.Purge()
}
