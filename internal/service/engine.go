package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"shadowrank/internal/metrics"
	"shadowrank/internal/model"
	"shadowrank/internal/pkg/calendar"
	"shadowrank/internal/pkg/lock"
	"shadowrank/internal/progression"
	"shadowrank/internal/repository"
)

// EngineConfig tunes the completion engine.
type EngineConfig struct {
	Levels          *progression.LevelTable
	Ranks           *progression.RankClassifier
	DefaultLocation *time.Location
	// RetryAttempts bounds how often a completion is attempted when the
	// profile keeps changing underneath it.
	RetryAttempts int
	RetryDelay    time.Duration
	LockTimeout   time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// CompleteRequest asks the engine to complete QuestID for ProfileID at Now.
// The calendar day is taken in the profile's stored time zone. A zero Now
// reads the engine clock.
type CompleteRequest struct {
	ProfileID uuid.UUID
	QuestID   uuid.UUID
	Now       time.Time
}

// Result describes what a completion changed.
type Result struct {
	QuestID              uuid.UUID             `json:"quest_id"`
	Day                  calendar.Date         `json:"day"`
	XPAwarded            int64                 `json:"xp_awarded"`
	OldXP                int64                 `json:"old_xp"`
	NewXP                int64                 `json:"new_xp"`
	LeveledUp            bool                  `json:"leveled_up"`
	OldLevel             int64                 `json:"old_level"`
	NewLevel             int64                 `json:"new_level"`
	Progress             progression.LevelInfo `json:"progress"`
	RankChanged          bool                  `json:"rank_changed"`
	OldRank              model.Rank            `json:"old_rank"`
	NewRank              model.Rank            `json:"new_rank"`
	NewStreak            int                   `json:"new_streak"`
	TotalQuestsCompleted int64                 `json:"total_quests_completed"`
}

// Engine awards XP for quest completions. It holds no per-request state; the
// ledger key in the store is what keeps a quest from paying out twice.
type Engine struct {
	store       repository.Store
	levels      *progression.LevelTable
	ranks       *progression.RankClassifier
	location    *time.Location
	zones       sync.Map // zone name -> *time.Location
	locks       *lock.ProfileLock
	lockTimeout time.Duration
	retrier     retry.Retry[*Result]
	now         func() time.Time
}

// NewEngine creates a new Engine instance.
func NewEngine(store repository.Store, cfg EngineConfig) *Engine {
	loc := cfg.DefaultLocation
	if loc == nil {
		loc = time.UTC
	}
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 3
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 10 * time.Millisecond
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		store:       store,
		levels:      cfg.Levels,
		ranks:       cfg.Ranks,
		location:    loc,
		locks:       lock.NewProfileLock(),
		lockTimeout: cfg.LockTimeout,
		retrier: retry.New[*Result](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  delay,
			MaxDelay:      delay * 10,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable: func(err error) bool {
				return errors.Is(err, ErrPersistenceConflict)
			},
		}),
		now: clock,
	}
}

// Levels returns the engine's level table.
func (e *Engine) Levels() *progression.LevelTable { return e.levels }

// Ranks returns the engine's rank classifier.
func (e *Engine) Ranks() *progression.RankClassifier { return e.ranks }

// Location returns the default time zone.
func (e *Engine) Location() *time.Location { return e.location }

// ActiveLocks returns how many profiles currently hold or wait on a lock.
func (e *Engine) ActiveLocks() int { return e.locks.Len() }

// Now reads the engine's clock.
func (e *Engine) Now() time.Time { return e.now() }

// LocationOf returns the zone that decides p's calendar day. Profiles without
// a zone, or with one this host cannot load, use the default.
func (e *Engine) LocationOf(p *model.Profile) *time.Location {
	if p == nil || p.Timezone == "" {
		return e.location
	}
	if loc, ok := e.zones.Load(p.Timezone); ok {
		return loc.(*time.Location)
	}
	loc, err := LoadZone(p.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("profile_id", p.ID.String()).Msg("Stored time zone unusable, using default")
		return e.location
	}
	e.zones.Store(p.Timezone, loc)
	return loc
}

// TodayFor returns the calendar day of now for p. A zero now reads the clock.
func (e *Engine) TodayFor(p *model.Profile, now time.Time) calendar.Date {
	if now.IsZero() {
		now = e.now()
	}
	return calendar.DayOf(now, e.LocationOf(p))
}

// CompleteQuest records a completion and applies its XP, level, rank and
// streak effects atomically. Completing a quest twice in the same period
// fails with ErrAlreadyCompletedToday and changes nothing.
func (e *Engine) CompleteQuest(ctx context.Context, req CompleteRequest) (*Result, error) {
	now := req.Now
	if now.IsZero() {
		now = e.now()
	}

	var res *Result
	err := e.locks.WithLock(ctx, req.ProfileID, e.lockTimeout, func() error {
		var err error
		res, err = e.completeWithRetry(ctx, req.ProfileID, req.QuestID, now)
		return err
	})
	err = lockErr("complete quest", err)

	e.observe(req, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SetTimezone moves the profile to zone ("" restores the default). The ledger
// is keyed by the hunter's day, so a move that changes the current day is
// refused while there are completions on or after the earlier of the two days.
func (e *Engine) SetTimezone(ctx context.Context, profileID uuid.UUID, zone string) (*model.Profile, error) {
	zone = strings.TrimSpace(zone)
	loc, err := LoadZone(zone)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = e.location
	}

	var out *model.Profile
	err = e.locks.WithLock(ctx, profileID, e.lockTimeout, func() error {
		return e.store.InTx(ctx, func(tx repository.Tx) error {
			p, err := tx.GetProfile(ctx, profileID)
			if err != nil {
				return err
			}
			if p.Timezone != zone {
				if err := e.checkZoneMove(p, loc); err != nil {
					return err
				}
				if err := tx.UpdateTimezone(ctx, p.ID, zone, p.XP); err != nil {
					return err
				}
				p.Timezone = zone
			}
			out = p
			return nil
		})
	})
	if err := lockErr("failed to set timezone", err); err != nil {
		return nil, storeErr("failed to set timezone", err)
	}

	log.Info().Str("profile_id", profileID.String()).Str("timezone", zone).Msg("Time zone updated")
	return out, nil
}

func (e *Engine) checkZoneMove(p *model.Profile, to *time.Location) error {
	if p.LastActiveDate == nil {
		return nil
	}
	now := e.now()
	from := e.TodayFor(p, now)
	next := calendar.DayOf(now, to)
	if from == next {
		return nil
	}
	earlier := from
	if next.Before(earlier) {
		earlier = next
	}
	if p.LastActiveDate.Before(earlier) {
		return nil
	}
	return fmt.Errorf("%w: quests completed on %s, change the time zone on a later day",
		ErrInvalidTimeOrder, *p.LastActiveDate)
}

// lockErr maps a lock wait timeout to a persistence conflict and a context
// error while waiting to an unavailable store.
func lockErr(op string, err error) error {
	switch {
	case errors.Is(err, lock.ErrLockTimeout):
		return fmt.Errorf("%w: %w", ErrPersistenceConflict, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return storeErr(op, err)
	}
	return err
}

// LoadZone validates an IANA zone name. An empty name yields a nil location.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	if name == "Local" || len(name) > 64 {
		return nil, fmt.Errorf("%w: unknown time zone %q", ErrInvalidInput, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown time zone %q", ErrInvalidInput, name)
	}
	return loc, nil
}

func (e *Engine) completeWithRetry(ctx context.Context, profileID, questID uuid.UUID, now time.Time) (*Result, error) {
	var (
		attempt int
		lastErr error
	)
	res, err := e.retrier.Do(ctx, func(ctx context.Context) (*Result, error) {
		attempt++
		if attempt > 1 {
			metrics.ConflictRetriesTotal.Inc()
			log.Debug().
				Str("profile_id", profileID.String()).
				Str("quest_id", questID.String()).
				Int("attempt", attempt).
				Msg("Retrying completion after concurrent update")
		}
		r, err := e.completeOnce(ctx, profileID, questID, now)
		lastErr = err
		return r, err
	})
	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, storeErr("complete quest", err)
	}
	return res, nil
}

// completeOnce runs one attempt: profile read, ledger insert and conditional
// profile update in a single transaction. The day comes from the zone read in
// this attempt, and the update only lands if that zone is still current.
func (e *Engine) completeOnce(ctx context.Context, profileID, questID uuid.UUID, now time.Time) (*Result, error) {
	var res *Result
	err := e.store.InTx(ctx, func(tx repository.Tx) error {
		quest, err := tx.GetQuest(ctx, questID)
		if err != nil {
			return err
		}
		if quest.ProfileID != profileID {
			return ErrNotOwner
		}

		profile, err := tx.GetProfile(ctx, profileID)
		if err != nil {
			return err
		}
		expectedXP := profile.XP
		day := e.TodayFor(profile, now)

		if err := tx.InsertCompletion(ctx, model.NewCompletion(quest, profileID, day)); err != nil {
			return err
		}

		r, err := e.Apply(profile, quest, day)
		if err != nil {
			return err
		}
		if err := tx.UpdateProgress(ctx, profile, expectedXP); err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, storeErr("complete quest", err)
	}
	return res, nil
}

// Apply computes the effect of completing quest on day and writes it into
// profile. profile is left untouched on error.
func (e *Engine) Apply(profile *model.Profile, quest *model.Quest, day calendar.Date) (*Result, error) {
	streak, lastActive, err := progression.NextStreak(profile.LastActiveDate, day, profile.StreakCount)
	if err != nil {
		return nil, err
	}

	oldXP := profile.XP
	newXP := oldXP + quest.XPReward
	if quest.XPReward > math.MaxInt64-oldXP {
		newXP = math.MaxInt64
	}

	oldLevel := e.levels.LevelOf(oldXP).Level
	info := e.levels.LevelOf(newXP)
	oldRank := e.ranks.RankOf(oldLevel)
	newRank := e.ranks.RankOf(info.Level)

	profile.XP = newXP
	profile.Level = info.Level
	profile.HunterRank = newRank
	profile.StreakCount = streak
	profile.LastActiveDate = &lastActive
	profile.TotalQuestsCompleted++

	return &Result{
		QuestID:              quest.ID,
		Day:                  day,
		XPAwarded:            newXP - oldXP,
		OldXP:                oldXP,
		NewXP:                newXP,
		LeveledUp:            info.Level > oldLevel,
		OldLevel:             oldLevel,
		NewLevel:             info.Level,
		Progress:             info,
		RankChanged:          newRank != oldRank,
		OldRank:              oldRank,
		NewRank:              newRank,
		NewStreak:            streak,
		TotalQuestsCompleted: profile.TotalQuestsCompleted,
	}, nil
}

func (e *Engine) observe(req CompleteRequest, res *Result, err error) {
	logger := log.With().
		Str("profile_id", req.ProfileID.String()).
		Str("quest_id", req.QuestID.String()).
		Logger()

	if err == nil {
		metrics.CompletionsTotal.WithLabelValues(metrics.OutcomeAwarded).Inc()
		metrics.XPAwardedTotal.Add(float64(res.XPAwarded))
		if res.LeveledUp {
			metrics.LevelUpsTotal.Inc()
		}
		if res.RankChanged {
			metrics.RankUpsTotal.WithLabelValues(string(res.NewRank)).Inc()
		}
		logger.Info().
			Str("day", res.Day.String()).
			Int64("xp_awarded", res.XPAwarded).
			Int64("new_xp", res.NewXP).
			Bool("leveled_up", res.LeveledUp).
			Int64("level", res.NewLevel).
			Str("rank", string(res.NewRank)).
			Int("streak", res.NewStreak).
			Msg("Quest completed")
		return
	}

	switch kind := KindOf(err); kind {
	case KindAlreadyCompleted:
		metrics.CompletionsTotal.WithLabelValues(metrics.OutcomeAlreadyCompleted).Inc()
		logger.Debug().Msg("Quest already completed for this period")
	case KindQuestNotFound, KindNotOwner, KindInvalidTimeOrder, KindProfileNotFound:
		metrics.CompletionsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		logger.Info().Str("kind", string(kind)).Msg("Completion rejected")
	case KindPersistenceConflict:
		metrics.CompletionsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
		logger.Warn().Err(err).Msg("Completion gave up after concurrent updates")
	case KindStoreUnavailable:
		metrics.CompletionsTotal.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		logger.Error().Err(err).Msg("Store unavailable during completion")
	default:
		metrics.CompletionsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		logger.Error().Err(err).Msg("Completion failed")
	}
}
