// Package model defines the data models for the ShadowRank progression service.
package model

import (
	"time"

	"github.com/google/uuid"

	"shadowrank/internal/pkg/calendar"
)

// Profile is a hunter's progression state. Level and HunterRank are caches of
// a pure function of XP and are only ever written together with XP.
type Profile struct {
	ID                   uuid.UUID      `db:"id" json:"id"`
	Username             string         `db:"username" json:"username"`
	DisplayName          *string        `db:"display_name" json:"display_name,omitempty"`
	TelegramID           *int64         `db:"telegram_id" json:"telegram_id,omitempty"`
	XP                   int64          `db:"xp" json:"xp"`
	Level                int64          `db:"level" json:"level"`
	HunterRank           Rank           `db:"hunter_rank" json:"hunter_rank"`
	StreakCount          int            `db:"streak_count" json:"streak_count"`
	LastActiveDate       *calendar.Date `db:"last_active_date" json:"last_active_date,omitempty"`
	TotalQuestsCompleted int64          `db:"total_quests_completed" json:"total_quests_completed"`
	// Timezone is the IANA zone that decides the hunter's calendar day.
	// Empty means the service default.
	Timezone  string    `db:"timezone" json:"timezone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Name returns the display name, falling back to the username.
func (p *Profile) Name() string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	return p.Username
}

// Quest is a user-authored task that awards XP when completed.
type Quest struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ProfileID   uuid.UUID `db:"profile_id" json:"profile_id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Category    Category  `db:"category" json:"category"`
	Difficulty  Rank      `db:"difficulty" json:"difficulty"`
	XPReward    int64     `db:"xp_reward" json:"xp_reward"`
	IsDaily     bool      `db:"is_daily" json:"is_daily"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// OneTimePeriod is the ledger period used for every non-daily quest, so that a
// single unique key covers both "once per day" and "once ever".
var OneTimePeriod = calendar.New(2000, time.January, 1)

// Completion is an append-only ledger record of a quest completion.
type Completion struct {
	QuestID     uuid.UUID     `db:"quest_id" json:"quest_id"`
	ProfileID   uuid.UUID     `db:"profile_id" json:"profile_id"`
	CompletedOn calendar.Date `db:"completed_on" json:"completed_on"`
	PeriodStart calendar.Date `db:"period_start" json:"-"`
	XPAwarded   int64         `db:"xp_awarded" json:"xp_awarded"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// NewCompletion builds the ledger record for completing quest q on day.
func NewCompletion(q *Quest, profileID uuid.UUID, day calendar.Date) *Completion {
	return &Completion{
		QuestID:     q.ID,
		ProfileID:   profileID,
		CompletedOn: day,
		PeriodStart: PeriodFor(q.IsDaily, day),
		XPAwarded:   q.XPReward,
	}
}

// PeriodFor returns the ledger period key for a completion on day.
func PeriodFor(isDaily bool, day calendar.Date) calendar.Date {
	if isDaily {
		return day
	}
	return OneTimePeriod
}

// LeaderboardEntry is one row of the XP leaderboard.
type LeaderboardEntry struct {
	Position    int       `json:"position"`
	Medal       string    `json:"medal,omitempty"`
	ProfileID   uuid.UUID `json:"profile_id"`
	Name        string    `json:"name"`
	XP          int64     `json:"xp"`
	Level       int64     `json:"level"`
	HunterRank  Rank      `json:"hunter_rank"`
	RankColor   string    `json:"rank_color"`
	StreakCount int       `json:"streak_count"`
}
