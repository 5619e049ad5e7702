package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"shadowrank/internal/model"
	"shadowrank/internal/pkg/calendar"
)

// CompletionRepository is the PostgreSQL completion ledger. The primary key
// (quest_id, profile_id, period_start) is what makes completions at-most-once.
type CompletionRepository struct {
	db DBTX
}

// NewCompletionRepository creates a new CompletionRepository instance.
func NewCompletionRepository(db DBTX) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// InsertCompletion appends c to the ledger.
// Returns ErrAlreadyRecorded if the period is already taken and
// ErrQuestNotFound if the quest was deleted concurrently.
func (r *CompletionRepository) InsertCompletion(ctx context.Context, c *model.Completion) error {
	const query = `
		INSERT INTO quest_completions (quest_id, profile_id, completed_on, period_start, xp_awarded, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (quest_id, profile_id, period_start) DO NOTHING
	`

	result, err := r.db.Exec(ctx, query,
		c.QuestID, c.ProfileID, c.CompletedOn.Time(), c.PeriodStart.Time(), c.XPAwarded,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrQuestNotFound
		}
		return classify("failed to record completion", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyRecorded
	}
	return nil
}

// CompletedQuestIDs returns the quests closed for profileID on day.
func (r *CompletionRepository) CompletedQuestIDs(ctx context.Context, profileID uuid.UUID, day calendar.Date) (map[uuid.UUID]bool, error) {
	const query = `
		SELECT quest_id
		FROM quest_completions
		WHERE profile_id = $1 AND period_start IN ($2, $3)
	`

	rows, err := r.db.Query(ctx, query, profileID, day.Time(), model.OneTimePeriod.Time())
	if err != nil {
		return nil, classify("failed to load completions", err)
	}
	defer rows.Close()

	done := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, classify("failed to scan completion", err)
		}
		done[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, classify("error iterating completions", err)
	}
	return done, nil
}

// ListCompletions returns a profile's most recent completions, newest first.
func (r *CompletionRepository) ListCompletions(ctx context.Context, profileID uuid.UUID, limit int) ([]*model.Completion, error) {
	const query = `
		SELECT quest_id, profile_id, completed_on, period_start, xp_awarded, created_at
		FROM quest_completions
		WHERE profile_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, profileID, limit)
	if err != nil {
		return nil, classify("failed to list completions", err)
	}
	defer rows.Close()

	var completions []*model.Completion
	for rows.Next() {
		var (
			c                   model.Completion
			completedOn, period time.Time
		)
		if err := rows.Scan(&c.QuestID, &c.ProfileID, &completedOn, &period, &c.XPAwarded, &c.CreatedAt); err != nil {
			return nil, classify("failed to scan completion", err)
		}
		c.CompletedOn = calendar.FromTime(completedOn)
		c.PeriodStart = calendar.FromTime(period)
		completions = append(completions, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("error iterating completions", err)
	}
	return completions, nil
}
