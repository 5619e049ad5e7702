package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"shadowrank/internal/model"
)

const questColumns = `id, profile_id, title, description, category, difficulty, xp_reward, is_daily, created_at`

// QuestRepository handles quest data persistence.
type QuestRepository struct {
	db DBTX
}

// NewQuestRepository creates a new QuestRepository instance.
func NewQuestRepository(db DBTX) *QuestRepository {
	return &QuestRepository{db: db}
}

// CreateQuest inserts q. The owner must exist.
func (r *QuestRepository) CreateQuest(ctx context.Context, q *model.Quest) error {
	const query = `
		INSERT INTO quests (id, profile_id, title, description, category, difficulty, xp_reward, is_daily, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		q.ID, q.ProfileID, q.Title, q.Description, q.Category, q.Difficulty, q.XPReward, q.IsDaily,
	).Scan(&q.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrProfileNotFound
		}
		return classify("failed to create quest", err)
	}
	return nil
}

// GetQuest retrieves a quest by ID.
// Returns ErrQuestNotFound if the quest does not exist.
func (r *QuestRepository) GetQuest(ctx context.Context, id uuid.UUID) (*model.Quest, error) {
	query := `SELECT ` + questColumns + ` FROM quests WHERE id = $1`

	q, err := scanQuest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestNotFound
		}
		return nil, classify("failed to get quest", err)
	}
	return q, nil
}

// ListQuests returns a profile's quests, oldest first.
func (r *QuestRepository) ListQuests(ctx context.Context, profileID uuid.UUID) ([]*model.Quest, error) {
	query := `SELECT ` + questColumns + `
		FROM quests
		WHERE profile_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, profileID)
	if err != nil {
		return nil, classify("failed to list quests", err)
	}
	defer rows.Close()

	var quests []*model.Quest
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, classify("failed to scan quest", err)
		}
		quests = append(quests, q)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("error iterating quests", err)
	}
	return quests, nil
}

// DeleteQuest removes a quest owned by profileID. Its completion records go
// with it; XP already awarded stays on the profile.
func (r *QuestRepository) DeleteQuest(ctx context.Context, id, profileID uuid.UUID) error {
	const query = `DELETE FROM quests WHERE id = $1 AND profile_id = $2`

	result, err := r.db.Exec(ctx, query, id, profileID)
	if err != nil {
		return classify("failed to delete quest", err)
	}
	if result.RowsAffected() == 0 {
		return ErrQuestNotFound
	}
	return nil
}

func scanQuest(row pgx.Row) (*model.Quest, error) {
	var q model.Quest
	err := row.Scan(
		&q.ID,
		&q.ProfileID,
		&q.Title,
		&q.Description,
		&q.Category,
		&q.Difficulty,
		&q.XPReward,
		&q.IsDaily,
		&q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}
