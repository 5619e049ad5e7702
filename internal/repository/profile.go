package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"shadowrank/internal/model"
	"shadowrank/internal/pkg/calendar"
)

// Profile creation errors, both wrapping ErrDuplicate.
var (
	ErrUsernameTaken  = fmt.Errorf("%w: username already taken", ErrDuplicate)
	ErrTelegramLinked = fmt.Errorf("%w: telegram account already linked", ErrDuplicate)
)

const profileColumns = `id, username, display_name, telegram_id, xp, level, hunter_rank,
	streak_count, last_active_date, total_quests_completed, timezone, created_at, updated_at`

// ProfileRepository handles profile data persistence.
type ProfileRepository struct {
	db DBTX
}

// NewProfileRepository creates a new ProfileRepository instance.
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// CreateProfile inserts p, filling in its timestamps.
func (r *ProfileRepository) CreateProfile(ctx context.Context, p *model.Profile) error {
	const query = `
		INSERT INTO profiles (id, username, display_name, telegram_id, xp, level, hunter_rank,
			streak_count, last_active_date, total_quests_completed, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		p.ID, p.Username, p.DisplayName, p.TelegramID, p.XP, p.Level, p.HunterRank,
		p.StreakCount, toPgDate(p.LastActiveDate), p.TotalQuestsCompleted, p.Timezone,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if strings.Contains(pgErr.ConstraintName, "telegram") {
				return ErrTelegramLinked
			}
			return ErrUsernameTaken
		}
		return classify("failed to create profile", err)
	}

	return nil
}

// GetProfile retrieves a profile by ID.
// Returns ErrProfileNotFound if the profile does not exist.
func (r *ProfileRepository) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, classify("failed to get profile", err)
	}
	return p, nil
}

// GetProfileByTelegramID retrieves the profile linked to a Telegram account.
func (r *ProfileRepository) GetProfileByTelegramID(ctx context.Context, telegramID int64) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE telegram_id = $1`

	p, err := scanProfile(r.db.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, classify("failed to get profile by telegram id", err)
	}
	return p, nil
}

// UpdateProgress writes the progression fields of p if its stored XP is
// still expectedXP and its time zone is still p.Timezone.
func (r *ProfileRepository) UpdateProgress(ctx context.Context, p *model.Profile, expectedXP int64) error {
	const query = `
		UPDATE profiles
		SET xp = $2, level = $3, hunter_rank = $4, streak_count = $5,
			last_active_date = $6, total_quests_completed = $7, updated_at = NOW()
		WHERE id = $1 AND xp = $8 AND timezone = $9
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		p.ID, p.XP, p.Level, p.HunterRank, p.StreakCount,
		toPgDate(p.LastActiveDate), p.TotalQuestsCompleted, expectedXP, p.Timezone,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("profile %s: %w", p.ID, ErrConflict)
		}
		return classify("failed to update progress", err)
	}
	return nil
}

// UpdateTimezone moves the profile to zone if its stored XP is still
// expectedXP, so that no completion slips in between the caller's checks and
// the write.
func (r *ProfileRepository) UpdateTimezone(ctx context.Context, id uuid.UUID, zone string, expectedXP int64) error {
	const query = `
		UPDATE profiles SET timezone = $2, updated_at = NOW()
		WHERE id = $1 AND xp = $3
	`

	tag, err := r.db.Exec(ctx, query, id, zone, expectedXP)
	if err != nil {
		return classify("failed to update timezone", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s: %w", id, ErrConflict)
	}
	return nil
}

// TopProfiles retrieves the top N profiles by XP. Ties go to the older profile.
func (r *ProfileRepository) TopProfiles(ctx context.Context, limit int) ([]*model.Profile, error) {
	query := `SELECT ` + profileColumns + `
		FROM profiles
		ORDER BY xp DESC, created_at ASC, id ASC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, classify("failed to get top profiles", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, classify("failed to scan profile", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("error iterating profiles", err)
	}

	return profiles, nil
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var (
		p          model.Profile
		lastActive pgtype.Date
	)
	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.DisplayName,
		&p.TelegramID,
		&p.XP,
		&p.Level,
		&p.HunterRank,
		&p.StreakCount,
		&lastActive,
		&p.TotalQuestsCompleted,
		&p.Timezone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.LastActiveDate = fromPgDate(lastActive)
	return &p, nil
}

func toPgDate(d *calendar.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time(), Valid: true}
}

func fromPgDate(d pgtype.Date) *calendar.Date {
	if !d.Valid {
		return nil
	}
	day := calendar.FromTime(d.Time)
	return &day
}
