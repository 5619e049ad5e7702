package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "profiles table",
		sql: `
		CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY,
			username VARCHAR(64) NOT NULL UNIQUE,
			display_name VARCHAR(120),
			telegram_id BIGINT UNIQUE,
			xp BIGINT NOT NULL DEFAULT 0 CHECK (xp >= 0),
			level BIGINT NOT NULL DEFAULT 1 CHECK (level >= 1),
			hunter_rank CHAR(1) NOT NULL DEFAULT 'E',
			streak_count INT NOT NULL DEFAULT 0 CHECK (streak_count >= 0),
			last_active_date DATE,
			total_quests_completed BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_profiles_xp ON profiles(xp DESC);
		`,
	},
	{
		name: "quests table",
		sql: `
		CREATE TABLE IF NOT EXISTS quests (
			id UUID PRIMARY KEY,
			profile_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			title VARCHAR(120) NOT NULL,
			description TEXT,
			category VARCHAR(32) NOT NULL,
			difficulty CHAR(1) NOT NULL,
			xp_reward BIGINT NOT NULL CHECK (xp_reward > 0),
			is_daily BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_quests_profile ON quests(profile_id, created_at);
		`,
	},
	{
		name: "quest_completions table",
		sql: `
		CREATE TABLE IF NOT EXISTS quest_completions (
			quest_id UUID NOT NULL REFERENCES quests(id) ON DELETE CASCADE,
			profile_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			completed_on DATE NOT NULL,
			period_start DATE NOT NULL,
			xp_awarded BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (quest_id, profile_id, period_start)
		);
		CREATE INDEX IF NOT EXISTS idx_quest_completions_profile_day ON quest_completions(profile_id, completed_on);
		`,
	},
	{
		name: "profile timezone",
		sql: `
		ALTER TABLE profiles ADD COLUMN IF NOT EXISTS timezone VARCHAR(64) NOT NULL DEFAULT '';
		`,
	},
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
