// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"shadowrank/internal/model"
	"shadowrank/internal/pkg/calendar"
)

// Common errors for repository operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrQuestNotFound   = errors.New("quest not found")
	ErrDuplicate       = errors.New("duplicate key")
	// ErrAlreadyRecorded means the ledger already holds a completion for the
	// quest in this period.
	ErrAlreadyRecorded = errors.New("completion already recorded")
	// ErrConflict means a conditional write lost a race with a concurrent writer.
	ErrConflict = errors.New("concurrent modification")
	// ErrUnavailable means the store could not be reached or did not answer.
	ErrUnavailable = errors.New("store unavailable")
)

// PostgreSQL SQLSTATE codes the repositories react to.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx so repositories run the same
// queries inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProfileStore persists hunter profiles.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p *model.Profile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	GetProfileByTelegramID(ctx context.Context, telegramID int64) (*model.Profile, error)
	TopProfiles(ctx context.Context, limit int) ([]*model.Profile, error)
}

// QuestStore persists quests.
type QuestStore interface {
	CreateQuest(ctx context.Context, q *model.Quest) error
	GetQuest(ctx context.Context, id uuid.UUID) (*model.Quest, error)
	ListQuests(ctx context.Context, profileID uuid.UUID) ([]*model.Quest, error)
	DeleteQuest(ctx context.Context, id, profileID uuid.UUID) error
}

// LedgerReader answers which quests a profile has closed for a day: daily
// quests completed on that day plus every one-time quest ever completed.
type LedgerReader interface {
	CompletedQuestIDs(ctx context.Context, profileID uuid.UUID, day calendar.Date) (map[uuid.UUID]bool, error)
	ListCompletions(ctx context.Context, profileID uuid.UUID, limit int) ([]*model.Completion, error)
}

// Tx is the unit of work used by the completion engine. Every write made
// through a Tx commits or rolls back together.
type Tx interface {
	GetQuest(ctx context.Context, id uuid.UUID) (*model.Quest, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	// InsertCompletion appends a ledger record, failing with
	// ErrAlreadyRecorded when the (quest, profile, period) key exists.
	InsertCompletion(ctx context.Context, c *model.Completion) error
	// UpdateProgress writes the derived progression fields of p, provided the
	// stored XP still equals expectedXP and the stored zone still equals
	// p.Timezone. Otherwise it fails with ErrConflict.
	UpdateProgress(ctx context.Context, p *model.Profile, expectedXP int64) error
	// UpdateTimezone sets the profile's zone under the same XP condition.
	UpdateTimezone(ctx context.Context, id uuid.UUID, zone string, expectedXP int64) error
}

// Store is the full persistence capability of the service.
type Store interface {
	ProfileStore
	QuestStore
	LedgerReader
	// InTx runs fn in a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// classify wraps a driver error. PostgreSQL server errors keep their meaning;
// anything else (dial, timeout, closed pool) is reported as ErrUnavailable.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, ErrDuplicate, pgErr.ConstraintName)
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
