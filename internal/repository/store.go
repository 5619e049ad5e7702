package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the Store backed by a pgx connection pool.
type PostgresStore struct {
	*ProfileRepository
	*QuestRepository
	*CompletionRepository

	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store over pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		ProfileRepository:    NewProfileRepository(pool),
		QuestRepository:      NewQuestRepository(pool),
		CompletionRepository: NewCompletionRepository(pool),
		pool:                 pool,
	}
}

// pgTx binds the repositories to one pgx transaction.
type pgTx struct {
	*ProfileRepository
	*QuestRepository
	*CompletionRepository
}

// InTx runs fn inside a READ COMMITTED transaction. The conditional profile
// update in fn is what detects concurrent writers.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	var fnErr error
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		fnErr = fn(&pgTx{
			ProfileRepository:    NewProfileRepository(tx),
			QuestRepository:      NewQuestRepository(tx),
			CompletionRepository: NewCompletionRepository(tx),
		})
		return fnErr
	})
	return txResult(err, fnErr)
}

// txResult passes fn's own error through untouched. Anything else (begin,
// commit or rollback failing) comes from the connection and is classified.
func txResult(err, fnErr error) error {
	if err == nil || (fnErr != nil && errors.Is(err, fnErr)) {
		return err
	}
	return classify("transaction failed", err)
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classify("ping failed", err)
	}
	return nil
}
