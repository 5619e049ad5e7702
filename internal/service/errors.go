// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"shadowrank/internal/progression"
	"shadowrank/internal/repository"
)

// Errors returned by the services. Transports switch on Kind rather than on
// the sentinels directly.
var (
	ErrQuestNotFound         = errors.New("quest not found")
	ErrNotOwner              = errors.New("quest belongs to another hunter")
	ErrAlreadyCompletedToday = errors.New("quest already completed for this period")
	ErrInvalidTimeOrder      = progression.ErrInvalidTimeOrder
	ErrPersistenceConflict   = errors.New("profile was modified concurrently")
	ErrStoreUnavailable      = errors.New("store unavailable")

	ErrProfileNotFound = errors.New("profile not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrInvalidInput    = errors.New("invalid input")
)

// Kind is the closed set of failure categories exposed to clients.
type Kind string

const (
	KindQuestNotFound       Kind = "quest_not_found"
	KindNotOwner            Kind = "not_owner"
	KindAlreadyCompleted    Kind = "already_completed"
	KindInvalidTimeOrder    Kind = "invalid_time_order"
	KindPersistenceConflict Kind = "persistence_conflict"
	KindStoreUnavailable    Kind = "store_unavailable"
	KindProfileNotFound     Kind = "profile_not_found"
	KindUsernameTaken       Kind = "username_taken"
	KindInvalidInput        Kind = "invalid_input"
	KindInternal            Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrAlreadyCompletedToday, KindAlreadyCompleted},
	{ErrQuestNotFound, KindQuestNotFound},
	{ErrNotOwner, KindNotOwner},
	{ErrInvalidTimeOrder, KindInvalidTimeOrder},
	{ErrPersistenceConflict, KindPersistenceConflict},
	{ErrStoreUnavailable, KindStoreUnavailable},
	{ErrProfileNotFound, KindProfileNotFound},
	{ErrUsernameTaken, KindUsernameTaken},
	{ErrInvalidInput, KindInvalidInput},
}

// KindOf maps any error to its Kind. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Retryable reports whether the caller may retry the same request later.
func (k Kind) Retryable() bool {
	return k == KindPersistenceConflict || k == KindStoreUnavailable
}

// storeErr translates repository errors into service errors, keeping the
// original in the chain.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var sentinel error
	switch {
	case errors.Is(err, repository.ErrQuestNotFound):
		sentinel = ErrQuestNotFound
	case errors.Is(err, repository.ErrProfileNotFound):
		sentinel = ErrProfileNotFound
	case errors.Is(err, repository.ErrAlreadyRecorded):
		sentinel = ErrAlreadyCompletedToday
	case errors.Is(err, repository.ErrConflict):
		sentinel = ErrPersistenceConflict
	case errors.Is(err, repository.ErrUsernameTaken):
		sentinel = ErrUsernameTaken
	case errors.Is(err, repository.ErrDuplicate):
		sentinel = ErrInvalidInput
	case errors.Is(err, repository.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		sentinel = ErrStoreUnavailable
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel, err)
}
