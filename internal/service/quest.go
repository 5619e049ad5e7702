package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"shadowrank/internal/model"
	"shadowrank/internal/repository"
)

const maxQuestTitle = 120

// NewQuest is the input for creating a quest. A zero XPReward takes the
// default reward for the difficulty.
type NewQuest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Category    string  `json:"category"`
	Difficulty  string  `json:"difficulty"`
	XPReward    int64   `json:"xp_reward"`
	IsDaily     bool    `json:"is_daily"`
}

// QuestService manages a hunter's quests.
type QuestService struct {
	store   repository.QuestStore
	rewards map[model.Rank]int64
}

// NewQuestService creates a new QuestService instance.
func NewQuestService(store repository.QuestStore, rewards map[model.Rank]int64) *QuestService {
	return &QuestService{store: store, rewards: rewards}
}

// Create validates in and stores it as a quest owned by ownerID.
func (s *QuestService) Create(ctx context.Context, ownerID uuid.UUID, in NewQuest) (*model.Quest, error) {
	title := strings.TrimSpace(in.Title)
	if n := utf8.RuneCountInString(title); n == 0 || n > maxQuestTitle {
		return nil, fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidInput, maxQuestTitle)
	}

	category := model.CategoryOther
	if in.Category != "" {
		c, err := model.ParseCategory(strings.ToLower(in.Category))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		category = c
	}

	difficulty, err := model.ParseRank(strings.ToUpper(in.Difficulty))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	reward := in.XPReward
	switch {
	case reward < 0:
		return nil, fmt.Errorf("%w: xp_reward must be positive", ErrInvalidInput)
	case reward == 0:
		reward = s.rewards[difficulty]
		if reward <= 0 {
			return nil, fmt.Errorf("%w: no default reward for difficulty %s", ErrInvalidInput, difficulty)
		}
	}

	var description *string
	if in.Description != nil {
		if d := strings.TrimSpace(*in.Description); d != "" {
			description = &d
		}
	}

	q := &model.Quest{
		ID:          uuid.New(),
		ProfileID:   ownerID,
		Title:       title,
		Description: description,
		Category:    category,
		Difficulty:  difficulty,
		XPReward:    reward,
		IsDaily:     in.IsDaily,
	}
	if err := s.store.CreateQuest(ctx, q); err != nil {
		return nil, storeErr("failed to create quest", err)
	}

	log.Info().
		Str("profile_id", ownerID.String()).
		Str("quest_id", q.ID.String()).
		Str("difficulty", string(difficulty)).
		Int64("xp_reward", reward).
		Bool("daily", q.IsDaily).
		Msg("Quest created")
	return q, nil
}

// List returns the owner's quests, oldest first.
func (s *QuestService) List(ctx context.Context, ownerID uuid.UUID) ([]*model.Quest, error) {
	quests, err := s.store.ListQuests(ctx, ownerID)
	if err != nil {
		return nil, storeErr("failed to list quests", err)
	}
	return quests, nil
}

// Delete removes one of the owner's quests. XP already earned from it stays.
func (s *QuestService) Delete(ctx context.Context, ownerID, questID uuid.UUID) error {
	q, err := s.store.GetQuest(ctx, questID)
	if err != nil {
		return storeErr("failed to get quest", err)
	}
	if q.ProfileID != ownerID {
		return ErrNotOwner
	}
	if err := s.store.DeleteQuest(ctx, questID, ownerID); err != nil {
		return storeErr("failed to delete quest", err)
	}

	log.Info().Str("profile_id", ownerID.String()).Str("quest_id", questID.String()).Msg("Quest deleted")
	return nil
}
