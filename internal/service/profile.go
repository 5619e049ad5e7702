package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"shadowrank/internal/model"
	"shadowrank/internal/progression"
	"shadowrank/internal/repository"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

const maxDisplayName = 120

// ProfileView is a profile together with its derived presentation fields.
type ProfileView struct {
	*model.Profile
	Progress  progression.LevelInfo   `json:"progress"`
	RankLabel string                  `json:"rank_label"`
	RankColor string                  `json:"rank_color"`
	NextRank  *progression.Breakpoint `json:"next_rank,omitempty"`
}

// ProfileService handles hunter registration and lookup.
type ProfileService struct {
	store  repository.ProfileStore
	levels *progression.LevelTable
	ranks  *progression.RankClassifier
}

// NewProfileService creates a new ProfileService instance.
func NewProfileService(store repository.ProfileStore, levels *progression.LevelTable, ranks *progression.RankClassifier) *ProfileService {
	return &ProfileService{store: store, levels: levels, ranks: ranks}
}

// Register creates a fresh profile at level 1 with no XP. timezone is an IANA
// zone name; empty uses the service default.
func (s *ProfileService) Register(ctx context.Context, username string, displayName *string, timezone string) (*model.Profile, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("%w: username must be 3-32 letters, digits or underscores", ErrInvalidInput)
	}
	displayName, err := cleanDisplayName(displayName)
	if err != nil {
		return nil, err
	}
	timezone = strings.TrimSpace(timezone)
	if _, err := LoadZone(timezone); err != nil {
		return nil, err
	}

	p := s.newProfile(username)
	p.DisplayName = displayName
	p.Timezone = timezone
	if err := s.store.CreateProfile(ctx, p); err != nil {
		return nil, storeErr("failed to register profile", err)
	}

	log.Info().Str("profile_id", p.ID.String()).Str("username", username).Msg("Profile registered")
	return p, nil
}

// Get returns a profile with its level progress.
func (s *ProfileService) Get(ctx context.Context, id uuid.UUID) (*ProfileView, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, storeErr("failed to get profile", err)
	}
	return s.View(p), nil
}

// View derives the presentation fields of p.
func (s *ProfileService) View(p *model.Profile) *ProfileView {
	info := s.levels.LevelOf(p.XP)
	view := &ProfileView{
		Profile:   p,
		Progress:  info,
		RankLabel: p.HunterRank.Label(),
		RankColor: p.HunterRank.Color(),
	}
	if next, ok := s.ranks.NextBreakpoint(info.Level); ok {
		view.NextRank = &next
	}
	return view
}

// EnsureTelegramProfile returns the profile linked to telegramID, creating
// one on first contact. The bool reports whether it was created.
func (s *ProfileService) EnsureTelegramProfile(ctx context.Context, telegramID int64, username, displayName string) (*model.Profile, bool, error) {
	p, err := s.store.GetProfileByTelegramID(ctx, telegramID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, repository.ErrProfileNotFound) {
		return nil, false, storeErr("failed to get profile", err)
	}

	name := displayName
	dn, _ := cleanDisplayName(&name)

	candidates := []string{strings.TrimSpace(username), "tg_" + strconv.FormatInt(telegramID, 10)}
	for _, candidate := range candidates {
		if !usernamePattern.MatchString(candidate) {
			continue
		}
		p = s.newProfile(candidate)
		p.TelegramID = &telegramID
		p.DisplayName = dn

		err = s.store.CreateProfile(ctx, p)
		switch {
		case err == nil:
			log.Info().
				Str("profile_id", p.ID.String()).
				Int64("telegram_id", telegramID).
				Msg("Profile created from Telegram")
			return p, true, nil
		case errors.Is(err, repository.ErrTelegramLinked):
			// another update for the same account won the race
			p, err = s.store.GetProfileByTelegramID(ctx, telegramID)
			if err != nil {
				return nil, false, storeErr("failed to get profile", err)
			}
			return p, false, nil
		case errors.Is(err, repository.ErrUsernameTaken):
			continue
		default:
			return nil, false, storeErr("failed to create profile", err)
		}
	}
	return nil, false, fmt.Errorf("%w: no free username for telegram account %d", ErrUsernameTaken, telegramID)
}

func (s *ProfileService) newProfile(username string) *model.Profile {
	return &model.Profile{
		ID:         uuid.New(),
		Username:   username,
		XP:         0,
		Level:      1,
		HunterRank: s.ranks.RankOf(1),
	}
}

func cleanDisplayName(name *string) (*string, error) {
	if name == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > maxDisplayName {
		return nil, fmt.Errorf("%w: display name longer than %d characters", ErrInvalidInput, maxDisplayName)
	}
	return &trimmed, nil
}
