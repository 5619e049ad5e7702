package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"shadowrank/internal/model"
	"shadowrank/internal/pkg/calendar"
	"shadowrank/internal/repository"
)

const recentCompletions = 10

// BoardEntry is one quest card on the board.
type BoardEntry struct {
	*model.Quest
	Icon            string `json:"icon"`
	DifficultyLabel string `json:"difficulty_label"`
	DifficultyColor string `json:"difficulty_color"`
	CompletedToday  bool   `json:"completed_today"`
}

// Board is a hunter's quest board for one day.
type Board struct {
	Day     calendar.Date `json:"day"`
	Entries []BoardEntry  `json:"quests"`
}

// Dashboard aggregates everything the home screen shows.
type Dashboard struct {
	Profile *ProfileView        `json:"profile"`
	Board   *Board              `json:"board"`
	Recent  []*model.Completion `json:"recent_completions"`
}

// BoardService derives the quest board from the ledger, so the client's
// "done today" state never has to be trusted.
type BoardService struct {
	store    repository.Store
	profiles *ProfileService
	engine   *Engine
}

// NewBoardService creates a new BoardService instance.
func NewBoardService(store repository.Store, profiles *ProfileService, engine *Engine) *BoardService {
	return &BoardService{store: store, profiles: profiles, engine: engine}
}

// Board lists the owner's daily quests with their status for day, followed
// by one-time quests that were never completed.
func (s *BoardService) Board(ctx context.Context, ownerID uuid.UUID, day calendar.Date) (*Board, error) {
	var (
		quests []*model.Quest
		done   map[uuid.UUID]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quests, err = s.store.ListQuests(gctx, ownerID)
		return err
	})
	g.Go(func() error {
		var err error
		done, err = s.store.CompletedQuestIDs(gctx, ownerID, day)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeErr("failed to load board", err)
	}

	return buildBoard(day, quests, done), nil
}

func buildBoard(day calendar.Date, quests []*model.Quest, done map[uuid.UUID]bool) *Board {
	board := &Board{Day: day, Entries: make([]BoardEntry, 0, len(quests))}
	for _, q := range quests {
		completed := done[q.ID]
		if !q.IsDaily && completed {
			continue
		}
		board.Entries = append(board.Entries, BoardEntry{
			Quest:           q,
			Icon:            q.Category.Icon(),
			DifficultyLabel: q.Difficulty.Label(),
			DifficultyColor: q.Difficulty.Color(),
			CompletedToday:  completed,
		})
	}
	return board
}

// Today returns the owner's board for the day now falls on in their own
// time zone.
func (s *BoardService) Today(ctx context.Context, ownerID uuid.UUID, now time.Time) (*Board, error) {
	p, err := s.store.GetProfile(ctx, ownerID)
	if err != nil {
		return nil, storeErr("failed to load board", err)
	}
	return s.Board(ctx, ownerID, s.engine.TodayFor(p, now))
}

// Dashboard loads the profile, then today's board and recent completions
// concurrently.
func (s *BoardService) Dashboard(ctx context.Context, ownerID uuid.UUID, now time.Time) (*Dashboard, error) {
	view, err := s.profiles.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	day := s.engine.TodayFor(view.Profile, now)

	dash := Dashboard{Profile: view}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dash.Board, err = s.Board(gctx, ownerID, day)
		return err
	})
	g.Go(func() error {
		var err error
		dash.Recent, err = s.store.ListCompletions(gctx, ownerID, recentCompletions)
		if err != nil {
			return storeErr("failed to load recent completions", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if dash.Recent == nil {
		dash.Recent = []*model.Completion{}
	}
	return &dash, nil
}
