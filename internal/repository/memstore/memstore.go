// Package memstore is an in-process repository.Store used for local
// development and tests. Transactions are serialised and rolled back from an
// undo journal.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"shadowrank/internal/model"
	"shadowrank/internal/pkg/calendar"
	"shadowrank/internal/repository"
)

type ledgerKey struct {
	questID   uuid.UUID
	profileID uuid.UUID
	period    calendar.Date
}

// Store keeps every record in maps guarded by mu. txMu is held for the whole
// of a transaction so transactions never interleave.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	profiles   map[uuid.UUID]*model.Profile
	byUsername map[string]uuid.UUID
	byTelegram map[int64]uuid.UUID
	quests     map[uuid.UUID]*model.Quest
	ledger     map[ledgerKey]*model.Completion
	// seq records insertion order of quests and ledger rows
	seq     map[any]uint64
	nextSeq uint64

	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		profiles:   make(map[uuid.UUID]*model.Profile),
		byUsername: make(map[string]uuid.UUID),
		byTelegram: make(map[int64]uuid.UUID),
		quests:     make(map[uuid.UUID]*model.Quest),
		ledger:     make(map[ledgerKey]*model.Completion),
		seq:        make(map[any]uint64),
		now:        time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// CreateProfile inserts p.
func (s *Store) CreateProfile(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[p.Username]; ok {
		return repository.ErrUsernameTaken
	}
	if p.TelegramID != nil {
		if _, ok := s.byTelegram[*p.TelegramID]; ok {
			return repository.ErrTelegramLinked
		}
	}
	if _, ok := s.profiles[p.ID]; ok {
		return repository.ErrDuplicate
	}

	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.profiles[p.ID] = cloneProfile(p)
	s.byUsername[p.Username] = p.ID
	if p.TelegramID != nil {
		s.byTelegram[*p.TelegramID] = p.ID
	}
	return nil
}

// GetProfile returns a copy of the stored profile.
func (s *Store) GetProfile(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return cloneProfile(p), nil
}

// GetProfileByTelegramID returns the profile linked to telegramID.
func (s *Store) GetProfileByTelegramID(ctx context.Context, telegramID int64) (*model.Profile, error) {
	s.mu.RLock()
	id, ok := s.byTelegram[telegramID]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return s.GetProfile(ctx, id)
}

// TopProfiles returns the top N profiles by XP. Ties go to the older profile.
func (s *Store) TopProfiles(_ context.Context, limit int) ([]*model.Profile, error) {
	s.mu.RLock()
	all := make([]*model.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		all = append(all, cloneProfile(p))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].XP != all[j].XP {
			return all[i].XP > all[j].XP
		}
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// CreateQuest inserts q. The owner must exist.
func (s *Store) CreateQuest(_ context.Context, q *model.Quest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[q.ProfileID]; !ok {
		return repository.ErrProfileNotFound
	}
	if _, ok := s.quests[q.ID]; ok {
		return repository.ErrDuplicate
	}
	q.CreatedAt = s.now()
	cp := *q
	s.quests[q.ID] = &cp
	s.stamp(q.ID)
	return nil
}

// GetQuest returns a copy of the stored quest.
func (s *Store) GetQuest(_ context.Context, id uuid.UUID) (*model.Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quests[id]
	if !ok {
		return nil, repository.ErrQuestNotFound
	}
	cp := *q
	return &cp, nil
}

// ListQuests returns a profile's quests, oldest first.
func (s *Store) ListQuests(_ context.Context, profileID uuid.UUID) ([]*model.Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var quests []*model.Quest
	for _, q := range s.quests {
		if q.ProfileID == profileID {
			cp := *q
			quests = append(quests, &cp)
		}
	}
	sort.Slice(quests, func(i, j int) bool { return s.seq[quests[i].ID] < s.seq[quests[j].ID] })
	return quests, nil
}

// DeleteQuest removes a quest and its completion records.
func (s *Store) DeleteQuest(_ context.Context, id, profileID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quests[id]
	if !ok || q.ProfileID != profileID {
		return repository.ErrQuestNotFound
	}
	delete(s.quests, id)
	delete(s.seq, id)
	for key := range s.ledger {
		if key.questID == id {
			delete(s.ledger, key)
			delete(s.seq, key)
		}
	}
	return nil
}

// CompletedQuestIDs returns the quests closed for profileID on day.
func (s *Store) CompletedQuestIDs(_ context.Context, profileID uuid.UUID, day calendar.Date) (map[uuid.UUID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	done := make(map[uuid.UUID]bool)
	for key := range s.ledger {
		if key.profileID == profileID && (key.period == day || key.period == model.OneTimePeriod) {
			done[key.questID] = true
		}
	}
	return done, nil
}

// ListCompletions returns a profile's most recent completions, newest first.
func (s *Store) ListCompletions(_ context.Context, profileID uuid.UUID, limit int) ([]*model.Completion, error) {
	s.mu.RLock()
	type ranked struct {
		c   *model.Completion
		seq uint64
	}
	var rows []ranked
	for key, c := range s.ledger {
		if key.profileID == profileID {
			cp := *c
			rows = append(rows, ranked{c: &cp, seq: s.seq[key]})
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]*model.Completion, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.c)
	}
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InTx runs fn with exclusive write access. Changes made through the Tx are
// undone when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memTx journals an undo step for every write.
type memTx struct {
	store *Store
	undo  []func()
}

func (t *memTx) GetQuest(ctx context.Context, id uuid.UUID) (*model.Quest, error) {
	return t.store.GetQuest(ctx, id)
}

func (t *memTx) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	return t.store.GetProfile(ctx, id)
}

func (t *memTx) InsertCompletion(_ context.Context, c *model.Completion) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quests[c.QuestID]; !ok {
		return repository.ErrQuestNotFound
	}
	key := ledgerKey{questID: c.QuestID, profileID: c.ProfileID, period: c.PeriodStart}
	if _, ok := s.ledger[key]; ok {
		return repository.ErrAlreadyRecorded
	}

	c.CreatedAt = s.now()
	cp := *c
	s.ledger[key] = &cp
	s.stamp(key)
	t.undo = append(t.undo, func() {
		delete(s.ledger, key)
		delete(s.seq, key)
	})
	return nil
}

func (t *memTx) UpdateProgress(_ context.Context, p *model.Profile, expectedXP int64) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.profiles[p.ID]
	if !ok || current.XP != expectedXP || current.Timezone != p.Timezone {
		return repository.ErrConflict
	}

	prev := cloneProfile(current)
	p.UpdatedAt = s.now()
	updated := cloneProfile(current)
	updated.XP = p.XP
	updated.Level = p.Level
	updated.HunterRank = p.HunterRank
	updated.StreakCount = p.StreakCount
	updated.LastActiveDate = cloneDate(p.LastActiveDate)
	updated.TotalQuestsCompleted = p.TotalQuestsCompleted
	updated.UpdatedAt = p.UpdatedAt
	s.profiles[p.ID] = updated
	t.undo = append(t.undo, func() { s.profiles[p.ID] = prev })
	return nil
}

func (t *memTx) UpdateTimezone(_ context.Context, id uuid.UUID, zone string, expectedXP int64) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.profiles[id]
	if !ok || current.XP != expectedXP {
		return repository.ErrConflict
	}

	prev := cloneProfile(current)
	updated := cloneProfile(current)
	updated.Timezone = zone
	updated.UpdatedAt = s.now()
	s.profiles[id] = updated
	t.undo = append(t.undo, func() { s.profiles[id] = prev })
	return nil
}

func (t *memTx) rollback() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// stamp records the insertion position of key. Callers hold mu.
func (s *Store) stamp(key any) {
	s.nextSeq++
	s.seq[key] = s.nextSeq
}

func cloneProfile(p *model.Profile) *model.Profile {
	cp := *p
	cp.LastActiveDate = cloneDate(p.LastActiveDate)
	if p.DisplayName != nil {
		name := *p.DisplayName
		cp.DisplayName = &name
	}
	if p.TelegramID != nil {
		id := *p.TelegramID
		cp.TelegramID = &id
	}
	return &cp
}

func cloneDate(d *calendar.Date) *calendar.Date {
	if d == nil {
		return nil
	}
	day := *d
	return &day
}
