package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"shadowrank/internal/service"
)

// QuestHandler handles quest board commands.
type QuestHandler struct {
	quests *service.QuestService
	boards *service.BoardService
	engine *service.Engine
}

// NewQuestHandler creates a new QuestHandler.
func NewQuestHandler(quests *service.QuestService, boards *service.BoardService, engine *service.Engine) *QuestHandler {
	return &QuestHandler{quests: quests, boards: boards, engine: engine}
}

// HandleQuests handles the /quests command.
func (h *QuestHandler) HandleQuests(c tele.Context) error {
	p, ok := ProfileFrom(c)
	if !ok {
		return nil
	}
	ctx, cancel := commandContext()
	defer cancel()

	board, err := h.boards.Board(ctx, p.ID, h.engine.TodayFor(p, h.engine.Now()))
	if err != nil {
		return c.Reply(errorText(err))
	}
	return c.Reply(formatBoard(board))
}

// HandleAddDaily handles /add <difficulty> <title>.
func (h *QuestHandler) HandleAddDaily(c tele.Context) error {
	return h.add(c, true)
}

// HandleAddOnce handles /once <difficulty> <title>.
func (h *QuestHandler) HandleAddOnce(c tele.Context) error {
	return h.add(c, false)
}

func (h *QuestHandler) add(c tele.Context, daily bool) error {
	p, ok := ProfileFrom(c)
	if !ok {
		return nil
	}
	difficulty, title, ok := parseAddArgs(c.Args())
	if !ok {
		return c.Reply("Usage: /add <E|D|C|B|A|S> <title>")
	}
	ctx, cancel := commandContext()
	defer cancel()

	q, err := h.quests.Create(ctx, p.ID, service.NewQuest{
		Title:      title,
		Difficulty: difficulty,
		IsDaily:    daily,
	})
	if err != nil {
		return c.Reply(errorText(err))
	}
	kind := "one-time"
	if q.IsDaily {
		kind = "daily"
	}
	return c.Reply(fmt.Sprintf("📜 New %s quest: %s [%s] +%d XP", kind, q.Title, q.Difficulty, q.XPReward))
}

// HandleDone handles /done <n>, completing the n-th quest on today's board.
func (h *QuestHandler) HandleDone(c tele.Context) error {
	p, ok := ProfileFrom(c)
	if !ok {
		return nil
	}
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("Usage: /done <n> (see /quests)")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return c.Reply("Usage: /done <n> (see /quests)")
	}

	ctx, cancel := commandContext()
	defer cancel()

	now := h.engine.Now()
	board, err := h.boards.Board(ctx, p.ID, h.engine.TodayFor(p, now))
	if err != nil {
		return c.Reply(errorText(err))
	}
	if n > len(board.Entries) {
		return c.Reply(fmt.Sprintf("No quest #%d on your board.", n))
	}
	entry := board.Entries[n-1]

	res, err := h.engine.CompleteQuest(ctx, service.CompleteRequest{
		ProfileID: p.ID,
		QuestID:   entry.ID,
		Now:       now,
	})
	if err != nil {
		log.Debug().Err(err).Str("profile_id", p.ID.String()).Msg("Telegram completion failed")
		return c.Reply(errorText(err))
	}
	return c.Reply(formatResult(entry.Title, res))
}

// parseAddArgs splits "<difficulty> <title words...>".
func parseAddArgs(args []string) (difficulty, title string, ok bool) {
	if len(args) < 2 {
		return "", "", false
	}
	title = strings.TrimSpace(strings.Join(args[1:], " "))
	if title == "" {
		return "", "", false
	}
	return strings.ToUpper(args[0]), title, true
}
