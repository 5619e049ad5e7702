package handler

import (
	"fmt"

	tele "gopkg.in/telebot.v3"

	"shadowrank/internal/service"
)

// ProfileHandler handles profile-related commands.
type ProfileHandler struct {
	profiles *service.ProfileService
	boards   *service.BoardService
	engine   *service.Engine
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService, boards *service.BoardService, engine *service.Engine) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, boards: boards, engine: engine}
}

// HandleStart handles the /start command.
func (h *ProfileHandler) HandleStart(c tele.Context) error {
	p, ok := ProfileFrom(c)
	if !ok {
		return nil
	}
	return c.Reply(fmt.Sprintf(
		"⚔️ Welcome, hunter %s!\n\n"+
			"Your rank: %s · Level %d · %d XP\n\n"+
			"Commands:\n"+
			"/me - your status\n"+
			"/quests - today's quest board\n"+
			"/add <difficulty> <title> - add a daily quest\n"+
			"/once <difficulty> <title> - add a one-time quest\n"+
			"/done <n> - complete quest n\n"+
			"/tz [zone] - show or set your time zone\n"+
			"/top - leaderboard",
		p.Name(), p.HunterRank.Label(), p.Level, p.XP,
	))
}

// HandleMe handles the /me command.
func (h *ProfileHandler) HandleMe(c tele.Context) error {
	p, ok := ProfileFrom(c)
	if !ok {
		return nil
	}
	ctx, cancel := commandContext()
	defer cancel()

	dash, err := h.boards.Dashboard(ctx, p.ID, h.engine.Now())
	if err != nil {
		return c.Reply(errorText(err))
	}
	return c.Reply(formatStatus(dash))
}

// HandleTimezone handles /tz [zone]. Without an argument it shows the zone
// that decides the hunter's day.
func (h *ProfileHandler) HandleTimezone(c tele.Context) error {
	p, ok := ProfileFrom(c)
	if !ok {
		return nil
	}
	args := c.Args()
	if len(args) == 0 {
		return c.Reply(fmt.Sprintf("🕒 Your day follows %s.\nUsage: /tz <zone>, e.g. /tz Europe/Berlin", h.engine.LocationOf(p)))
	}
	if len(args) != 1 {
		return c.Reply("Usage: /tz <zone>, e.g. /tz Europe/Berlin")
	}
	ctx, cancel := commandContext()
	defer cancel()

	updated, err := h.engine.SetTimezone(ctx, p.ID, args[0])
	if service.KindOf(err) == service.KindInvalidTimeOrder {
		return c.Reply("❌ You have already completed quests today. Change your time zone tomorrow.")
	}
	if err != nil {
		return c.Reply(errorText(err))
	}
	return c.Reply(fmt.Sprintf("🕒 Time zone set to %s.", h.engine.LocationOf(updated)))
}
