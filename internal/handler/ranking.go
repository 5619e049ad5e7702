package handler

import (
	tele "gopkg.in/telebot.v3"

	"shadowrank/internal/service"
)

const topSize = 10

// RankingHandler handles leaderboard commands.
type RankingHandler struct {
	leaderboard *service.LeaderboardService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(leaderboard *service.LeaderboardService) *RankingHandler {
	return &RankingHandler{leaderboard: leaderboard}
}

// HandleTop handles the /top command.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	ctx, cancel := commandContext()
	defer cancel()

	entries, err := h.leaderboard.Top(ctx, topSize)
	if err != nil {
		return c.Reply(errorText(err))
	}
	return c.Reply(formatTop(entries))
}
