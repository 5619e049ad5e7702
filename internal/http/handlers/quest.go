package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shadowrank/internal/service"
)

// ListQuests returns the caller's quests.
func (h *Handler) ListQuests(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	quests, err := h.Quests.List(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": quests})
}

// CreateQuest adds a quest to the caller's board.
func (h *Handler) CreateQuest(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	var req service.NewQuest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errNoBody.Error())
		return
	}

	q, err := h.Quests.Create(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// DeleteQuest removes one of the caller's quests.
func (h *Handler) DeleteQuest(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	questID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Quests.Delete(c.Request.Context(), id, questID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CompleteQuest records a completion for today in the caller's stored time
// zone. A repeat completion within the same period is a benign no-op.
func (h *Handler) CompleteQuest(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	questID, ok := pathID(c, "id")
	if !ok {
		return
	}

	res, err := h.Engine.CompleteQuest(c.Request.Context(), service.CompleteRequest{
		ProfileID: id,
		QuestID:   questID,
		Now:       h.Engine.Now(),
	})
	if service.KindOf(err) == service.KindAlreadyCompleted {
		c.JSON(http.StatusOK, gin.H{"status": "already_completed"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	h.Leaderboard.Invalidate()
	c.JSON(http.StatusOK, res)
}

// Board returns today's quest board, derived from the ledger.
func (h *Handler) Board(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	board, err := h.Boards.Today(c.Request.Context(), id, h.Engine.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}
