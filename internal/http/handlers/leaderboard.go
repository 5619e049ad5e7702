package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetLeaderboard returns the top hunters by XP. ?limit= is clamped to the
// configured maximum.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "limit must be an integer")
			return
		}
		limit = n
	}

	top, err := h.Leaderboard.Top(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": top})
}
