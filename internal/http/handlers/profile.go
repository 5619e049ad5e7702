package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name"`
	Timezone    string  `json:"timezone"`
}

type timezoneRequest struct {
	Timezone *string `json:"timezone"`
}

// Register creates a profile and returns it with a bearer token.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errNoBody.Error())
		return
	}

	p, err := h.Profiles.Register(c.Request.Context(), req.Username, req.DisplayName, req.Timezone)
	if err != nil {
		writeError(c, err)
		return
	}
	token, err := h.Tokens.Issue(p.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"profile": h.Profiles.View(p),
		"token":   token,
	})
}

// Me returns the caller's profile with level progress.
func (h *Handler) Me(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	view, err := h.Profiles.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Profile returns any profile by ID.
func (h *Handler) Profile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.Profiles.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Dashboard returns the caller's profile, today's board and recent completions.
func (h *Handler) Dashboard(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	dash, err := h.Boards.Dashboard(c.Request.Context(), id, h.Engine.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// SetTimezone changes the zone that decides the caller's calendar day.
func (h *Handler) SetTimezone(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	var req timezoneRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Timezone == nil {
		badRequest(c, "timezone required")
		return
	}

	p, err := h.Engine.SetTimezone(c.Request.Context(), id, *req.Timezone)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Profiles.View(p))
}
