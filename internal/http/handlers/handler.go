// Package handlers implements the REST endpoints of the progression API.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"shadowrank/internal/http/middleware"
	"shadowrank/internal/service"
)

// retryAfterSeconds is sent with responses a client may retry.
const retryAfterSeconds = 1

// Handler groups the services behind the REST API.
type Handler struct {
	Profiles    *service.ProfileService
	Quests      *service.QuestService
	Engine      *service.Engine
	Boards      *service.BoardService
	Leaderboard *service.LeaderboardService
	Tokens      *service.TokenService
}

// NewHandler creates a new Handler instance.
func NewHandler(
	profiles *service.ProfileService,
	quests *service.QuestService,
	engine *service.Engine,
	boards *service.BoardService,
	leaderboard *service.LeaderboardService,
	tokens *service.TokenService,
) *Handler {
	return &Handler{
		Profiles:    profiles,
		Quests:      quests,
		Engine:      engine,
		Boards:      boards,
		Leaderboard: leaderboard,
		Tokens:      tokens,
	}
}

var kindStatus = map[service.Kind]int{
	service.KindQuestNotFound:       http.StatusNotFound,
	service.KindProfileNotFound:     http.StatusNotFound,
	service.KindNotOwner:            http.StatusForbidden,
	service.KindInvalidTimeOrder:    http.StatusConflict,
	service.KindPersistenceConflict: http.StatusConflict,
	service.KindUsernameTaken:       http.StatusConflict,
	service.KindStoreUnavailable:    http.StatusServiceUnavailable,
	service.KindInvalidInput:        http.StatusBadRequest,
}

// writeError maps a service error to its status code and a stable error kind.
func writeError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := gin.H{"error": string(kind)}
	if kind == service.KindInvalidInput {
		body["message"] = err.Error()
	}
	if kind.Retryable() {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": string(service.KindInvalidInput), "message": msg})
}

// callerID returns the authenticated profile ID, answering 401 when absent.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.ProfileID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return id, ok
}

// pathID parses a UUID path parameter, answering 400 when malformed.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "malformed "+name)
		return uuid.Nil, false
	}
	return id, true
}

var errNoBody = errors.New("request body required")
