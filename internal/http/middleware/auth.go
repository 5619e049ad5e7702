package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProfileIDKey is the gin context key holding the authenticated profile ID.
const ProfileIDKey = "profile_id"

// TokenParser verifies a bearer token and returns the profile it belongs to.
type TokenParser interface {
	Parse(token string) (uuid.UUID, error)
}

// JWT rejects requests without a valid bearer token and stores the caller's
// profile ID in the context.
func JWT(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ProfileIDKey, id)
		c.Next()
	}
}

// ProfileID returns the profile ID set by JWT.
func ProfileID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ProfileIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
