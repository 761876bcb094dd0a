package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumenmind/memoryengine/internal/http/response"
	"github.com/lumenmind/memoryengine/internal/platform/apierr"
)

// RequireUserID trusts an already-authenticated X-User-Id header, standing
// in for the out-of-scope collaborator's session resolution (§4.10.1). It
// never validates a token itself; a front-end is responsible for only
// forwarding the header once it has authenticated the caller.
func RequireUserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-Id")
		userID, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, apierr.Invalid(err))
			c.Abort()
			return
		}
		c.Set("user_id", userID.String())
		c.Set("user_id_uuid", userID)
		c.Next()
	}
}

// UserID reads the uuid stashed by RequireUserID. Callers should only use
// this inside a handler chain behind RequireUserID.
func UserID(c *gin.Context) uuid.UUID {
	v, ok := c.Get("user_id_uuid")
	if !ok {
		return uuid.Nil
	}
	id, _ := v.(uuid.UUID)
	return id
}
