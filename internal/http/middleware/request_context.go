package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AttachRequestID stamps every request with an id before the middleware
// and handlers registered after it run (the router places it after only
// gin.Recovery and the otelgin tracer), so RequestLogger and response.RespondError
// always have one to echo back, matching the teacher's request-context
// pattern without needing its fuller trace/session payload.
func AttachRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-Id", requestID)
		c.Next()
	}
}
