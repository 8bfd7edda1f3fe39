package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key holding the request ID that
// Success and Fail echo back in the response meta.
const ContextKeyRequestID = "request_id"

// RequestIDMiddleware tags every request with an ID, honoring an inbound
// X-Request-ID so pipeline clients can correlate an upload with the worker
// log lines it produces.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
