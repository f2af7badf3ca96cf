package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/renthol/rental-service/internal/infra/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags the request with a correlation ID, echoed back in the
// response header and attached to the context for log enrichment. A caller
// may supply its own ID, but only a well-formed UUID is accepted so log
// streams cannot be polluted with arbitrary header values.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, reqID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey{}, reqID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
