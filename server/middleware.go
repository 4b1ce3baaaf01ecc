package server

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestID echoes the x-request-id header of the request or generates one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(headerRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.InfoContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"bytes", c.Writer.Size(),
			"requestId", c.GetString(headerRequestID),
		)
	}
}

// recovery turns panics into 500 responses.
func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		s.logger.ErrorContext(c.Request.Context(), "panic while serving request",
			"requestId", c.GetString(headerRequestID),
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		if c.Writer.Written() {
			c.Abort()
			return
		}
		s.renderError(c, fmt.Errorf("panic: %v", recovered))
	})
}
