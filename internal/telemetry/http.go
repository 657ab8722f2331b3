package telemetry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID propagates the caller's request ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			v, err := uuid.NewV7()
			if err != nil {
				v = uuid.New()
			}
			id = v.String()
		}

		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog logs one line per request once it has been served.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		lvl := slog.LevelInfo
		switch {
		case status >= 500:
			lvl = slog.LevelError
		case status >= 400:
			lvl = slog.LevelWarn
		}

		slog.Log(c.Request.Context(), lvl, fmt.Sprintf("http: %s %s", c.Request.Method, c.Request.URL.Path),
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			requestIDKey, c.GetString(requestIDKey),
		)
	}
}
