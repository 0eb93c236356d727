package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Cors allows every origin, method and header.
func Cors(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	if reqHeaders := c.Request.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
		c.Header("Access-Control-Allow-Headers", reqHeaders)
	} else {
		c.Header("Access-Control-Allow-Headers", "*")
	}
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

// requestLogger logs every request and records it in the HTTP metrics.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()
		s.deps.Metrics.RecordHTTPRequest(c.Request.Method, route, status, elapsed)

		entry := s.logger.With(map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": status,
			"ms":     elapsed.Milliseconds(),
		})
		switch {
		case status >= 500:
			entry.Error("request failed")
		case route == "/metrics" || route == "/healthz":
			entry.Debug("request")
		default:
			entry.Info("request")
		}
	}
}
