package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Logger protokolliert Anfragen über logrus
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := log.WithFields(log.Fields{
			"component": "http",
			"method":    c.Request.Method,
			"path":      path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client":    c.ClientIP(),
		})

		switch {
		case len(c.Errors) > 0:
			entry.Error(c.Errors.String())
		case c.Writer.Status() >= 500:
			entry.Warn("Request failed")
		default:
			entry.Debug("Request handled")
		}
	}
}
