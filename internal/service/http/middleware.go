package http

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RequestLogging пишет строку structured-лога на каждый обработанный запрос.
func RequestLogging(logger *log.Entry) gin.HandlerFunc {
	if logger == nil {
		logger = log.NewEntry(log.New())
	}
	logger = logger.WithField("component", "http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(log.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= 500:
			entry.Error("запрос завершился ошибкой сервера")
		case c.Writer.Status() >= 400:
			entry.Warn("запрос отклонён")
		default:
			entry.Info("запрос обработан")
		}
	}
}
