package httpd

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/machbase/neo-bayes/mods/logging"
)

func RecoveryWithLogging(log logging.Log, recovery ...gin.RecoveryFunc) gin.HandlerFunc {
	gin.DefaultWriter = log
	gin.DefaultErrorWriter = log

	if len(recovery) > 0 {
		return gin.CustomRecoveryWithWriter(log, recovery[0])
	}
	return gin.CustomRecoveryWithWriter(log, func(c *gin.Context, err any) {
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

func HttpLogger(loggingName string) gin.HandlerFunc {
	log := logging.GetLog(loggingName)
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		url := c.Request.Host + c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; len(raw) > 0 {
			url = url + "?" + raw
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()
		if len(errorMessage) > 0 {
			errorMessage = "\n" + errorMessage
		}

		level := logging.LevelDebug
		switch {
		case statusCode >= http.StatusInternalServerError:
			level = logging.LevelError
		case statusCode >= http.StatusBadRequest:
			level = logging.LevelWarn
		}

		log.Logf(level, "%3d | %13v | %15s | %s %-7s %s%s",
			statusCode,
			latency,
			c.ClientIP(),
			c.Request.Proto,
			c.Request.Method,
			url,
			errorMessage,
		)
	}
}
