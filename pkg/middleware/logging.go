package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// Logging はリクエストのJSON構造化ログを出力するGinミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、user_id（セッション解決済みの場合）を含む。
func Logging(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

		args := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Float64("duration_ms", durationMs),
		}
		if userID := GetUserID(c); userID != "" {
			args = append(args, slog.String("user_id", userID))
		}

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		logger.Log(c.Request.Context(), level, "http_request", args...)
	}
}
