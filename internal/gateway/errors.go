package gateway

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dimiximid/mentoring-plat/internal/backend"
	"github.com/dimiximid/mentoring-plat/internal/model"
	"github.com/gin-gonic/gin"
)

// statusByKind はエラー分類からHTTPステータスへの変換表。
var statusByKind = map[model.Kind]int{
	model.KindValidation:   http.StatusBadRequest,
	model.KindService:      http.StatusBadRequest,
	model.KindUnauthorized: http.StatusUnauthorized,
	model.KindForbidden:    http.StatusForbidden,
	model.KindNotFound:     http.StatusNotFound,
	model.KindRateLimited:  http.StatusTooManyRequests,
	model.KindInternal:     http.StatusInternalServerError,
}

// statusFor はエラー分類に対応するHTTPステータスを返す。
func statusFor(kind model.Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// operation はエンドポイントごとのログ名と既定の公開メッセージ。
type operation struct {
	name     string
	failure  string
	notFound string
}

var (
	opRegister         = operation{name: "register", failure: "Registration failed"}
	opLogin            = operation{name: "login", failure: "Login failed", notFound: "Profile not found"}
	opLogout           = operation{name: "logout", failure: "Logout failed"}
	opGetProfile       = operation{name: "get_profile", failure: "Failed to fetch profile", notFound: "Profile not found"}
	opListMentors      = operation{name: "list_mentors", failure: "Failed to fetch mentors"}
	opCreateConnection = operation{name: "create_connection", failure: "Failed to create connection"}
	opListConnections  = operation{name: "list_connections", failure: "Failed to fetch connections"}
	opSendMessage      = operation{name: "send_message", failure: "Failed to send message"}
	opListMessages     = operation{name: "list_messages", failure: "Failed to fetch messages"}
	opAuthRateLimit    = operation{name: "auth_rate_limit"}
)

// rejectRateLimited はレート制限を超えたリクエストに429を返す。
func rejectRateLimited(c *gin.Context) {
	respondError(c, opAuthRateLimit, model.NewError(model.KindRateLimited, "Too many requests. Please try again later."))
}

// classify はバックエンドのエラーを分類付きエラーに変換する。
func (op operation) classify(err error) error {
	var e *model.Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, backend.ErrInvalidCredentials):
		return model.WrapError(model.KindUnauthorized, "Invalid credentials", err)
	case errors.Is(err, backend.ErrConflict):
		return model.WrapError(model.KindValidation, "User already registered", err)
	case errors.Is(err, backend.ErrNotFound) && op.notFound != "":
		return model.WrapError(model.KindNotFound, op.notFound, err)
	default:
		return model.WrapError(model.KindService, op.failure, err)
	}
}

// respondError はエラーをログに記録し、分類に応じたステータスと公開メッセージで応答する。
func respondError(c *gin.Context, op operation, err error) {
	kind := model.KindOf(err)
	status := statusFor(kind)

	attrs := []any{
		slog.String("operation", op.name),
		slog.String("kind", kind.String()),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", attrs...)
	} else {
		slog.Warn("request failed", attrs...)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": model.PublicMessage(err)})
}
