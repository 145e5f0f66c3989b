package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// contextKeyUserID はginコンテキストに保存するユーザーIDのキー。
	contextKeyUserID = "user_id"
	// contextKeySession はginコンテキストに保存するセッションのキー。
	contextKeySession = "session"
)

// Session はリクエストに紐づく解決済みセッション。
type Session struct {
	// ID はセッションID。
	ID string
	// UserID は認証済みユーザーのID。
	UserID string
	// AccessToken はマネージドバックエンドのアクセストークン。
	AccessToken string
}

// SessionResolver はCookieの値からセッションを解決する。
// 無効なトークンはfalse、ストア障害はエラーで返す。
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (Session, bool, error)
}

// LoadSession はセッションCookieを解決し、有効ならコンテキストにユーザーIDとセッションを設定する。
// Cookieが無い場合や無効な場合もリクエストは続行する。
func LoadSession(resolver SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		sess, ok, err := resolver.ResolveSession(c.Request.Context(), token)
		if err != nil {
			slog.Error("failed to resolve session",
				slog.String("path", c.Request.URL.Path),
				slog.String("error", err.Error()),
			)
		}
		if ok {
			c.Set(contextKeyUserID, sess.UserID)
			c.Set(contextKeySession, sess)
		}
		c.Next()
	}
}

// RequireSession はセッションが解決されていないリクエストを401で中断する。
// LoadSessionの後に配置する必要がある。
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// LoadSessionミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get(contextKeyUserID)
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetSession はGinコンテキストから解決済みセッションを取得する。
func GetSession(c *gin.Context) (Session, bool) {
	v, exists := c.Get(contextKeySession)
	if !exists {
		return Session{}, false
	}
	sess, ok := v.(Session)
	return sess, ok
}
