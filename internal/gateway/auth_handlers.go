package gateway

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dimiximid/mentoring-plat/internal/backend"
	"github.com/dimiximid/mentoring-plat/internal/model"
	"github.com/dimiximid/mentoring-plat/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// handleRegister はアイデンティティを作成し、そのIDでプロフィールを作成するハンドラを返す。
// プロフィール作成に失敗してもアイデンティティは削除しない。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, opRegister, bindError(err))
			return
		}

		ctx := c.Request.Context()
		identity, err := s.backend.SignUp(ctx, req.Email, req.Password)
		if err != nil {
			respondError(c, opRegister, opRegister.classify(err))
			return
		}

		profile, err := s.backend.CreateProfile(ctx, model.NewProfile{
			ID:        identity.ID,
			Name:      req.Name,
			Role:      req.Role,
			Expertise: req.Expertise,
			Bio:       req.Bio,
		})
		if err != nil {
			slog.Warn("identity created without profile",
				slog.String("user_id", identity.ID),
			)
			respondError(c, opRegister, opRegister.classify(err))
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"user":    profile,
		})
	}
}

// handleLogin はパスワード認証を行い、セッションCookieを発行するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, opLogin, bindError(err))
			return
		}

		ctx := c.Request.Context()
		identity, tokens, err := s.backend.SignInWithPassword(ctx, req.Email, req.Password)
		if err != nil {
			respondError(c, opLogin, opLogin.classify(err))
			return
		}

		profile, err := s.backend.GetProfile(ctx, identity.ID)
		if err != nil {
			// プロフィールの無いアイデンティティはログイン失敗として扱う
			if errors.Is(err, backend.ErrNotFound) {
				err = model.WrapError(model.KindService, "Profile not found", err)
			}
			respondError(c, opLogin, opLogin.classify(err))
			return
		}

		// 既存のセッションがあれば置き換える
		if prev, ok := middleware.GetSession(c); ok {
			if err := s.sessions.Revoke(ctx, prev.ID); err != nil {
				slog.Warn("failed to revoke previous session", slog.String("error", err.Error()))
			}
		}

		token, _, err := s.sessions.Create(ctx, identity.ID, tokens)
		if err != nil {
			respondError(c, opLogin, model.WrapError(model.KindInternal, "Internal server error", err))
			return
		}
		s.setSessionCookie(c, token)

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"user":    profile,
			"session": gin.H{
				"access_token":  tokens.AccessToken,
				"refresh_token": tokens.RefreshToken,
			},
		})
	}
}

// handleLogout はバックエンドからサインアウトし、セッションを失効させるハンドラを返す。
// セッションが無い場合も成功を返す。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sess, ok := middleware.GetSession(c); ok {
			ctx := c.Request.Context()
			if err := s.backend.SignOut(ctx, sess.AccessToken); err != nil {
				// 期限切れのアクセストークンはサインアウト済みとして扱う
				if !errors.Is(err, backend.ErrInvalidToken) {
					respondError(c, opLogout, opLogout.classify(err))
					return
				}
			}
			if err := s.sessions.Revoke(ctx, sess.ID); err != nil {
				respondError(c, opLogout, model.WrapError(model.KindInternal, "Internal server error", err))
				return
			}
		}
		s.clearSessionCookie(c)

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Logged out successfully",
		})
	}
}

// setSessionCookie はセッショントークンをHttpOnly Cookieに設定する。
func (s *Server) setSessionCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, s.sessionCookie(token, int(s.sessions.TTL().Seconds())))
}

// clearSessionCookie はセッションCookieを削除する。
func (s *Server) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, s.sessionCookie("", -1))
}

func (s *Server) sessionCookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.cookieSecure {
		// 別オリジンのフロントエンドから送信させるにはSecureとSameSite=Noneが必要
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: sameSite,
	}
}
