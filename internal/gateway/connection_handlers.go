package gateway

import (
	"net/http"
	"strings"

	"github.com/dimiximid/mentoring-plat/internal/model"
	"github.com/dimiximid/mentoring-plat/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// errForbidden は他人のデータを参照しようとしたときのエラー。
var errForbidden = model.NewError(model.KindForbidden, "Forbidden")

// ownPath はパスのuser_idを検証し、セッションのユーザーと一致する場合のみ返す。
// RequireSessionの後に呼び出す必要がある。
func ownPath(c *gin.Context) (string, error) {
	var path userPath
	if err := c.ShouldBindUri(&path); err != nil {
		return "", bindError(err)
	}
	if !strings.EqualFold(path.UserID, middleware.GetUserID(c)) {
		return "", errForbidden
	}
	return path.UserID, nil
}

// handleCreateConnection はセッションのユーザーをメンティーとして接続リクエストを作成するハンドラを返す。
func (s *Server) handleCreateConnection() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createConnectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, opCreateConnection, bindError(err))
			return
		}

		conn, err := s.backend.CreateConnection(c.Request.Context(), model.NewConnection{
			MentorID: req.MentorID,
			MenteeID: middleware.GetUserID(c),
			Status:   model.ConnectionStatusPending,
		})
		if err != nil {
			respondError(c, opCreateConnection, opCreateConnection.classify(err))
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"success":    true,
			"connection": conn,
		})
	}
}

// handleListConnections はユーザーがメンターまたはメンティーである接続の一覧を返すハンドラを返す。
func (s *Server) handleListConnections() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := ownPath(c)
		if err != nil {
			respondError(c, opListConnections, err)
			return
		}

		connections, err := s.backend.ListConnections(c.Request.Context(), userID)
		if err != nil {
			respondError(c, opListConnections, opListConnections.classify(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"connections": connections,
		})
	}
}
