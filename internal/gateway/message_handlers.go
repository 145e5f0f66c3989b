package gateway

import (
	"net/http"

	"github.com/dimiximid/mentoring-plat/internal/model"
	"github.com/dimiximid/mentoring-plat/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// handleSendMessage はセッションのユーザーを送信者としてメッセージを作成するハンドラを返す。
func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, opSendMessage, bindError(err))
			return
		}

		msg, err := s.backend.CreateMessage(c.Request.Context(), model.NewMessage{
			SenderID:   middleware.GetUserID(c),
			ReceiverID: req.ReceiverID,
			Content:    req.Content,
		})
		if err != nil {
			respondError(c, opSendMessage, opSendMessage.classify(err))
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"message": msg,
		})
	}
}

// handleListMessages はユーザーが送信者または受信者であるメッセージを古い順に返すハンドラを返す。
func (s *Server) handleListMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := ownPath(c)
		if err != nil {
			respondError(c, opListMessages, err)
			return
		}

		messages, err := s.backend.ListMessages(c.Request.Context(), userID)
		if err != nil {
			respondError(c, opListMessages, opListMessages.classify(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"messages": messages,
		})
	}
}
