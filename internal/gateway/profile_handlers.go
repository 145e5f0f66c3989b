package gateway

import (
	"net/http"

	"github.com/dimiximid/mentoring-plat/internal/model"
	"github.com/gin-gonic/gin"
)

// handleGetProfile は1件のプロフィールを返すハンドラを返す。
func (s *Server) handleGetProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		var path userPath
		if err := c.ShouldBindUri(&path); err != nil {
			respondError(c, opGetProfile, bindError(err))
			return
		}

		profile, err := s.backend.GetProfile(c.Request.Context(), path.UserID)
		if err != nil {
			respondError(c, opGetProfile, opGetProfile.classify(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"profile": profile,
		})
	}
}

// handleListMentors はロールがmentorのプロフィール一覧を返すハンドラを返す。
func (s *Server) handleListMentors() gin.HandlerFunc {
	return func(c *gin.Context) {
		mentors, err := s.backend.ListProfilesByRole(c.Request.Context(), model.RoleMentor)
		if err != nil {
			respondError(c, opListMentors, opListMentors.classify(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"mentors": mentors,
		})
	}
}
