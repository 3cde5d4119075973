package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/macrolog/internal/auth/oauth"
	"github.com/smallbiznis/macrolog/internal/session"
)

type createSessionRequest struct {
	Email string `json:"email"`
}

type sessionResponse struct {
	UserID     string       `json:"user_id"`
	AuthStatus oauth.Status `json:"auth_status"`
	Entries    int          `json:"entries"`
	CreatedAt  time.Time    `json:"created_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

func (s *Server) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sess, err := s.sessions.Create(c.Request.Context(), req.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	expiresAt := s.sessions.ExpiresAt(sess)
	s.sessions.Set(c, sess.ID, expiresAt)
	c.JSON(http.StatusCreated, gin.H{"data": s.sessionView(sess)})
}

func (s *Server) GetSession(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.sessionView(sess)})
}

// DeleteSession ends the session, discarding its ledger and credential.
func (s *Server) DeleteSession(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.sessions.Destroy(c.Request.Context(), sess.ID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set(contextDestroyedKey, true)
	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) sessionView(sess *session.Session) sessionResponse {
	return sessionResponse{
		UserID:     sess.UserID,
		AuthStatus: sess.Auth.CurrentStatus(),
		Entries:    sess.Ledger.Len(),
		CreatedAt:  sess.CreatedAt,
		ExpiresAt:  s.sessions.ExpiresAt(sess),
	}
}
