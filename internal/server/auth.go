package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/macrolog/internal/auth/oauth"
)

// Authorize reports the consent URL of the session, starting the flow when
// needed. With ?redirect=true the browser is sent straight to it.
func (s *Server) Authorize(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	_, err := s.oauthsvc.Credential(c.Request.Context(), sess.Auth)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": oauth.StatusAuthenticated}})
		return
	}

	url, pending := oauth.PendingURL(err)
	if !pending {
		AbortWithError(c, err)
		return
	}

	if redirect, _ := strconv.ParseBool(c.Query("redirect")); redirect {
		c.Redirect(http.StatusFound, url)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"status":            sess.Auth.CurrentStatus(),
		"authorization_url": url,
	}})
}

// AuthCallback completes the authorization code exchange for the session.
func (s *Server) AuthCallback(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if providerErr := strings.TrimSpace(c.Query("error")); providerErr != "" {
		AbortWithError(c, fmt.Errorf("%w: %s", oauth.ErrAuthorizationFailure, providerErr))
		return
	}

	err := s.oauthsvc.Exchange(c.Request.Context(), sess.Auth, c.Query("code"), c.Query("state"))
	if err != nil {
		if !errors.Is(err, oauth.ErrAuthorizationFailure) {
			err = fmt.Errorf("%w: %w", oauth.ErrAuthorizationFailure, err)
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": sess.Auth.CurrentStatus()}})
}
