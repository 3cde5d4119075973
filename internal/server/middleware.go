package server

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/macrolog/internal/observability/context"
	"github.com/smallbiznis/macrolog/internal/observability/logger"
	"github.com/smallbiznis/macrolog/internal/ratelimit"
	"github.com/smallbiznis/macrolog/internal/session"
	"go.uber.org/zap"
)

const (
	contextSessionKey   = "session"
	contextDestroyedKey = "session_destroyed"
)

// SessionRequired loads the cookie session and holds its lock for the rest of
// the chain, persisting the session when the handler returns.
func (s *Server) SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		release, err := s.sessions.Lock(ctx, id)
		if err != nil {
			logger.FromContext(ctx).Warn("session lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		defer release()

		sess, err := s.sessions.Load(ctx, id)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				s.sessions.Clear(c)
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}

		c.Set(contextSessionKey, sess)
		c.Request = c.Request.WithContext(obscontext.WithSession(ctx, sess.ID, sess.UserID))
		s.sessions.Refresh(c, sess)

		c.Next()

		if c.GetBool(contextDestroyedKey) {
			return
		}
		if err := s.sessions.Save(context.WithoutCancel(c.Request.Context()), sess); err != nil {
			logger.FromContext(c.Request.Context()).Warn("session save failed", zap.Error(err))
		}
	}
}

func currentSession(c *gin.Context) (*session.Session, bool) {
	value, ok := c.Get(contextSessionKey)
	if !ok {
		return nil, false
	}
	sess, ok := value.(*session.Session)
	return sess, ok && sess != nil
}

// SessionCreateRateLimit throttles new sessions per client address.
func (s *Server) SessionCreateRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		result, err := s.limiter.AllowSessionCreate(c.Request.Context(), c.ClientIP())
		if !s.admit(c, result, err, "session-create") {
			return
		}
		c.Next()
	}
}

// WriteRateLimit throttles remote writes per session. It must run after
// SessionRequired.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		sess, ok := currentSession(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		result, err := s.limiter.AllowWrite(c.Request.Context(), sess.ID)
		if !s.admit(c, result, err, "session-write") {
			return
		}
		c.Next()
	}
}

func (s *Server) admit(c *gin.Context, result *ratelimit.RateLimitResult, err error, reason string) bool {
	log := logger.FromContext(c.Request.Context())
	if err != nil {
		log.Warn("rate limit check failed", zap.String("reason", reason), zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return false
	}
	if result.Allowed {
		return true
	}

	log.Warn("rate limit exceeded", zap.String("reason", reason), zap.String("route", normalizeRateLimitEndpoint(c)))
	retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
	return false
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	endpoint := c.FullPath()
	if endpoint == "" {
		endpoint = c.Request.URL.Path
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
