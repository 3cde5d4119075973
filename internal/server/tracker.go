package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/macrolog/internal/auth/oauth"
	backupdomain "github.com/smallbiznis/macrolog/internal/backup/domain"
	"github.com/smallbiznis/macrolog/internal/observability/logger"
	"github.com/smallbiznis/macrolog/internal/summary"
	"go.uber.org/zap"
)

const (
	warningCatalogUnavailable = "el catálogo de alimentos no está disponible"
	warningAuthorization      = "registro guardado en la sesión; autoriza el acceso al almacenamiento para respaldarlo"
	warningRemoteWrite        = "registro guardado en la sesión pero no se pudo respaldar"
)

func (s *Server) ListFoods(c *gin.Context) {
	names, err := s.catalogSvc.Names(c.Request.Context())
	if err != nil {
		logger.FromContext(c.Request.Context()).Warn("catalog unavailable", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"data": []string{}, "warning": warningCatalogUnavailable})
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"data": names})
}

type registerEntryRequest struct {
	Food      string   `json:"food"`
	QuantityG *float64 `json:"quantity_g"`
}

// RegisterEntry logs a food. The entry is kept in the session even when the
// backup cannot be written, so those outcomes answer 202 with a warning.
func (s *Server) RegisterEntry(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req registerEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Food) == "" {
		AbortWithError(c, newValidationError("food", "required", "food is required"))
		return
	}
	if req.QuantityG == nil {
		AbortWithError(c, newValidationError("quantity_g", "required", "quantity_g is required"))
		return
	}

	entry, err := s.tracker.RegisterFood(c.Request.Context(), sess, req.Food, *req.QuantityG)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"data": entry})
	case errors.Is(err, oauth.ErrAuthorizationPending):
		url, _ := oauth.PendingURL(err)
		c.JSON(http.StatusAccepted, gin.H{
			"data":              entry,
			"warning":           warningAuthorization,
			"authorization_url": url,
		})
	case errors.Is(err, backupdomain.ErrRemoteWrite):
		c.JSON(http.StatusAccepted, gin.H{"data": entry, "warning": warningRemoteWrite})
	default:
		AbortWithError(c, err)
	}
}

func (s *Server) ListEntries(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.tracker.Entries(c.Request.Context(), sess)})
}

type summaryResponse struct {
	Summary  *summary.DailySummary `json:"summary"`
	Progress *summary.Progress     `json:"progress"`
	Goals    summary.Goals         `json:"goals"`
	Restored int                   `json:"restored,omitempty"`
	Warning  string                `json:"warning,omitempty"`
}

func (s *Server) GetSummary(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	goals, err := s.bindGoals(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.tracker.DailySummary(c.Request.Context(), sess, goals)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := summaryResponse{
		Goals:    goals,
		Restored: result.Restored,
		Warning:  result.Warning,
	}
	if result.Present {
		resp.Summary = &result.Summary
		resp.Progress = &result.Progress
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSummaryReport(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	goals, err := s.bindGoals(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.tracker.Report(c.Request.Context(), sess, goals)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if len(doc) == 0 {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	filename := fmt.Sprintf("resumen_%s.pdf", s.clock.Now().In(s.cfg.Location()).Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (s *Server) CloseDay(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	result, err := s.tracker.CloseDay(c.Request.Context(), sess)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListBackups(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if s.auditSvc == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		limit = parsed
	}

	records, err := s.auditSvc.ListByUser(c.Request.Context(), sess.UserID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) bindGoals(c *gin.Context) (summary.Goals, error) {
	var query goalsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return summary.Goals{}, invalidRequestError()
	}
	return query.resolve(s.goals.Get())
}
