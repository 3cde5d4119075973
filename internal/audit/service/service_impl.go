package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/macrolog/internal/audit/domain"
	"github.com/smallbiznis/macrolog/internal/audit/masking"
	"github.com/smallbiznis/macrolog/internal/clock"
	obscontext "github.com/smallbiznis/macrolog/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 250
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Record(ctx context.Context, req auditdomain.RecordRequest) error {
	action := strings.TrimSpace(req.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return auditdomain.ErrInvalidUser
	}

	payload := map[string]any{}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}
	if sessionID, _ := obscontext.SessionFromContext(ctx); sessionID != "" {
		payload["session_id"] = masking.MaskSecret(sessionID)
	}

	record := auditdomain.BackupRecord{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Action:    action,
		Provider:  strings.TrimSpace(req.Provider),
		Filename:  req.Filename,
		RemoteID:  req.RemoteID,
		Outcome:   auditdomain.OutcomeOK,
		Entries:   req.Entries,
		CreatedAt: s.clock.Now().UTC(),
	}
	if req.Err != nil {
		record.Outcome = auditdomain.OutcomeFailed
		record.Error = req.Err.Error()
	}
	if len(payload) > 0 {
		record.Metadata = datatypes.JSONMap(payload)
	}

	if err := s.repo.Insert(ctx, s.db, &record); err != nil {
		s.log.Warn("failed to write backup record",
			zap.String("action", action),
			zap.String("user", masking.MaskEmail(userID)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]auditdomain.BackupRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, auditdomain.ErrInvalidUser
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListByUser(ctx, s.db, userID, limit)
}

func (s *Service) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, nil
	}
	removed, err := s.repo.DeleteBefore(ctx, s.db, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Info("pruned backup records", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}
