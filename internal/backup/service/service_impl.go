package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/macrolog/internal/audit/domain"
	"github.com/smallbiznis/macrolog/internal/audit/masking"
	backupdomain "github.com/smallbiznis/macrolog/internal/backup/domain"
	"github.com/smallbiznis/macrolog/internal/config"
	"github.com/smallbiznis/macrolog/internal/ledger"
	obsmetrics "github.com/smallbiznis/macrolog/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Store      backupdomain.ObjectStore
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	store      backupdomain.ObjectStore
	scratchDir string
	location   *time.Location
	log        *zap.Logger
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) backupdomain.Service {
	return &Service{
		store:      p.Store,
		scratchDir: p.Cfg.Backup.ScratchDir,
		location:   p.Cfg.Location(),
		log:        p.Log.Named("backup.service"),
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Upload(ctx context.Context, cred backupdomain.Credential, userID string, content []byte, filename string) error {
	return s.upload(ctx, cred, userID, content, filename, countRows(content))
}

func (s *Service) UploadLedger(ctx context.Context, cred backupdomain.Credential, userID string, entries []ledger.Entry, filename string) error {
	content, err := backupdomain.EncodeLedger(entries)
	if err != nil {
		return fmt.Errorf("%w: %w", backupdomain.ErrRemoteWrite, err)
	}
	return s.upload(ctx, cred, userID, content, filename, len(entries))
}

func (s *Service) upload(ctx context.Context, cred backupdomain.Credential, userID string, content []byte, filename string, rows int) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return backupdomain.ErrInvalidUser
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return backupdomain.ErrInvalidFilename
	}

	obj, err := s.write(ctx, cred, content, filename)

	outcome := auditdomain.OutcomeOK
	if err != nil {
		outcome = auditdomain.OutcomeFailed
	}
	s.obsMetrics.RecordBackupUpload(ctx, s.store.Provider(), outcome)
	s.audit(ctx, auditdomain.RecordRequest{
		UserID:   userID,
		Action:   auditdomain.ActionUpload,
		Provider: s.store.Provider(),
		Filename: filename,
		RemoteID: obj.ID,
		Entries:  rows,
		Err:      err,
	})

	if err != nil {
		s.log.Warn("backup upload failed",
			zap.String("user", masking.MaskEmail(userID)),
			zap.String("filename", filename),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", backupdomain.ErrRemoteWrite, err)
	}

	s.log.Info("backup uploaded",
		zap.String("user", masking.MaskEmail(userID)),
		zap.String("filename", filename),
		zap.String("remote_id", obj.ID),
		zap.Int("rows", rows),
	)
	return nil
}

// write stages content in a scratch file, then updates the live object with
// the same name or creates a new one. The scratch file is always removed.
func (s *Service) write(ctx context.Context, cred backupdomain.Credential, content []byte, filename string) (backupdomain.Object, error) {
	scratch, err := os.CreateTemp(s.scratchDir, "macrolog-*.csv")
	if err != nil {
		return backupdomain.Object{}, err
	}
	defer os.Remove(scratch.Name())

	if _, err := scratch.Write(content); err != nil {
		scratch.Close()
		return backupdomain.Object{}, err
	}
	if err := scratch.Close(); err != nil {
		return backupdomain.Object{}, err
	}

	body, err := os.Open(scratch.Name())
	if err != nil {
		return backupdomain.Object{}, err
	}
	defer body.Close()

	existing, err := s.store.Find(ctx, cred, filename)
	switch {
	case err == nil:
		return s.store.Update(ctx, cred, existing, body)
	case errors.Is(err, backupdomain.ErrObjectNotFound):
		return s.store.Create(ctx, cred, filename, body)
	default:
		return backupdomain.Object{}, err
	}
}

func (s *Service) Restore(ctx context.Context, cred backupdomain.Credential, filename string) ([]ledger.Entry, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, backupdomain.ErrInvalidFilename
	}

	obj, err := s.store.Find(ctx, cred, filename)
	if errors.Is(err, backupdomain.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backupdomain.ErrRemoteRead, err)
	}

	body, err := s.store.Download(ctx, cred, obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backupdomain.ErrRemoteRead, err)
	}
	defer body.Close()

	entries, err := backupdomain.DecodeLedger(body, s.location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backupdomain.ErrRemoteRead, err)
	}

	s.log.Info("backup restored", zap.String("filename", filename), zap.Int("rows", len(entries)))
	return entries, nil
}

func (s *Service) audit(ctx context.Context, req auditdomain.RecordRequest) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, req); err != nil {
		s.log.Warn("backup audit record failed", zap.String("filename", req.Filename), zap.Error(err))
	}
}

// countRows counts data rows below the header line.
func countRows(content []byte) int {
	return bytes.Count(bytes.TrimRight(content, "\n"), []byte("\n"))
}
