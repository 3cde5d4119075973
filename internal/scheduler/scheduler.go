package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	auditdomain "github.com/smallbiznis/macrolog/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/macrolog/internal/catalog/domain"
	"github.com/smallbiznis/macrolog/internal/clock"
	obsmetrics "github.com/smallbiznis/macrolog/internal/observability/metrics"
	"github.com/smallbiznis/macrolog/internal/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// sweeper is implemented by stores that do not expire entries on their own.
type sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Sessions session.Store
	Catalog  catalogdomain.Service
	AuditSvc auditdomain.Service         `optional:"true"`
	Metrics  *obsmetrics.SchedulerMetrics `optional:"true"`
	Config   Config                      `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	clock    clock.Clock
	sessions session.Store
	catalog  catalogdomain.Service
	auditSvc auditdomain.Service
	metrics  *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Sessions == nil || p.Catalog == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		clock:    p.Clock,
		sessions: p.Sessions,
		catalog:  p.Catalog,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	// deadline is a soft timeout; the next tick retries
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncJobTimeout(name)
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"sweep_sessions", s.SweepSessionsJob},
		{"warm_catalog", s.WarmCatalogJob},
		{"prune_backup_records", s.PruneBackupRecordsJob},
	}

	for _, job := range jobs {
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepSessionsJob removes expired in-process sessions. Redis expires keys itself.
func (s *Scheduler) SweepSessionsJob(ctx context.Context) error {
	sw, ok := s.sessions.(sweeper)
	if !ok {
		return nil
	}
	removed, err := sw.Sweep(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.log.Info("swept expired sessions", zap.Int("removed", removed))
	}
	return nil
}

// WarmCatalogJob retries the catalog fetch until one succeeds; afterwards it is a no-op.
func (s *Scheduler) WarmCatalogJob(ctx context.Context) error {
	_, err := s.catalog.Load(ctx)
	return err
}

func (s *Scheduler) PruneBackupRecordsJob(ctx context.Context) error {
	if s.auditSvc == nil {
		return nil
	}
	_, err := s.auditSvc.Prune(ctx, s.clock.Now().Add(-s.cfg.AuditRetention))
	return err
}
