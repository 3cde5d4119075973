package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	auditdomain "github.com/smallbiznis/macrolog/internal/audit/domain"
	"github.com/smallbiznis/macrolog/internal/audit/repository"
	auditservice "github.com/smallbiznis/macrolog/internal/audit/service"
	catalogdomain "github.com/smallbiznis/macrolog/internal/catalog/domain"
	"github.com/smallbiznis/macrolog/internal/clock"
	"github.com/smallbiznis/macrolog/internal/config"
	obsmetrics "github.com/smallbiznis/macrolog/internal/observability/metrics"
	"github.com/smallbiznis/macrolog/internal/session"
	"github.com/smallbiznis/macrolog/pkg/db"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

type stubCatalog struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (c *stubCatalog) Load(ctx context.Context) ([]catalogdomain.FoodItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return []catalogdomain.FoodItem{}, c.err
	}
	return []catalogdomain.FoodItem{{Name: "Apple"}}, nil
}

func (c *stubCatalog) Lookup(ctx context.Context, name string) (catalogdomain.FoodItem, error) {
	return catalogdomain.FoodItem{}, catalogdomain.ErrFoodNotFound
}

func (c *stubCatalog) Names(ctx context.Context) ([]string, error) {
	return nil, nil
}

func newTestScheduler(t *testing.T, store session.Store, catalog catalogdomain.Service, auditSvc auditdomain.Service, fake *clock.FakeClock) *Scheduler {
	t.Helper()
	s, err := New(Params{
		Log:      zap.NewNop(),
		Clock:    fake,
		Sessions: store,
		Catalog:  catalog,
		AuditSvc: auditSvc,
		Config:   Config{AuditRetention: 24 * time.Hour},
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Params{Log: zap.NewNop()}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := obsmetrics.NewSchedulerMetricsWith(registry)
	if err != nil {
		t.Fatalf("scheduler metrics: %v", err)
	}

	s := &Scheduler{log: zap.NewNop(), clock: clock.NewFakeClock(time.Time{}), metrics: m}
	err = s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := getCounterValue(t, registry, "macrolog_scheduler_job_timeouts_total", map[string]string{"job": "timeout_job"}); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}
	errorLabels := map[string]string{
		"job":    "timeout_job",
		"reason": obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "macrolog_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunJobWrapsFailures(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := obsmetrics.NewSchedulerMetricsWith(registry)
	if err != nil {
		t.Fatalf("scheduler metrics: %v", err)
	}
	boom := errors.New("boom")

	s := &Scheduler{log: zap.NewNop(), clock: clock.NewFakeClock(time.Time{}), metrics: m}
	err = s.runJob(context.Background(), "failing_job", time.Second, func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "failing_job: ") {
		t.Fatalf("expected job name prefix, got %q", err.Error())
	}
	if got := getCounterValue(t, registry, "macrolog_scheduler_job_runs_total", map[string]string{"job": "failing_job"}); got != 1 {
		t.Fatalf("expected run count 1, got %v", got)
	}
	errorLabels := map[string]string{"job": "failing_job", "reason": obsmetrics.SchedulerJobReasonError}
	if got := getCounterValue(t, registry, "macrolog_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestSweepSessionsJobRemovesExpired(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	store := session.NewMemoryStore(time.Hour, fake)

	old, err := session.New("old@example.com", fake.Now())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := store.Create(context.Background(), old); err != nil {
		t.Fatalf("create: %v", err)
	}

	fake.Advance(45 * time.Minute)
	fresh, err := session.New("fresh@example.com", fake.Now())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := store.Create(context.Background(), fresh); err != nil {
		t.Fatalf("create: %v", err)
	}

	fake.Advance(30 * time.Minute)
	s := newTestScheduler(t, store, &stubCatalog{}, nil, fake)
	if err := s.SweepSessionsJob(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got := store.Len(); got != 1 {
		t.Fatalf("expected 1 session left, got %d", got)
	}
	if _, err := store.Get(context.Background(), fresh.ID); err != nil {
		t.Fatalf("expected fresh session to survive, got %v", err)
	}
}

func TestRunOnceReportsCatalogFailureAndRetries(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	catalog := &stubCatalog{err: catalogdomain.ErrDataUnavailable}
	s := newTestScheduler(t, session.NewMemoryStore(time.Hour, fake), catalog, nil, fake)

	err := s.RunOnce(context.Background())
	if !errors.Is(err, catalogdomain.ErrDataUnavailable) {
		t.Fatalf("expected data unavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "warm_catalog") {
		t.Fatalf("expected job name in error, got %q", err.Error())
	}

	catalog.mu.Lock()
	catalog.err = nil
	catalog.mu.Unlock()
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected clean run, got %v", err)
	}
	if catalog.calls != 2 {
		t.Fatalf("expected 2 catalog loads, got %d", catalog.calls)
	}
}

func TestPruneBackupRecordsJob(t *testing.T) {
	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := repository.Migrate(dbConn); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: fake,
	})

	ctx := context.Background()
	record := func(name string) {
		t.Helper()
		if err := auditSvc.Record(ctx, auditdomain.RecordRequest{
			UserID:   "ana@example.com",
			Action:   auditdomain.ActionUpload,
			Provider: "drive",
			Filename: name,
			RemoteID: "file-1",
			Entries:  1,
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	record("historial_consumo_ana@example.com_2026-03-01.csv")
	fake.Advance(48 * time.Hour)
	record("historial_consumo_ana@example.com_2026-03-03.csv")
	fake.Advance(time.Hour)

	s := newTestScheduler(t, session.NewMemoryStore(time.Hour, fake), &stubCatalog{}, auditSvc, fake)
	if err := s.PruneBackupRecordsJob(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	records, err := auditSvc.ListByUser(ctx, "ana@example.com", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record after prune, got %d", len(records))
	}
	if records[0].Filename != "historial_consumo_ana@example.com_2026-03-03.csv" {
		t.Fatalf("unexpected surviving record %q", records[0].Filename)
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}

func TestNewSchedulerStopsRunLoop(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	catalog := &stubCatalog{}
	s := newTestScheduler(t, session.NewMemoryStore(time.Hour, fake), catalog, nil, fake)

	lc := fxtest.NewLifecycle(t)
	NewScheduler(lc, config.Config{Scheduler: config.SchedulerConfig{Enabled: true}}, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := lc.Stop(ctx); err != nil {
		t.Fatalf("expected run loop to stop, got %v", err)
	}
}

func TestNewSchedulerDisabled(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	catalog := &stubCatalog{}
	s := newTestScheduler(t, session.NewMemoryStore(time.Hour, fake), catalog, nil, fake)

	lc := fxtest.NewLifecycle(t)
	NewScheduler(lc, config.Config{}, s)
	lc.RequireStart()
	lc.RequireStop()

	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	if catalog.calls != 0 {
		t.Fatalf("expected no runs when disabled, got %d", catalog.calls)
	}
}
