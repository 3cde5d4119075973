package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/macrolog/internal/audit/domain"
	"github.com/smallbiznis/macrolog/internal/audit/repository"
	"github.com/smallbiznis/macrolog/internal/clock"
	obscontext "github.com/smallbiznis/macrolog/internal/observability/context"
	"github.com/smallbiznis/macrolog/pkg/db"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()

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
	fake := clock.NewFakeClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	return NewService(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: fake,
	}), fake
}

func TestRecordSuccessAndFailure(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithSession(ctx, "session-abcdef", "ana@example.com")

	if err := svc.Record(ctx, auditdomain.RecordRequest{
		UserID:   "ana@example.com",
		Action:   auditdomain.ActionUpload,
		Provider: "drive",
		Filename: "historial_consumo_ana@example.com_2024-05-01.csv",
		RemoteID: "file-1",
		Entries:  2,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	fake.Advance(time.Minute)
	if err := svc.Record(ctx, auditdomain.RecordRequest{
		UserID:   "ana@example.com",
		Action:   auditdomain.ActionUpload,
		Provider: "drive",
		Filename: "historial_consumo_ana@example.com_2024-05-01.csv",
		Entries:  3,
		Err:      errors.New("remote_write_failed"),
	}); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	records, err := svc.ListByUser(context.Background(), "ana@example.com", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	latest := records[0]
	if latest.Outcome != auditdomain.OutcomeFailed || latest.Error != "remote_write_failed" {
		t.Fatalf("unexpected latest record: %+v", latest)
	}
	if records[1].Outcome != auditdomain.OutcomeOK || records[1].RemoteID != "file-1" {
		t.Fatalf("unexpected first record: %+v", records[1])
	}
	if got := records[1].Metadata["request_id"]; got != "req-1" {
		t.Fatalf("expected request id metadata, got %v", got)
	}
	if got := records[1].Metadata["session_id"]; got != "****cdef" {
		t.Fatalf("expected masked session id, got %v", got)
	}
}

func TestRecordValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Record(ctx, auditdomain.RecordRequest{UserID: "ana@example.com"}); !errors.Is(err, auditdomain.ErrInvalidAction) {
		t.Fatalf("expected invalid action, got %v", err)
	}
	if err := svc.Record(ctx, auditdomain.RecordRequest{Action: auditdomain.ActionUpload}); !errors.Is(err, auditdomain.ErrInvalidUser) {
		t.Fatalf("expected invalid user, got %v", err)
	}
	if _, err := svc.ListByUser(ctx, " ", 10); !errors.Is(err, auditdomain.ErrInvalidUser) {
		t.Fatalf("expected invalid user, got %v", err)
	}
}

func TestListByUserFiltersOtherUsers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, user := range []string{"ana@example.com", "luis@example.com", "ana@example.com"} {
		if err := svc.Record(ctx, auditdomain.RecordRequest{UserID: user, Action: auditdomain.ActionUpload}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	records, err := svc.ListByUser(ctx, "luis@example.com", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].UserID != "luis@example.com" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestPruneDeletesRecordsBeforeCutoff(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	if err := svc.Record(ctx, auditdomain.RecordRequest{UserID: "ana@example.com", Action: auditdomain.ActionUpload}); err != nil {
		t.Fatalf("record: %v", err)
	}
	fake.Advance(2 * time.Hour)
	cutoff := fake.Now()
	fake.Advance(time.Minute)
	if err := svc.Record(ctx, auditdomain.RecordRequest{UserID: "ana@example.com", Action: auditdomain.ActionUpload, Filename: "recent.csv"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	removed, err := svc.Prune(ctx, cutoff)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	records, err := svc.ListByUser(ctx, "ana@example.com", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Filename != "recent.csv" {
		t.Fatalf("unexpected records: %+v", records)
	}

	if removed, err := svc.Prune(ctx, time.Time{}); err != nil || removed != 0 {
		t.Fatalf("expected zero cutoff to be a no-op, got %d %v", removed, err)
	}
}
