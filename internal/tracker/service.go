package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/macrolog/internal/auth/oauth"
	backupdomain "github.com/smallbiznis/macrolog/internal/backup/domain"
	catalogdomain "github.com/smallbiznis/macrolog/internal/catalog/domain"
	"github.com/smallbiznis/macrolog/internal/clock"
	"github.com/smallbiznis/macrolog/internal/config"
	"github.com/smallbiznis/macrolog/internal/ledger"
	obsmetrics "github.com/smallbiznis/macrolog/internal/observability/metrics"
	"github.com/smallbiznis/macrolog/internal/providers/pdf"
	"github.com/smallbiznis/macrolog/internal/session"
	"github.com/smallbiznis/macrolog/internal/summary"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrEmptyLedger = errors.New("empty_ledger")

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	Catalog    catalogdomain.Service
	Auth       oauth.Service
	Backup     backupdomain.Service
	Filenames  backupdomain.Filenames
	PDF        pdf.Provider
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service runs one user interaction against the catalog, the session ledger
// and remote backup.
type Service struct {
	appName    string
	location   *time.Location
	log        *zap.Logger
	clock      clock.Clock
	catalog    catalogdomain.Service
	auth       oauth.Service
	backup     backupdomain.Service
	filenames  backupdomain.Filenames
	pdf        pdf.Provider
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		appName:    p.Cfg.AppName,
		location:   p.Cfg.Location(),
		log:        p.Log.Named("tracker.service"),
		clock:      p.Clock,
		catalog:    p.Catalog,
		auth:       p.Auth,
		backup:     p.Backup,
		filenames:  p.Filenames,
		pdf:        p.PDF,
		obsMetrics: p.ObsMetrics,
	}
}

type SummaryResult struct {
	Summary  summary.DailySummary `json:"summary"`
	Present  bool                 `json:"present"`
	Progress summary.Progress     `json:"progress"`
	Restored int                  `json:"restored"`
	Warning  string               `json:"warning,omitempty"`
}

type CloseResult struct {
	Filename string `json:"filename"`
	Entries  int    `json:"entries"`
	Warning  string `json:"warning,omitempty"`
}

// RegisterFood appends a consumption entry and backs up the day file. Rows
// already in the remote day file are merged first so the upload keeps them.
// The entry stays in the ledger even when the backup fails; the next
// successful upload carries it.
func (s *Service) RegisterFood(ctx context.Context, sess *session.Session, name string, quantity float64) (ledger.Entry, error) {
	food, err := s.catalog.Lookup(ctx, name)
	if err != nil {
		return ledger.Entry{}, err
	}

	now := s.now()
	entry, err := ledger.NewEntry(food, quantity, now)
	if err != nil {
		return ledger.Entry{}, err
	}

	filename := s.filenames.InProgress(sess.UserID, now)
	if _, err := s.reconcile(ctx, sess, filename); unreadable(err) {
		return ledger.Entry{}, err
	}

	sess.Ledger.Append(entry)
	s.obsMetrics.RecordEntry(ctx, quantity)

	if err := s.upload(ctx, sess, filename, sess.Ledger.Snapshot()); err != nil {
		return entry, err
	}
	sess.ReconciledFile = filename
	return entry, nil
}

// DailySummary merges today's remote file into the ledger the first time the
// session can reach remote storage, then sums the ledger.
func (s *Service) DailySummary(ctx context.Context, sess *session.Session, goals summary.Goals) (SummaryResult, error) {
	var result SummaryResult

	restored, err := s.reconcile(ctx, sess, s.filenames.InProgress(sess.UserID, s.now()))
	if err != nil {
		s.log.Warn("failed to restore today's ledger", zap.Error(err))
		result.Warning = "no se pudo recuperar el registro del día"
	}
	result.Restored = restored

	result.Summary, result.Present = summary.Summarize(sess.Ledger.Snapshot())
	if result.Present {
		result.Progress = summary.Compare(result.Summary, goals)
	}
	return result, nil
}

// reconcile merges the remote rows of filename ahead of the session's own
// entries, once per file. It is a no-op until the session is authenticated.
func (s *Service) reconcile(ctx context.Context, sess *session.Session, filename string) (int, error) {
	if sess.ReconciledFile == filename || sess.Auth.CurrentStatus() != oauth.StatusAuthenticated {
		return 0, nil
	}

	cred, err := s.auth.Credential(ctx, sess.Auth)
	if err != nil {
		return 0, err
	}

	remote, err := s.backup.Restore(ctx, cred, filename)
	if err != nil {
		s.resetOnRejection(sess, err)
		return 0, err
	}
	if len(remote) > 0 {
		sess.Ledger.Replace(append(remote, sess.Ledger.Snapshot()...))
	}
	sess.ReconciledFile = filename
	return len(remote), nil
}

// CloseDay writes the final snapshot under its own name, empties the
// in-progress file and clears the ledger.
func (s *Service) CloseDay(ctx context.Context, sess *session.Session) (CloseResult, error) {
	entries := sess.Ledger.Snapshot()
	if len(entries) == 0 {
		return CloseResult{}, ErrEmptyLedger
	}

	now := s.now()
	closing := s.filenames.Closing(sess.UserID, now)
	if err := s.upload(ctx, sess, closing, entries); err != nil {
		return CloseResult{}, err
	}

	result := CloseResult{Filename: closing, Entries: len(entries)}
	inProgress := s.filenames.InProgress(sess.UserID, now)
	if err := s.upload(ctx, sess, inProgress, nil); err != nil {
		s.log.Warn("failed to empty in-progress file after close", zap.Error(err))
		result.Warning = "el día se cerró pero el archivo en curso no se pudo vaciar"
	}

	sess.Ledger.Clear()
	// closed rows must not come back even if the blanking write failed
	sess.ReconciledFile = inProgress
	return result, nil
}

func (s *Service) Entries(ctx context.Context, sess *session.Session) []ledger.Entry {
	return sess.Ledger.Snapshot()
}

// Report renders the day summary as a PDF document.
func (s *Service) Report(ctx context.Context, sess *session.Session, goals summary.Goals) ([]byte, error) {
	result, err := s.DailySummary(ctx, sess, goals)
	if err != nil {
		return nil, err
	}

	now := s.now()
	data := pdf.DayReportData{
		AppName:     s.appName,
		UserID:      sess.UserID,
		Date:        now.Format("2006-01-02"),
		GeneratedAt: now.Format(backupdomain.TimestampLayout),
	}
	for _, e := range sess.Ledger.Snapshot() {
		data.Entries = append(data.Entries, pdf.DayReportEntry{
			Time:     e.Timestamp.In(s.location).Format("15:04"),
			Food:     e.FoodName,
			Quantity: formatAmount(e.QuantityG),
			Calories: formatAmount(e.Calories),
			Fat:      formatAmount(e.FatG),
			Protein:  formatAmount(e.ProteinG),
			Carbs:    formatAmount(e.CarbsG),
		})
	}
	if result.Present {
		data.Totals = pdf.DayReportEntry{
			Food:     "Total",
			Calories: formatAmount(result.Summary.Calories),
			Fat:      formatAmount(result.Summary.FatG),
			Protein:  formatAmount(result.Summary.ProteinG),
			Carbs:    formatAmount(result.Summary.CarbsG),
		}
		data.Goals = goalLines(result.Progress)
	}

	reader, err := s.pdf.GenerateDayReport(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("render day report: %w", err)
	}
	if reader == nil {
		return nil, nil
	}
	return io.ReadAll(reader)
}

func (s *Service) upload(ctx context.Context, sess *session.Session, filename string, entries []ledger.Entry) error {
	cred, err := s.auth.Credential(ctx, sess.Auth)
	if err != nil {
		return err
	}

	if err := s.backup.UploadLedger(ctx, cred, sess.UserID, entries, filename); err != nil {
		s.resetOnRejection(sess, err)
		return err
	}
	return nil
}

// resetOnRejection drops the credential when the store refused it or it could
// not be refreshed, so the next interaction starts a fresh authorization.
func (s *Service) resetOnRejection(sess *session.Session, err error) {
	if errors.Is(err, backupdomain.ErrCredentialRejected) || errors.Is(err, oauth.ErrTokenRefresh) {
		s.log.Info("credential rejected, authorization reset", zap.Error(err))
		s.auth.Reset(sess.Auth)
	}
}

// unreadable reports a read failure that leaves the day file unknown while
// the credential is still good. Appending then would overwrite remote rows.
// Credential failures fall through: the upload cannot write either.
func unreadable(err error) bool {
	return errors.Is(err, backupdomain.ErrRemoteRead) &&
		!errors.Is(err, backupdomain.ErrCredentialRejected) &&
		!errors.Is(err, oauth.ErrTokenRefresh)
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.location)
}

func goalLines(p summary.Progress) []pdf.GoalLine {
	macros := []struct {
		label string
		macro summary.Macro
	}{
		{"Calorías", p.Calories},
		{"Proteínas (g)", p.Protein},
		{"Grasas (g)", p.Fat},
		{"Carbohidratos (g)", p.Carbs},
	}

	lines := make([]pdf.GoalLine, 0, len(macros))
	for _, m := range macros {
		if m.macro.Goal == nil {
			continue
		}
		lines = append(lines, pdf.GoalLine{
			Label: m.label,
			Total: formatAmount(m.macro.Total),
			Goal:  formatAmount(*m.macro.Goal),
			Delta: formatDelta(*m.macro.Delta),
		})
	}
	return lines
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func formatDelta(v float64) string {
	out := formatAmount(v)
	if v > 0 && !strings.HasPrefix(out, "+") {
		out = "+" + out
	}
	return out
}
