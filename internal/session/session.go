package session

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/macrolog/internal/auth/oauth"
	"github.com/smallbiznis/macrolog/internal/ledger"
)

var (
	ErrSessionNotFound = errors.New("session_not_found")
	ErrInvalidEmail    = errors.New("invalid_email")
)

// Session is everything one user interaction needs: who the user is, what
// they logged today and how they authorized remote storage.
type Session struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Ledger     *ledger.Ledger `json:"ledger"`
	Auth       *oauth.State   `json:"auth"`
	CreatedAt  time.Time      `json:"created_at"`
	LastSeenAt time.Time      `json:"last_seen_at"`
	// ReconciledFile is the in-progress backup whose remote rows are already
	// merged into Ledger. Uploads before that would overwrite them.
	ReconciledFile string `json:"reconciled_file,omitempty"`
}

func New(email string, now time.Time) (*Session, error) {
	userID, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Ledger:     ledger.New(),
		Auth:       &oauth.State{Status: oauth.StatusUnauthenticated},
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

// NormalizeEmail validates a bare address and lower-cases it.
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

func (s *Session) ensureDefaults() {
	if s.Ledger == nil {
		s.Ledger = ledger.New()
	}
	if s.Auth == nil {
		s.Auth = &oauth.State{Status: oauth.StatusUnauthenticated}
	}
}

type Store interface {
	Create(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// Save persists sess and records seenAt as its last activity, which
	// slides the expiry.
	Save(ctx context.Context, sess *Session, seenAt time.Time) error
	Delete(ctx context.Context, id string) error
}
