package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/macrolog/internal/clock"
	"go.uber.org/zap"
)

const (
	DefaultCookieName = "_sid"
	defaultLockTTL    = 2 * time.Minute
)

// Manager owns the session cookie and serializes interactions per session.
type Manager struct {
	cookieName string
	secure     bool
	ttl        time.Duration

	store  Store
	clock  clock.Clock
	log    *zap.Logger
	local  *localLocks
	locker *Locker
}

type ManagerOptions struct {
	Secure bool
	TTL    time.Duration
	Locker *Locker
}

func NewManager(store Store, clk clock.Clock, log *zap.Logger, opts ManagerOptions) *Manager {
	return &Manager{
		cookieName: DefaultCookieName,
		secure:     opts.Secure,
		ttl:        opts.TTL,
		store:      store,
		clock:      clk,
		log:        log.Named("session.manager"),
		local:      newLocalLocks(),
		locker:     opts.Locker,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	token, err := c.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}
	if strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

func (m *Manager) Set(c *gin.Context, value string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(m.clock.Now()).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, value, maxAge, "/", "", m.secure, true)
}

// Refresh re-issues the cookie so it lapses together with the sliding store expiry.
func (m *Manager) Refresh(c *gin.Context, sess *Session) {
	m.Set(c, sess.ID, m.clock.Now().Add(m.ttl))
}

func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, "/", "", m.secure, true)
}

// ExpiresAt is when sess lapses if it sees no further activity.
func (m *Manager) ExpiresAt(sess *Session) time.Time {
	return sess.LastSeenAt.Add(m.ttl)
}

func (m *Manager) Create(ctx context.Context, email string) (*Session, error) {
	sess, err := New(email, m.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	m.log.Info("session created", zap.String("session_id", sess.ID))
	return sess, nil
}

func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrSessionNotFound
	}
	return m.store.Get(ctx, id)
}

// Save persists sess and slides its expiry.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	return m.store.Save(ctx, sess, m.clock.Now())
}

// Destroy ends the session, discarding its ledger and credential.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.log.Info("session destroyed", zap.String("session_id", id))
	return nil
}

// Lock blocks until no other interaction holds the session. Callers must
// invoke the returned release func.
func (m *Manager) Lock(ctx context.Context, id string) (func(), error) {
	releaseLocal, err := m.local.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.locker == nil {
		return releaseLocal, nil
	}

	key := lockKeyPrefix + id
	token, err := m.locker.Lock(ctx, key, defaultLockTTL)
	if err != nil {
		releaseLocal()
		return nil, err
	}
	return func() {
		if err := m.locker.Release(context.Background(), key, token); err != nil {
			m.log.Warn("failed to release session lock", zap.Error(err))
		}
		releaseLocal()
	}, nil
}
