package session

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/macrolog/internal/clock"
)

// MemoryStore keeps sessions in process. Expired sessions are dropped on
// access and by Sweep.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	clock    clock.Clock
	sessions map[string]*Session
}

func NewMemoryStore(ttl time.Duration, clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		clock:    clk,
		sessions: map[string]*Session{},
	}
}

func (s *MemoryStore) Create(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ensureDefaults()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.expired(sess) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Save(ctx context.Context, sess *Session, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return ErrSessionNotFound
	}
	// Sweep reads LastSeenAt under s.mu
	sess.LastSeenAt = seenAt
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Sweep drops every expired session and reports how many were removed.
func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) expired(sess *Session) bool {
	if s.ttl <= 0 {
		return false
	}
	return s.clock.Now().Sub(sess.LastSeenAt) > s.ttl
}
