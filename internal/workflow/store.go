package workflow

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a finished session is kept after its last update.
const DefaultSessionTTL = time.Hour

// SessionStore is an in-memory registry of sessions keyed by UUID.
// Idle sessions untouched for longer than the TTL are evicted; running
// sessions are never evicted.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// StoreOption configures a SessionStore.
type StoreOption func(*SessionStore)

// WithSessionTTL sets how long idle sessions are kept. Zero or less disables eviction.
func WithSessionTTL(ttl time.Duration) StoreOption {
	return func(s *SessionStore) {
		s.ttl = ttl
	}
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore(opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      DefaultSessionTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the session for id, creating it when unknown.
// Ids that are not UUIDs are replaced by a fresh one.
func (s *SessionStore) GetOrCreate(id string) (*Session, bool) {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.maybeSweepLocked()

	if sess, ok := s.sessions[id]; ok {
		return sess, false
	}
	sess := NewSession(id)
	s.sessions[id] = sess
	return sess, true
}

// Get returns the session for id.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete forgets an idle session. Running sessions are kept and ErrWorkflowInFlight is returned.
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.Running() {
		return ErrWorkflowInFlight
	}
	delete(s.sessions, id)
	return nil
}

// Sweep evicts idle sessions older than the TTL and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

// maybeSweepLocked sweeps at most once a minute.
func (s *SessionStore) maybeSweepLocked() {
	now := s.now()
	if now.Sub(s.lastSweep) < time.Minute {
		return
	}
	s.sweepLocked(now)
}

func (s *SessionStore) sweepLocked(now time.Time) int {
	s.lastSweep = now
	if s.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, sess := range s.sessions {
		if last, idle := sess.idleSince(); idle && last.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
