package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/danverh/support-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Session is a per-user conversation thread with an ordered message log.
type Session struct {
	ID           uuid.UUID        `json:"session_id"`
	Owner        string           `json:"user_id"`
	CreatedAt    time.Time        `json:"created_at"`
	LastActivity time.Time        `json:"last_activity"`
	History      []domain.Message `json:"messages"`
}

// Info is the per-session summary returned by ListByOwner.
type Info struct {
	SessionID    uuid.UUID `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}

// Stats aggregates store-wide counters for status reporting.
type Stats struct {
	TotalSessions   int            `json:"total_sessions"`
	UniqueUsers     int            `json:"unique_users"`
	SessionsPerUser map[string]int `json:"sessions_per_user"`
}

type entry struct {
	mu           sync.Mutex // serializes appends to this session
	owner        string
	createdAt    time.Time
	lastActivity time.Time
	history      []domain.Message
}

// Store holds all sessions in process memory. The store mutex guards the
// map; each session carries its own mutex so concurrent turns on the same
// session id cannot interleave their appends.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[uuid.UUID]*entry)}
}

// Create inserts a fresh session for owner and returns its id.
func (s *Store) Create(owner string) uuid.UUID {
	id := uuid.New()
	now := time.Now()

	s.mu.Lock()
	s.sessions[id] = &entry{
		owner:        owner,
		createdAt:    now,
		lastActivity: now,
	}
	s.mu.Unlock()

	log.Debug().Str("session_id", id.String()).Str("user_id", owner).Msg("session created")
	return id
}

// ResolveOrCreate returns the given session id if it exists, otherwise
// creates a new session for owner. No ownership check happens here;
// ownership is enforced on read and delete.
func (s *Store) ResolveOrCreate(owner, sessionID string) (uuid.UUID, bool) {
	if sessionID != "" {
		if id, err := uuid.Parse(sessionID); err == nil {
			s.mu.RLock()
			_, ok := s.sessions[id]
			s.mu.RUnlock()
			if ok {
				return id, false
			}
		}
	}
	return s.Create(owner), true
}

// Append adds messages to a session in order and bumps its last-activity
// timestamp. Returns domain.ErrNotFound if the session does not exist.
func (s *Store) Append(id uuid.UUID, msgs ...domain.Message) error {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}

	now := time.Now()
	e.mu.Lock()
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		e.history = append(e.history, m)
	}
	e.lastActivity = now
	e.mu.Unlock()
	return nil
}

// History returns a copy of the session after checking ownership. Absent
// sessions yield domain.ErrNotFound; an owner mismatch yields
// domain.ErrForbidden.
func (s *Store) History(owner string, id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	if e.owner != owner {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrForbidden)
	}

	e.mu.Lock()
	history := make([]domain.Message, len(e.history))
	copy(history, e.history)
	sess := &Session{
		ID:           id,
		Owner:        e.owner,
		CreatedAt:    e.createdAt,
		LastActivity: e.lastActivity,
		History:      history,
	}
	e.mu.Unlock()
	return sess, nil
}

// Snapshot returns a copy of the session history without an ownership
// check. The orchestrator uses it to replay prior turns into the model;
// callers outside a resolved turn must go through History.
func (s *Store) Snapshot(id uuid.UUID) ([]domain.Message, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}

	e.mu.Lock()
	history := make([]domain.Message, len(e.history))
	copy(history, e.history)
	e.mu.Unlock()
	return history, nil
}

// Delete removes a session after the same ownership check as History.
func (s *Store) Delete(owner string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	if e.owner != owner {
		return fmt.Errorf("session %s: %w", id, domain.ErrForbidden)
	}

	delete(s.sessions, id)
	log.Debug().Str("session_id", id.String()).Str("user_id", owner).Msg("session deleted")
	return nil
}

// ListByOwner returns summaries of every session belonging to owner.
func (s *Store) ListByOwner(owner string) []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]Info, 0)
	for id, e := range s.sessions {
		if e.owner != owner {
			continue
		}
		e.mu.Lock()
		infos = append(infos, Info{
			SessionID:    id,
			CreatedAt:    e.createdAt,
			LastActivity: e.lastActivity,
			MessageCount: len(e.history),
		})
		e.mu.Unlock()
	}
	return infos
}

// Stats returns store-wide session counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perUser := make(map[string]int)
	for _, e := range s.sessions {
		perUser[e.owner]++
	}
	return Stats{
		TotalSessions:   len(s.sessions),
		UniqueUsers:     len(perUser),
		SessionsPerUser: perUser,
	}
}

// EvictIdle removes sessions idle for longer than maxIdle and returns how
// many were removed.
func (s *Store) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.sessions {
		e.mu.Lock()
		idle := e.lastActivity.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		log.Info().Int("evicted", evicted).Msg("idle sessions evicted")
	}
	return evicted
}
