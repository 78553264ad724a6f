package session

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Manager owns all live sessions, keyed by user id. Events for one user are
// processed sequentially by the update loop, so per-session access needs no
// coordination beyond the map lock. The TTL bounds memory: abandoned drafts
// are discarded silently once they go stale.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
}

func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: map[int64]*Session{},
		ttl:      ttl,
	}
}

// Begin starts a fresh composition for the user, replacing any live session.
func (m *Manager) Begin(userID int64) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Session{
		UserID:    userID,
		State:     StateSelectingServer,
		UpdatedAt: time.Now(),
	}
	m.sessions[userID] = s
	return *s
}

// Get returns a copy of the user's session. A stale session counts as absent
// and is dropped on the spot.
func (m *Manager) Get(userID int64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false
	}
	if m.expired(s, time.Now()) {
		delete(m.sessions, userID)
		return Session{}, false
	}
	return *s, true
}

// Put stores the advanced session and stamps its activity time.
func (m *Manager) Put(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.UpdatedAt = time.Now()
	stored := s
	m.sessions[s.UserID] = &stored
}

// End discards the user's session, returning them to idle.
func (m *Manager) End(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SweepStale drops every session idle longer than the TTL and reports how
// many were removed.
func (m *Manager) SweepStale(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for userID, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, userID)
			removed++
		}
	}
	return removed
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	return m.ttl > 0 && now.Sub(s.UpdatedAt) > m.ttl
}

// RunSweeper evicts stale sessions periodically until the context is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.SweepStale(time.Now()); removed > 0 {
				log.WithField("removed", removed).Debug("swept stale sessions")
			}
		}
	}
}
