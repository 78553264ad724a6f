package session

import (
	"sync"
	"testing"
	"time"
)

func TestBeginReplacesLiveSession(t *testing.T) {
	t.Parallel()

	m := NewManager(time.Hour)
	first := m.Begin(42)
	first.State = StateAwaitingPhoto
	first.ServerID = 3
	first.DraftText = "bike for sale"
	m.Put(first)

	second := m.Begin(42)
	if second.State != StateSelectingServer {
		t.Fatalf("unexpected state after restart: %s", second.State)
	}
	if second.ServerID != 0 || second.DraftText != "" || second.CatalogPage != 0 {
		t.Fatalf("restart must reset draft fields: %#v", second)
	}
	if m.Len() != 1 {
		t.Fatalf("restart must replace, not fork: %d sessions", m.Len())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	m := NewManager(time.Hour)
	m.Begin(1)

	got, ok := m.Get(1)
	if !ok {
		t.Fatalf("expected live session")
	}
	got.DraftText = "mutated"

	again, _ := m.Get(1)
	if again.DraftText != "" {
		t.Fatalf("manager state must be isolated from caller copies")
	}
}

func TestEndDiscardsSession(t *testing.T) {
	t.Parallel()

	m := NewManager(time.Hour)
	m.Begin(7)
	m.End(7)
	if _, ok := m.Get(7); ok {
		t.Fatalf("ended session must be gone")
	}
}

func TestCanFinalizeGuard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    Session
		want bool
	}{
		{"complete draft", Session{ServerID: 1, DraftText: "text"}, true},
		{"missing server", Session{DraftText: "text"}, false},
		{"missing text", Session{ServerID: 1}, false},
		{"whitespace text", Session{ServerID: 1, DraftText: "   "}, false},
		{"empty session", Session{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.s.CanFinalize(); got != tt.want {
				t.Fatalf("unexpected guard result: got %v want %v", got, tt.want)
			}
		})
	}
}

func TestSweepStale(t *testing.T) {
	t.Parallel()

	m := NewManager(time.Minute)
	stale := m.Begin(1)
	stale.UpdatedAt = time.Now().Add(-2 * time.Minute)
	m.mu.Lock()
	m.sessions[1] = &stale
	m.mu.Unlock()
	m.Begin(2)

	if removed := m.SweepStale(time.Now()); removed != 1 {
		t.Fatalf("unexpected sweep count: %d", removed)
	}
	if _, ok := m.Get(1); ok {
		t.Fatalf("stale session must be evicted")
	}
	if _, ok := m.Get(2); !ok {
		t.Fatalf("fresh session must survive the sweep")
	}
}

func TestGetDropsExpiredSession(t *testing.T) {
	t.Parallel()

	m := NewManager(time.Minute)
	stale := m.Begin(9)
	stale.UpdatedAt = time.Now().Add(-2 * time.Minute)
	m.mu.Lock()
	m.sessions[9] = &stale
	m.mu.Unlock()

	if _, ok := m.Get(9); ok {
		t.Fatalf("expired session must count as absent")
	}
	if m.Len() != 0 {
		t.Fatalf("expired session must be dropped on access")
	}
}

func TestManagerConcurrentAccess(t *testing.T) {
	t.Parallel()

	m := NewManager(time.Hour)

	const (
		workers    = 8
		iterations = 500
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				s := m.Begin(userID)
				s.State = StateAwaitingText
				m.Put(s)
				_, _ = m.Get(userID)
				m.SweepStale(time.Now())
				m.End(userID)
			}
		}(int64(w + 1))
	}
	wg.Wait()

	if m.Len() != 0 {
		t.Fatalf("expected empty manager, have %d sessions", m.Len())
	}
}
