package session

import (
	"strings"
	"time"
)

// State tracks a user's progress through ad composition. Idle is modelled as
// the absence of a session; the remaining states always carry one.
type State int

const (
	StateIdle State = iota
	StateSelectingServer
	StateAwaitingText
	StateAwaitingPhotoDecision
	StateAwaitingPhoto
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelectingServer:
		return "selecting_server"
	case StateAwaitingText:
		return "awaiting_text"
	case StateAwaitingPhotoDecision:
		return "awaiting_photo_decision"
	case StateAwaitingPhoto:
		return "awaiting_photo"
	}
	return "unknown"
}

// Session is the transient per-user draft. It never outlives the process and
// is replaced wholesale when the user restarts composition.
type Session struct {
	UserID      int64
	State       State
	ServerID    int64
	DraftText   string
	CatalogPage int
	UpdatedAt   time.Time
}

// CanFinalize guards submission: both a validated server and a non-empty
// draft text must be present, whatever state the session claims to be in.
func (s Session) CanFinalize() bool {
	return s.ServerID != 0 && strings.TrimSpace(s.DraftText) != ""
}
