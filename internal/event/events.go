package event

// Event is the closed set of inbound signals the core reacts to. Raw
// transport payloads are parsed into these variants exactly once, at the
// update boundary; the core never matches on callback strings.
type Event interface {
	isEvent()
}

type (
	// Start is the /start command: ensure the user row exists, reset the
	// session, show the main menu.
	Start struct{}

	// StartCompose begins a new composition, replacing any live session.
	StartCompose struct{}

	// PageRequested asks for another page of the server catalog.
	PageRequested struct {
		Page int
	}

	// ServerChosen picks the destination server for the draft.
	ServerChosen struct {
		ServerID int64
	}

	// TextReceived carries the advertisement text.
	TextReceived struct {
		Text string
	}

	// AddPhoto and SkipPhoto are the two photo-decision branches.
	AddPhoto  struct{}
	SkipPhoto struct{}

	// PhotoReceived carries the opaque photo reference.
	PhotoReceived struct {
		FileID string
	}

	// Cancel aborts the composition from any non-idle state.
	Cancel struct{}

	// Decision is a moderator verdict on a pending advertisement.
	Decision struct {
		Kind DecisionKind
		AdID int64
	}
)

type DecisionKind string

const (
	DecisionApprove DecisionKind = "approve"
	DecisionReject  DecisionKind = "reject"
)

func (Start) isEvent()         {}
func (StartCompose) isEvent()  {}
func (PageRequested) isEvent() {}
func (ServerChosen) isEvent()  {}
func (TextReceived) isEvent()  {}
func (AddPhoto) isEvent()      {}
func (SkipPhoto) isEvent()     {}
func (PhotoReceived) isEvent() {}
func (Cancel) isEvent()        {}
func (Decision) isEvent()      {}
