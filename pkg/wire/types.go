package wire

import "fmt"

// PeerID identifies a peer (player) in a session.
type PeerID string

// NoPeer is the owner of a companion nobody holds.
const NoPeer PeerID = ""

// IsNone reports whether p is NoPeer.
func (p PeerID) IsNone() bool { return p == NoPeer }

// String renders NoPeer as "<none>".
func (p PeerID) String() string {
	if p == NoPeer {
		return "<none>"
	}
	return string(p)
}

// EntityID identifies a companion entity.
type EntityID string

// StateFlag tags the state a companion's machine is in.
type StateFlag string

const (
	// StateReset is the day-boundary state and the hard-resync target.
	StateReset StateFlag = "reset"

	// StateAvailable means any peer may claim the companion.
	StateAvailable StateFlag = "available"

	// StateRecruited means exactly one peer owns the companion.
	StateRecruited StateFlag = "recruited"

	// StateUnavailable means the companion cannot be claimed until the next session day.
	StateUnavailable StateFlag = "unavailable"
)

// StateFlags lists every state flag in lifecycle order.
var StateFlags = []StateFlag{StateReset, StateAvailable, StateRecruited, StateUnavailable}

// Validate checks that the flag is one of the known states.
func (f StateFlag) Validate() error {
	switch f {
	case StateReset, StateAvailable, StateRecruited, StateUnavailable:
		return nil
	default:
		return fmt.Errorf("unknown state flag: %q", f)
	}
}

// RejectReason explains why the authority refused a claim.
type RejectReason string

const (
	// RejectTaken means another peer got the companion first.
	RejectTaken RejectReason = "taken"

	// RejectNotFree means the requester already holds another companion.
	RejectNotFree RejectReason = "not-free"

	// RejectAlreadyYours is informational: the requester already owns the companion.
	RejectAlreadyYours RejectReason = "already-yours"
)

// Validate checks that the reason is one of the known rejection reasons.
func (r RejectReason) Validate() error {
	switch r {
	case RejectTaken, RejectNotFree, RejectAlreadyYours:
		return nil
	default:
		return fmt.Errorf("unknown reject reason: %q", r)
	}
}

// Item is one stack in a companion's bag.
type Item struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stack uint32 `json:"stack"`
}

// Inventory is a small, ordered item container.
type Inventory struct {
	Capacity uint16 `json:"capacity"`
	Items    []Item `json:"items"`
}
