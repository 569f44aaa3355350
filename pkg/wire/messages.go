package wire

import "fmt"

// Kind is the discriminant carried by every envelope.
type Kind string

const (
	KindClaimRequest     Kind = "claim-request"
	KindClaimRejected    Kind = "claim-rejected"
	KindStateChanged     Kind = "state-changed"
	KindStateRequest     Kind = "state-request"
	KindDismissRequest   Kind = "dismiss-request"
	KindLocationWarped   Kind = "location-warped"
	KindDialogueRequest  Kind = "dialogue-request"
	KindDialogue         Kind = "dialogue"
	KindQuestionAsked    Kind = "question-asked"
	KindQuestionAnswered Kind = "question-answered"
	KindInventoryHandoff Kind = "inventory-handoff"
	KindPeriodicStatus   Kind = "periodic-status"
)

// Kinds lists the whole catalog.
var Kinds = []Kind{
	KindClaimRequest,
	KindClaimRejected,
	KindStateChanged,
	KindStateRequest,
	KindDismissRequest,
	KindLocationWarped,
	KindDialogueRequest,
	KindDialogue,
	KindQuestionAsked,
	KindQuestionAnswered,
	KindInventoryHandoff,
	KindPeriodicStatus,
}

// Validate checks that the kind belongs to the catalog.
func (k Kind) Validate() error {
	switch k {
	case KindClaimRequest, KindClaimRejected, KindStateChanged, KindStateRequest,
		KindDismissRequest, KindLocationWarped, KindDialogueRequest, KindDialogue,
		KindQuestionAsked, KindQuestionAnswered, KindInventoryHandoff, KindPeriodicStatus:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
}

// Message is implemented only by the catalog types in this package.
type Message interface {
	Kind() Kind
	sealed()
}

// ClaimRequest asks the authority to recruit Entity for the sender.
type ClaimRequest struct {
	Entity EntityID `json:"entity"`
}

// ClaimRejected tells the requester (only) why its claim failed.
type ClaimRejected struct {
	Entity EntityID     `json:"entity"`
	Reason RejectReason `json:"reason"`
}

// StateChanged is the authority's broadcast outcome. Claimant is NoPeer when the
// companion has no owner in the new state.
type StateChanged struct {
	Entity   EntityID  `json:"entity"`
	NewState StateFlag `json:"new_state"`
	Claimant PeerID    `json:"claimant"`
}

// StateRequest asks the authority for a full resync. Sent by late joiners.
type StateRequest struct{}

// DismissRequest asks the authority to release a companion the sender owns.
type DismissRequest struct {
	Entity EntityID `json:"entity"`
}

// LocationWarped reports that the owner of Entity moved between locations.
type LocationWarped struct {
	Entity EntityID `json:"entity"`
	From   string   `json:"from"`
	To     string   `json:"to"`
}

// DialogueRequest is sent when a player interacts with a companion.
type DialogueRequest struct {
	Entity EntityID `json:"entity"`
}

// Dialogue asks the receiving peer to show a line of text identified by a content key.
type Dialogue struct {
	Entity EntityID `json:"entity"`
	Key    string   `json:"key"`
	Args   []string `json:"args,omitempty"`
}

// QuestionAsked asks the receiving peer's player to pick one of Options.
type QuestionAsked struct {
	Entity   EntityID `json:"entity"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// QuestionAnswered carries the player's choice back to the authority.
type QuestionAnswered struct {
	Entity   EntityID `json:"entity"`
	Question string   `json:"question"`
	Choice   string   `json:"choice"`
}

// InventoryHandoff carries a companion's bag as a base64 blob (see EncodeBlob).
type InventoryHandoff struct {
	Entity EntityID `json:"entity"`
	Blob   string   `json:"blob"`
}

// PeriodicStatus is a free-form status report about an active companion.
type PeriodicStatus struct {
	Entity  EntityID       `json:"entity"`
	Payload map[string]any `json:"payload"`
}

// Kind implements Message.
func (*ClaimRequest) Kind() Kind     { return KindClaimRequest }
func (*ClaimRejected) Kind() Kind    { return KindClaimRejected }
func (*StateChanged) Kind() Kind     { return KindStateChanged }
func (*StateRequest) Kind() Kind     { return KindStateRequest }
func (*DismissRequest) Kind() Kind   { return KindDismissRequest }
func (*LocationWarped) Kind() Kind   { return KindLocationWarped }
func (*DialogueRequest) Kind() Kind  { return KindDialogueRequest }
func (*Dialogue) Kind() Kind         { return KindDialogue }
func (*QuestionAsked) Kind() Kind    { return KindQuestionAsked }
func (*QuestionAnswered) Kind() Kind { return KindQuestionAnswered }
func (*InventoryHandoff) Kind() Kind { return KindInventoryHandoff }
func (*PeriodicStatus) Kind() Kind   { return KindPeriodicStatus }

func (*ClaimRequest) sealed()     {}
func (*ClaimRejected) sealed()    {}
func (*StateChanged) sealed()     {}
func (*StateRequest) sealed()     {}
func (*DismissRequest) sealed()   {}
func (*LocationWarped) sealed()   {}
func (*DialogueRequest) sealed()  {}
func (*Dialogue) sealed()         {}
func (*QuestionAsked) sealed()    {}
func (*QuestionAnswered) sealed() {}
func (*InventoryHandoff) sealed() {}
func (*PeriodicStatus) sealed()   {}

// EntityOf returns the entity a message is about, or "" for session-wide messages.
func EntityOf(msg Message) EntityID {
	switch m := msg.(type) {
	case *ClaimRequest:
		return m.Entity
	case *ClaimRejected:
		return m.Entity
	case *StateChanged:
		return m.Entity
	case *DismissRequest:
		return m.Entity
	case *LocationWarped:
		return m.Entity
	case *DialogueRequest:
		return m.Entity
	case *Dialogue:
		return m.Entity
	case *QuestionAsked:
		return m.Entity
	case *QuestionAnswered:
		return m.Entity
	case *InventoryHandoff:
		return m.Entity
	case *PeriodicStatus:
		return m.Entity
	default:
		return ""
	}
}
