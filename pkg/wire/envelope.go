package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrDesync marks errors that mean the peers of a session have diverged. They are
// never retried or absorbed.
var ErrDesync = errors.New("protocol desync")

// ErrUnknownKind is returned when a frame carries a kind outside the catalog.
var ErrUnknownKind = fmt.Errorf("%w: unknown message kind", ErrDesync)

// IsDesync reports whether err is, or wraps, a protocol desync.
func IsDesync(err error) bool {
	return errors.Is(err, ErrDesync)
}

// Envelope is the routing frame every message travels in.
type Envelope struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	From      PeerID          `json:"from"`
	To        PeerID          `json:"to,omitempty"`
	Broadcast bool            `json:"broadcast,omitempty"`
	SentAtMs  int64           `json:"sent_at_ms"`
	Payload   json.RawMessage `json:"payload"`
}

// Encode serialises msg into a frame. The envelope's routing fields (From, To,
// Broadcast) are kept; Kind, ID, SentAtMs and Payload are filled in.
func Encode(env Envelope, msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("cannot encode nil message")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msg.Kind(), err)
	}

	env.Kind = msg.Kind()
	env.Payload = payload
	if env.ID == "" {
		env.ID = uuid.New().String()
	}
	if env.SentAtMs == 0 {
		env.SentAtMs = time.Now().UnixMilli()
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

// Decode parses a frame and returns its envelope and typed message.
func Decode(frame []byte) (Envelope, Message, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	msg, err := newMessage(env.Kind)
	if err != nil {
		return env, nil, err
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return env, nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Kind, err)
		}
	}
	return env, msg, nil
}

func newMessage(kind Kind) (Message, error) {
	switch kind {
	case KindClaimRequest:
		return &ClaimRequest{}, nil
	case KindClaimRejected:
		return &ClaimRejected{}, nil
	case KindStateChanged:
		return &StateChanged{}, nil
	case KindStateRequest:
		return &StateRequest{}, nil
	case KindDismissRequest:
		return &DismissRequest{}, nil
	case KindLocationWarped:
		return &LocationWarped{}, nil
	case KindDialogueRequest:
		return &DialogueRequest{}, nil
	case KindDialogue:
		return &Dialogue{}, nil
	case KindQuestionAsked:
		return &QuestionAsked{}, nil
	case KindQuestionAnswered:
		return &QuestionAnswered{}, nil
	case KindInventoryHandoff:
		return &InventoryHandoff{}, nil
	case KindPeriodicStatus:
		return &PeriodicStatus{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
