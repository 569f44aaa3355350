// Package watch follows the traffic of a session for the watch command.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	redistransport "github.com/dyluth/retinue/internal/transport/redis"
	"github.com/dyluth/retinue/pkg/wire"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSON    OutputFormat = "json"
)

// recentSize bounds the envelope ids remembered for deduplication.
const recentSize = 512

// Event is one observed message.
type Event struct {
	Time      time.Time     `json:"time"`
	ID        string        `json:"id,omitempty"`
	Kind      wire.Kind     `json:"kind"`
	From      wire.PeerID   `json:"from,omitempty"`
	To        wire.PeerID   `json:"to"`
	Broadcast bool          `json:"broadcast,omitempty"`
	Entity    wire.EntityID `json:"entity,omitempty"`
	Summary   string        `json:"summary"`
}

// NewEvent decodes a frame published to the channel of peer to.
// Frames that do not decode become events of kind "invalid".
func NewEvent(to wire.PeerID, data []byte) Event {
	env, msg, err := wire.Decode(data)
	if err != nil {
		return Event{
			Time:    time.Now(),
			Kind:    "invalid",
			To:      to,
			Summary: err.Error(),
		}
	}
	ev := Event{
		Time:      time.UnixMilli(env.SentAtMs),
		ID:        env.ID,
		Kind:      env.Kind,
		From:      env.From,
		To:        to,
		Broadcast: env.Broadcast,
		Summary:   Describe(msg),
	}
	ev.Entity = wire.EntityOf(msg)
	return ev
}

// Describe renders a message as a short human-readable line.
func Describe(msg wire.Message) string {
	switch m := msg.(type) {
	case *wire.ClaimRequest:
		return fmt.Sprintf("wants to recruit %s", m.Entity)
	case *wire.ClaimRejected:
		return fmt.Sprintf("claim on %s rejected: %s", m.Entity, m.Reason)
	case *wire.StateChanged:
		if m.Claimant == wire.NoPeer {
			return fmt.Sprintf("%s is now %s", m.Entity, m.NewState)
		}
		return fmt.Sprintf("%s is now %s (%s)", m.Entity, m.NewState, m.Claimant)
	case *wire.StateRequest:
		return "requests a full resync"
	case *wire.DismissRequest:
		return fmt.Sprintf("dismisses %s", m.Entity)
	case *wire.LocationWarped:
		return fmt.Sprintf("%s follows from %s to %s", m.Entity, m.From, m.To)
	case *wire.DialogueRequest:
		return fmt.Sprintf("talks to %s", m.Entity)
	case *wire.Dialogue:
		return fmt.Sprintf("%s says %s", m.Entity, m.Key)
	case *wire.QuestionAsked:
		return fmt.Sprintf("%s asks %s %v", m.Entity, m.Question, m.Options)
	case *wire.QuestionAnswered:
		return fmt.Sprintf("answers %s to %s: %s", m.Entity, m.Question, m.Choice)
	case *wire.InventoryHandoff:
		inv, err := wire.DecodeBlob(m.Blob)
		if err != nil {
			return fmt.Sprintf("hands over %s's bag (unreadable: %v)", m.Entity, err)
		}
		return fmt.Sprintf("hands over %s's bag (%d items)", m.Entity, len(inv.Items))
	case *wire.PeriodicStatus:
		s, err := wire.DecodeStatus(m.Payload)
		if err != nil {
			return fmt.Sprintf("%s status (unreadable: %v)", m.Entity, err)
		}
		return fmt.Sprintf("%s at %s, %s, %d hp", m.Entity, s.Location, s.Activity, s.Health)
	default:
		return string(msg.Kind())
	}
}

// Stream writes every frame from frames to w until the channel closes or ctx
// is cancelled. A broadcast is published once per recipient; with dedup set
// only its first copy is written.
func Stream(ctx context.Context, frames <-chan redistransport.Frame, w io.Writer, format OutputFormat, dedup bool) error {
	seen := newRecent(recentSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			ev := NewEvent(f.To, f.Data)

			if dedup && ev.ID != "" {
				if seen.contains(ev.ID) {
					continue
				}
				seen.add(ev.ID)
			}

			if err := write(w, format, ev); err != nil {
				return err
			}
		}
	}
}

var (
	kindColor  = color.New(color.FgCyan)
	errorColor = color.New(color.FgRed)
)

func write(w io.Writer, format OutputFormat, ev Event) error {
	if format == OutputFormatJSON {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	c := kindColor
	if ev.Kind == "invalid" {
		c = errorColor
	}
	route := fmt.Sprintf("%s → %s", ev.From, ev.To)
	if ev.Broadcast {
		route = fmt.Sprintf("%s → all", ev.From)
	}
	_, err := fmt.Fprintf(w, "[%s] %s %s: %s\n", ev.Time.Format("15:04:05"), c.Sprintf("%-17s", ev.Kind), route, ev.Summary)
	return err
}

// recent is a fixed-size set of the last n ids.
type recent struct {
	ids  []string
	set  map[string]struct{}
	next int
}

func newRecent(n int) *recent {
	return &recent{ids: make([]string, n), set: make(map[string]struct{}, n)}
}

func (r *recent) contains(id string) bool {
	_, ok := r.set[id]
	return ok
}

func (r *recent) add(id string) {
	if old := r.ids[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ids[r.next] = id
	r.set[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ids)
}
