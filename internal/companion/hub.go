package companion

import (
	"context"
	"errors"
	"sort"
)

// Hub fans local world events (game clock, ticks, player warps) out to the
// states that subscribed to them. It is driven by the peer's event loop.
type Hub struct {
	now  int
	tick uint64

	timeChanged listeners[func(ctx context.Context, now int) error]
	ticked      listeners[func(ctx context.Context, tick uint64) error]
	warped      listeners[func(ctx context.Context, from, to string) error]
}

// NewHub returns a hub whose clock starts at now (HHMM, e.g. 600).
func NewHub(now int) *Hub {
	return &Hub{
		now:         now,
		timeChanged: newListeners[func(context.Context, int) error](),
		ticked:      newListeners[func(context.Context, uint64) error](),
		warped:      newListeners[func(context.Context, string, string) error](),
	}
}

// Now returns the current time of day as HHMM.
func (h *Hub) Now() int { return h.now }

// Ticks returns the number of ticks emitted so far.
func (h *Hub) Ticks() uint64 { return h.tick }

// OnTimeChanged subscribes fn. The returned func cancels the subscription.
func (h *Hub) OnTimeChanged(fn func(ctx context.Context, now int) error) func() {
	return h.timeChanged.add(fn)
}

// OnTick subscribes fn to every tick.
func (h *Hub) OnTick(fn func(ctx context.Context, tick uint64) error) func() {
	return h.ticked.add(fn)
}

// OnWarp subscribes fn to local player location changes.
func (h *Hub) OnWarp(fn func(ctx context.Context, from, to string) error) func() {
	return h.warped.add(fn)
}

// SetTime moves the clock and notifies subscribers.
func (h *Hub) SetTime(ctx context.Context, now int) error {
	h.now = now
	return h.timeChanged.each(func(fn func(context.Context, int) error) error {
		return fn(ctx, now)
	})
}

// Tick advances the tick counter and notifies subscribers.
func (h *Hub) Tick(ctx context.Context) error {
	h.tick++
	tick := h.tick
	return h.ticked.each(func(fn func(context.Context, uint64) error) error {
		return fn(ctx, tick)
	})
}

// Warp reports that the local player moved from one location to another.
func (h *Hub) Warp(ctx context.Context, from, to string) error {
	return h.warped.each(func(fn func(context.Context, string, string) error) error {
		return fn(ctx, from, to)
	})
}

// Subscribers returns the number of live subscriptions across all events.
func (h *Hub) Subscribers() int {
	return len(h.timeChanged.fns) + len(h.ticked.fns) + len(h.warped.fns)
}

type listeners[F any] struct {
	next int
	fns  map[int]F
}

func newListeners[F any]() listeners[F] {
	return listeners[F]{fns: make(map[int]F)}
}

func (l *listeners[F]) add(fn F) func() {
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() { delete(l.fns, id) }
}

// each calls fn for every subscriber in subscription order. A subscriber
// cancelled by an earlier one in the same pass is skipped.
func (l *listeners[F]) each(call func(F) error) error {
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var errs []error
	for _, id := range ids {
		fn, ok := l.fns[id]
		if !ok {
			continue
		}
		if err := call(fn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
