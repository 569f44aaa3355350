// Package metrics exposes bus traffic and companion states as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dyluth/retinue/pkg/wire"
)

// Collector implements bus.Observer and peer.StateGauge.
type Collector struct {
	registry *prometheus.Registry

	sent     *prometheus.CounterVec
	received *prometheus.CounterVec
	failed   *prometheus.CounterVec
	states   *prometheus.GaugeVec
}

// New creates a collector with its own registry. session is attached to every
// series as a constant label.
func New(session string) *Collector {
	labels := prometheus.Labels{"session": session}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "retinue_messages_sent_total",
				Help:        "Messages handed to the bus, by kind and route",
				ConstLabels: labels,
			},
			[]string{"kind", "route"},
		),
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "retinue_messages_received_total",
				Help:        "Messages dispatched to a handler, by kind and route",
				ConstLabels: labels,
			},
			[]string{"kind", "route"},
		),
		failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "retinue_messages_failed_total",
				Help:        "Messages whose handling failed, by kind and reason",
				ConstLabels: labels,
			},
			[]string{"kind", "reason"},
		),
		states: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "retinue_companions",
				Help:        "Companions per recruitment state",
				ConstLabels: labels,
			},
			[]string{"state"},
		),
	}

	c.registry.MustRegister(c.sent, c.received, c.failed, c.states)
	return c
}

func route(remote bool) string {
	if remote {
		return "remote"
	}
	return "local"
}

// Sent counts an outgoing message.
func (c *Collector) Sent(kind wire.Kind, remote bool) {
	c.sent.WithLabelValues(string(kind), route(remote)).Inc()
}

// Received counts a dispatched message.
func (c *Collector) Received(kind wire.Kind, remote bool) {
	c.received.WithLabelValues(string(kind), route(remote)).Inc()
}

// Failed counts a message that could not be sent or handled.
func (c *Collector) Failed(kind wire.Kind, err error) {
	reason := "error"
	switch {
	case errors.Is(err, wire.ErrUnknownKind):
		reason = "unknown-kind"
	case wire.IsDesync(err):
		reason = "desync"
	}
	c.failed.WithLabelValues(string(kind), reason).Inc()
}

// ObserveStates sets the companions-per-state gauge. States missing from
// counts are reported as zero.
func (c *Collector) ObserveStates(counts map[wire.StateFlag]int) {
	for _, flag := range wire.StateFlags {
		c.states.WithLabelValues(string(flag)).Set(float64(counts[flag]))
	}
}

// Registry returns the registry the collector's series live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
