// Package metrics counts protocol traffic for one UI session on its own
// prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as the reason label of the dropped counter.
const (
	ReasonMalformed = "malformed"
	ReasonNoHandler = "no-handler"
	ReasonQueueFull = "queue-full"
	ReasonUndecoded = "undecodable"
)

// Dispatch holds the collectors of one session. A nil *Dispatch is valid and
// records nothing.
type Dispatch struct {
	registry        *prometheus.Registry
	handled         *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	sent            *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Dispatch {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Dispatch{
		registry: reg,
		handled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentpanel",
			Name:      "envelopes_handled_total",
			Help:      "Inbound envelopes routed to a handler, by kind.",
		}, []string{"kind"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentpanel",
			Name:      "envelopes_dropped_total",
			Help:      "Inbound values dropped before reaching a handler, by reason.",
		}, []string{"reason"}),
		sent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentpanel",
			Name:      "outbound_sent_total",
			Help:      "Outbound envelopes posted to the host, by kind.",
		}, []string{"kind"}),
		handlerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentpanel",
			Name:      "handler_duration_seconds",
			Help:      "Time spent inside envelope handlers.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"kind"}),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Dispatch) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handled records one handler invocation and its duration.
func (m *Dispatch) Handled(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.handled.WithLabelValues(kind).Inc()
	m.handlerDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Dropped records one dropped inbound value.
func (m *Dispatch) Dropped(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// Sent records one outbound envelope.
func (m *Dispatch) Sent(kind string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(kind).Inc()
}

// HandledCount returns the handled counter for kind.
func (m *Dispatch) HandledCount(kind string) float64 {
	return counterValue(m, func() prometheus.Counter { return m.handled.WithLabelValues(kind) })
}

// DroppedCount returns the dropped counter for reason.
func (m *Dispatch) DroppedCount(reason string) float64 {
	return counterValue(m, func() prometheus.Counter { return m.dropped.WithLabelValues(reason) })
}

// SentCount returns the sent counter for kind.
func (m *Dispatch) SentCount(kind string) float64 {
	return counterValue(m, func() prometheus.Counter { return m.sent.WithLabelValues(kind) })
}
