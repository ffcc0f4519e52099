// Package metrics exposes optional Prometheus counters and histograms for
// handshake and session events. A nil *Registry is valid everywhere in
// this package and simply does nothing, so instrumenting is opt-in.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the counters and histograms this module publishes.
type Registry struct {
	handshakesStarted   prometheus.Counter
	handshakesSucceeded prometheus.Counter
	handshakesFailed    *prometheus.CounterVec
	handshakeDuration   prometheus.Histogram
	framesSent          *prometheus.CounterVec
	framesReceived      *prometheus.CounterVec
	activeSessions      prometheus.Gauge
}

// NewRegistry constructs a Registry and registers its collectors with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		handshakesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voynich",
			Subsystem: "handshake",
			Name:      "started_total",
			Help:      "Handshakes started, by either role.",
		}),
		handshakesSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voynich",
			Subsystem: "handshake",
			Name:      "succeeded_total",
			Help:      "Handshakes that reached Ready.",
		}),
		handshakesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voynich",
			Subsystem: "handshake",
			Name:      "failed_total",
			Help:      "Handshakes that reached Failed, labeled by failure kind.",
		}, []string{"kind"}),
		handshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voynich",
			Subsystem: "handshake",
			Name:      "duration_seconds",
			Help:      "Time from handshake start to Ready or Failed.",
			Buckets:   prometheus.DefBuckets,
		}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voynich",
			Subsystem: "session",
			Name:      "frames_sent_total",
			Help:      "Post-handshake frames sent.",
		}, []string{"onion_id"}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voynich",
			Subsystem: "session",
			Name:      "frames_received_total",
			Help:      "Post-handshake frames received.",
		}, []string{"onion_id"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voynich",
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently in Ready/established state.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			r.handshakesStarted, r.handshakesSucceeded, r.handshakesFailed,
			r.handshakeDuration, r.framesSent, r.framesReceived, r.activeSessions,
		)
	}
	return r
}

// HandshakeStarted records a handshake beginning. Safe to call on a nil
// Registry.
func (r *Registry) HandshakeStarted() {
	if r == nil {
		return
	}
	r.handshakesStarted.Inc()
}

// HandshakeSucceeded records a handshake reaching Ready, with its total
// duration. Safe to call on a nil Registry.
func (r *Registry) HandshakeSucceeded(d time.Duration) {
	if r == nil {
		return
	}
	r.handshakesSucceeded.Inc()
	r.handshakeDuration.Observe(d.Seconds())
}

// HandshakeFailed records a handshake reaching Failed, labeled by the
// failure kind's string form. Safe to call on a nil Registry.
func (r *Registry) HandshakeFailed(kind string, d time.Duration) {
	if r == nil {
		return
	}
	r.handshakesFailed.WithLabelValues(kind).Inc()
	r.handshakeDuration.Observe(d.Seconds())
}

// FrameSent records one post-handshake frame sent to the named peer. Safe
// to call on a nil Registry.
func (r *Registry) FrameSent(peerOnionID string) {
	if r == nil {
		return
	}
	r.framesSent.WithLabelValues(peerOnionID).Inc()
}

// FrameReceived records one post-handshake frame received from the named
// peer. Safe to call on a nil Registry.
func (r *Registry) FrameReceived(peerOnionID string) {
	if r == nil {
		return
	}
	r.framesReceived.WithLabelValues(peerOnionID).Inc()
}

// SessionOpened increments the active-sessions gauge. Safe to call on a
// nil Registry.
func (r *Registry) SessionOpened() {
	if r == nil {
		return
	}
	r.activeSessions.Inc()
}

// SessionClosed decrements the active-sessions gauge. Safe to call on a
// nil Registry.
func (r *Registry) SessionClosed() {
	if r == nil {
		return
	}
	r.activeSessions.Dec()
}
