// Package metrics defines the Prometheus collectors for client sessions and the relay hub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every hubify metric.
const Namespace = "hubify"

// Session holds the collectors updated by one transport session.
type Session struct {
	FramesReceived prometheus.Counter
	FramesSent     prometheus.Counter
	BytesReceived  prometheus.Counter
	BytesSent      prometheus.Counter
	// DecoderBuffered tracks bytes held by the frame decoder. It grows without
	// bound when a peer announces a length it never delivers.
	DecoderBuffered prometheus.Gauge
	TransportErrors prometheus.Counter
}

// NewSession creates session collectors registered with reg. A nil reg leaves
// them unregistered.
func NewSession(reg prometheus.Registerer) *Session {
	f := promauto.With(reg)
	return &Session{
		FramesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "frames_received_total",
			Help:      "Frames decoded from the server connection.",
		}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "frames_sent_total",
			Help:      "Frames written to the server connection.",
		}),
		BytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "bytes_received_total",
			Help:      "Raw bytes read from the server connection.",
		}),
		BytesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "bytes_sent_total",
			Help:      "Raw bytes written to the server connection, handshake included.",
		}),
		DecoderBuffered: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "decoder_buffered_bytes",
			Help:      "Bytes received but not yet consumed into a complete frame.",
		}),
		TransportErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "transport_errors_total",
			Help:      "Read, write and handshake failures.",
		}),
	}
}

// Hub holds the collectors updated by the relay hub.
type Hub struct {
	Clients       prometheus.Gauge
	FramesRelayed prometheus.Counter
	FramesDropped prometheus.Counter
}

// NewHub creates hub collectors registered with reg. A nil reg leaves them
// unregistered.
func NewHub(reg prometheus.Registerer) *Hub {
	f := promauto.With(reg)
	return &Hub{
		Clients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "hub",
			Name:      "clients",
			Help:      "Connected clients.",
		}),
		FramesRelayed: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "hub",
			Name:      "frames_relayed_total",
			Help:      "Frames queued for delivery to another client.",
		}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "hub",
			Name:      "frames_dropped_total",
			Help:      "Frames discarded because a client's outgoing queue was full.",
		}),
	}
}
