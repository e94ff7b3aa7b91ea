package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns the emulator's prometheus registry. It only observes; nothing
// in the protocol path reads these values back.
type Recorder struct {
	registry *prometheus.Registry

	liveConnections prometheus.Gauge
	accepted        prometheus.Counter
	handshakes      *prometheus.CounterVec
	commands        *prometheus.CounterVec
	frames          *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marty_live_connections",
			Help: "Connections currently being served.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marty_connections_accepted_total",
			Help: "TCP connections accepted.",
		}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marty_handshakes_total",
			Help: "Handshakes by outcome (standard, fallback, rejected, failed).",
		}, []string{"outcome"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marty_commands_total",
			Help: "Commands dispatched by kind and response.",
		}, []string{"kind", "response"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marty_frames_received_total",
			Help: "WebSocket frames received by opcode.",
		}, []string{"opcode"}),
	}

	r.registry.MustRegister(r.liveConnections, r.accepted, r.handshakes, r.commands, r.frames)
	return r
}

// Registry exposes the registry for the /metrics handler
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ConnectionAccepted() {
	r.accepted.Inc()
}

func (r *Recorder) SetLiveConnections(n int) {
	r.liveConnections.Set(float64(n))
}

func (r *Recorder) Handshake(outcome string) {
	r.handshakes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Command(kind, response string) {
	r.commands.WithLabelValues(kind, response).Inc()
}

func (r *Recorder) Frame(opcode string) {
	r.frames.WithLabelValues(opcode).Inc()
}
