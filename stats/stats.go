// Package stats exposes the runtime's Prometheus counters: bytes and
// messages moved, reductions performed, and phases executed
// (SPEC_FULL.md's domain-stack wiring of prometheus/client_golang,
// grounded on the teacher's stats subsystem convention of one package
// owning a fixed, pre-registered metric set rather than ad-hoc
// registration at call sites).
package stats

import "github.com/prometheus/client_golang/prometheus"

// Stats is one process's metric set, safe for concurrent use (every
// metric here is a prometheus.Counter/Gauge, themselves goroutine-safe).
type Stats struct {
	BytesSent     prometheus.Counter
	BytesRecv     prometheus.Counter
	MessagesSent  prometheus.Counter
	MessagesRecv  prometheus.Counter
	Reductions    prometheus.Counter
	PhasesRun     prometheus.Counter
	ActivePeers   prometheus.Gauge
}

// New creates a Stats set registered under reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests, multiple
// processes in one binary) or prometheus.DefaultRegisterer for a single
// process binary.
func New(reg prometheus.Registerer) *Stats {
	s := &Stats{
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parti_bytes_sent_total",
			Help: "Total bytes sent over the active transport.",
		}),
		BytesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parti_bytes_received_total",
			Help: "Total bytes received over the active transport.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parti_messages_sent_total",
			Help: "Total send operations completed.",
		}),
		MessagesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parti_messages_received_total",
			Help: "Total recv operations completed.",
		}),
		Reductions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parti_reductions_total",
			Help: "Total reduction entries executed (fast path + manual).",
		}),
		PhasesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parti_phases_total",
			Help: "Total scheduling phases iterated by the executor.",
		}),
		ActivePeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parti_active_peers",
			Help: "Number of peer connections currently tracked.",
		}),
	}
	reg.MustRegister(s.BytesSent, s.BytesRecv, s.MessagesSent, s.MessagesRecv,
		s.Reductions, s.PhasesRun, s.ActivePeers)
	return s
}

// TrackSend records one completed send of n bytes.
func (s *Stats) TrackSend(n int) {
	s.MessagesSent.Inc()
	s.BytesSent.Add(float64(n))
}

// TrackRecv records one completed recv of n bytes.
func (s *Stats) TrackRecv(n int) {
	s.MessagesRecv.Inc()
	s.BytesRecv.Add(float64(n))
}
