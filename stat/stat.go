package stat

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Server aggregates the core's counters. Collectors are exposed for the
// embedding application to register wherever it gathers its own metrics; the
// core deliberately ships no exposition endpoint.
type Server struct {
	ConnectionsAccepted prometheus.Counter
	RequestsCompleted   prometheus.Counter
	ProtocolErrors      prometheus.Counter
}

func NewServer() *Server {
	return &Server{
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vela",
			Name:      "connections_accepted_total",
			Help:      "Connections accepted by the listener.",
		}),
		RequestsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vela",
			Name:      "requests_completed_total",
			Help:      "Requests fully parsed and handed to the handler.",
		}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vela",
			Name:      "protocol_errors_total",
			Help:      "Requests failed with a protocol-level error.",
		}),
	}
}

// Collectors returns all the counters for registration.
func (s *Server) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.ConnectionsAccepted,
		s.RequestsCompleted,
		s.ProtocolErrors,
	}
}
