// Package metrics instruments the reactor with prometheus collectors
// and renders the text exposition for the /metrics route.
package metrics

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the server's collectors on a private registry, so
// nothing leaks into package-global state and tests can run many
// servers side by side.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	ConnectionsClosed   prometheus.Counter
	TimeoutCloses       prometheus.Counter
	OpenConnections     prometheus.Gauge
	RequestsTotal       *prometheus.CounterVec
	BytesRead           prometheus.Counter
	BytesWritten        prometheus.Counter
}

// New builds a metrics set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "reactor",
			Name:      "connections_accepted_total",
			Help:      "Total client connections accepted",
		}),
		ConnectionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "reactor",
			Name:      "connections_closed_total",
			Help:      "Total client connections closed",
		}),
		TimeoutCloses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "reactor",
			Name:      "timeout_closes_total",
			Help:      "Connections closed by the idle-timeout sweep",
		}),
		OpenConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "reactor",
			Name:      "open_connections",
			Help:      "Currently open client connections",
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests handled, by host and status class",
		}, []string{"host", "class"}),
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "http",
			Name:      "bytes_read_total",
			Help:      "Request bytes read from client sockets",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "http",
			Name:      "bytes_written_total",
			Help:      "Response bytes written to client sockets",
		}),
	}
}

// ObserveRequest counts one handled request by host and status class
// ("2xx", "4xx", ...).
func (m *Metrics) ObserveRequest(host string, status int) {
	class := strconv.Itoa(status/100) + "xx"
	m.RequestsTotal.WithLabelValues(host, class).Inc()
}

// Render gathers the registry and renders the prometheus text format.
func (m *Metrics) Render() ([]byte, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, fam := range families {
		if err := enc.Encode(fam); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}
	return buf.Bytes(), nil
}
