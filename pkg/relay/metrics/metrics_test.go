package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderExposesCounters(t *testing.T) {
	m := New()
	m.ConnectionsAccepted.Inc()
	m.OpenConnections.Inc()
	m.ObserveRequest("example", 200)
	m.ObserveRequest("example", 404)
	m.ObserveRequest("example", 404)
	m.BytesRead.Add(128)

	text, err := m.Render()
	require.NoError(t, err)
	out := string(text)

	assert.Contains(t, out, "relay_reactor_connections_accepted_total 1")
	assert.Contains(t, out, "relay_reactor_open_connections 1")
	assert.Contains(t, out, `relay_http_requests_total{class="2xx",host="example"} 1`)
	assert.Contains(t, out, `relay_http_requests_total{class="4xx",host="example"} 2`)
	assert.Contains(t, out, "relay_http_bytes_read_total 128")
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ConnectionsAccepted.Inc()

	textB, err := b.Render()
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(textB), "connections_accepted_total 1"))
}
