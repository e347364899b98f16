package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.Transition("rfi", "respond", "ok")
	m.Transition("rfi", "respond", "ok")
	m.Notification("webhook", "error")
	m.Drop()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("rfi", "respond", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `obralink_transitions_total{action="respond",kind="rfi",outcome="ok"} 2`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Transition("rfi", "respond", "ok")
	m.Notification("nats", "ok")
	m.Drop()
}
