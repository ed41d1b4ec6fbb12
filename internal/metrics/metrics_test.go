package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ObserveOutcome("LOW", "ACCESS_GRANTED", "rules")
	m.ObserveOutcome("LOW", "ACCESS_GRANTED", "rules")
	m.ObserveOutcome("CRITICAL", "ACCESS_DENIED", "fallback")
	m.PublishFailed("kafka")
	m.SetActiveStations(3)
	m.ObserveAnalysis(15 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomesTotal.WithLabelValues("LOW", "ACCESS_GRANTED", "rules")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomesTotal.WithLabelValues("CRITICAL", "ACCESS_DENIED", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishErrors.WithLabelValues("kafka")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeStations))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOutcome("LOW", "ACCESS_GRANTED", "rules")
		m.PublishFailed("mqtt")
		m.ObserveAnalysis(time.Second)
		m.SetActiveStations(1)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveOutcome("HIGH", "ACCESS_DENIED", "remote")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `triage_outcomes_total{gate="ACCESS_DENIED",risk_level="HIGH",source="remote"} 1`)
}
