package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"triage-kiosk/internal/analyzer"
	"triage-kiosk/internal/metrics"
	"triage-kiosk/internal/models"
	"triage-kiosk/internal/triage"
)

type fakeTriager struct {
	readings []models.Reading
	stations []models.Station
}

func (f *fakeTriager) Process(_ context.Context, r models.Reading) models.Outcome {
	f.readings = append(f.readings, r)
	return models.Outcome{ID: "outcome-1", StationID: r.StationID, Gate: triage.EvaluateGate(r.GateInput())}
}

func (f *fakeTriager) ActiveStations() []models.Station { return f.stations }

type fakeLatest struct {
	outcomes map[string]models.Outcome
	err      error
}

func (f fakeLatest) Latest(_ context.Context, id string) (models.Outcome, bool, error) {
	if f.err != nil {
		return models.Outcome{}, false, f.err
	}
	o, ok := f.outcomes[id]
	return o, ok, nil
}

func newTestServer(triager *fakeTriager, latest LatestReader) http.Handler {
	svc := analyzer.NewService(analyzer.RuleModel{}, zap.NewNop(),
		analyzer.WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }))
	return NewServer(svc, triager, latest, nil, zap.NewNop()).Handler(io.Discard)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestServer(&fakeTriager{}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalyze(t *testing.T) {
	h := newTestServer(&fakeTriager{}, nil)

	rec := do(t, h, http.MethodPost, "/analyze", `{"temperature":37.8,"spo2":93,"bloodPressure":{"systolic":150,"diastolic":85}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res analyzer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, triage.High, res.HealthData.RiskLevel)
	assert.Equal(t, []string{triage.SymptomFever, triage.SymptomHypoxemia, triage.SymptomHypertension}, res.HealthData.Symptoms)
	assert.Equal(t, analyzer.PrimaryConfidence, res.Confidence)
	assert.Equal(t, int64(1_700_000_000_000), res.Timestamp)
}

func TestAnalyze_BadRequests(t *testing.T) {
	h := newTestServer(&fakeTriager{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"temperature":`},
		{"missing spo2", `{"temperature":36.5}`},
		{"missing temperature", `{"spo2":98}`},
		{"wrong type", `{"temperature":"hot","spo2":98}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestAnalyze_MethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(&fakeTriager{}, nil), http.MethodGet, "/analyze", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGate(t *testing.T) {
	h := newTestServer(&fakeTriager{}, nil)

	rec := do(t, h, http.MethodPost, "/gate", `{"maskWorn":true,"temperature":36.5,"spo2":98}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var d triage.GateDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, triage.AccessGranted, d.Status)
	assert.Equal(t, triage.ReasonProceed, d.Reason)

	rec = do(t, h, http.MethodPost, "/gate", `{"maskWorn":false,"temperature":38,"spo2":90}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, triage.AccessDenied, d.Status)
	assert.Equal(t, triage.ReasonMaskRequired, d.Reason)

	rec = do(t, h, http.MethodPost, "/gate", `{"temperature":36.5,"spo2":98}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriage(t *testing.T) {
	triager := &fakeTriager{}
	h := newTestServer(triager, nil)

	rec := do(t, h, http.MethodPost, "/triage", `{"stationId":"kiosk-1","maskWorn":true,"temperature":36.9,"spo2":97,"heartRate":88}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, triager.readings, 1)
	assert.Equal(t, "kiosk-1", triager.readings[0].StationID)
	require.NotNil(t, triager.readings[0].HeartRate)
	assert.Equal(t, 88.0, *triager.readings[0].HeartRate)

	var o models.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, "outcome-1", o.ID)

	rec = do(t, h, http.MethodPost, "/triage", `{"stationId":"kiosk-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, triager.readings, 1)
}

func TestStations(t *testing.T) {
	triager := &fakeTriager{stations: []models.Station{{StationID: "kiosk-1", Status: models.StationRunning}}}
	rec := do(t, newTestServer(triager, nil), http.MethodGet, "/stations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stations []models.Station
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stations))
	assert.Equal(t, triager.stations, stations)
}

func TestLatest(t *testing.T) {
	latest := fakeLatest{outcomes: map[string]models.Outcome{"kiosk-1": {ID: "o-9", StationID: "kiosk-1"}}}
	h := newTestServer(&fakeTriager{}, latest)

	rec := do(t, h, http.MethodGet, "/stations/kiosk-1/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var o models.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, "o-9", o.ID)

	rec = do(t, h, http.MethodGet, "/stations/kiosk-2/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatest_CacheStates(t *testing.T) {
	rec := do(t, newTestServer(&fakeTriager{}, nil), http.MethodGet, "/stations/kiosk-1/latest", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, newTestServer(&fakeTriager{}, fakeLatest{err: errors.New("connection refused")}), http.MethodGet, "/stations/kiosk-1/latest", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set("Origin", "http://kiosk.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	newTestServer(&fakeTriager{}, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsRoute(t *testing.T) {
	rec := do(t, newTestServer(&fakeTriager{}, nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc := analyzer.NewService(analyzer.RuleModel{}, zap.NewNop())
	m := metrics.NewMetrics()
	m.ObserveOutcome("LOW", "ACCESS_GRANTED", "rules")
	h := NewServer(svc, &fakeTriager{}, nil, m, zap.NewNop()).Handler(io.Discard)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "triage_outcomes_total")
}
