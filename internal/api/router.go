// Package api exposes the analyzer, gate and processor over HTTP.
package api

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"triage-kiosk/internal/analyzer"
	"triage-kiosk/internal/metrics"
	"triage-kiosk/internal/models"
)

// maxBodyBytes leaves room for a base64 camera frame in imageData.
const maxBodyBytes = 8 << 20

// Triager is the part of the processor the API drives.
type Triager interface {
	Process(ctx context.Context, r models.Reading) models.Outcome
	ActiveStations() []models.Station
}

// LatestReader serves the newest outcome per station.
type LatestReader interface {
	Latest(ctx context.Context, stationID string) (models.Outcome, bool, error)
}

type Server struct {
	analyzer  *analyzer.Service
	processor Triager
	latest    LatestReader
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewServer wires the handlers. latest may be nil when no cache is
// configured and m may be nil when metrics are off.
func NewServer(svc *analyzer.Service, processor Triager, latest LatestReader, m *metrics.Metrics, logger *zap.Logger) *Server {
	return &Server{analyzer: svc, processor: processor, latest: latest, metrics: m, logger: logger}
}

func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", healthHandler).Methods("GET")
	r.HandleFunc("/analyze", s.postAnalyze).Methods("POST")
	r.HandleFunc("/gate", s.postGate).Methods("POST")
	r.HandleFunc("/triage", s.postTriage).Methods("POST")
	r.HandleFunc("/stations", s.getStations).Methods("GET")
	r.HandleFunc("/stations/{stationId}/latest", s.getLatest).Methods("GET")
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	return r
}

// Handler returns the router behind permissive CORS and an access log.
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.LoggingHandler(accessLog, cors(s.NewRouter()))
}
