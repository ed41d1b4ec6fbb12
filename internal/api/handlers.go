package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"triage-kiosk/internal/models"
	"triage-kiosk/internal/triage"
)

type GateRequest struct {
	MaskWorn    *bool    `json:"maskWorn"`
	Temperature *float64 `json:"temperature"`
	SpO2        *float64 `json:"spo2"`
}

var errGateFields = errors.New("maskWorn, temperature and spo2 are required")

func (g GateRequest) input() (triage.GateInput, error) {
	if g.MaskWorn == nil || g.Temperature == nil || g.SpO2 == nil {
		return triage.GateInput{}, errGateFields
	}
	return triage.GateInput{MaskWorn: *g.MaskWorn, Temperature: *g.Temperature, SpO2: *g.SpO2}, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) postAnalyze(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.decodeReading(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.analyzer.Analyze(r.Context(), reading.Snapshot))
}

func (s *Server) postGate(w http.ResponseWriter, r *http.Request) {
	var req GateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, triage.EvaluateGate(in))
}

func (s *Server) postTriage(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.decodeReading(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.processor.Process(r.Context(), reading))
}

func (s *Server) getStations(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.processor.ActiveStations())
}

func (s *Server) getLatest(w http.ResponseWriter, r *http.Request) {
	if s.latest == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("outcome cache is not configured"))
		return
	}
	stationID := mux.Vars(r)["stationId"]
	outcome, found, err := s.latest.Latest(r.Context(), stationID)
	if err != nil {
		s.logger.Error("Failed to read latest outcome", zap.String("station_id", stationID), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, errors.New("outcome cache unavailable"))
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no recent outcome for station %s", stationID))
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) decodeReading(w http.ResponseWriter, r *http.Request) (models.Reading, bool) {
	var msg models.VitalsMessage
	if err := decodeBody(w, r, &msg); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return models.Reading{}, false
	}
	reading, err := msg.Reading()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return models.Reading{}, false
	}
	return reading, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
