package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"triage-kiosk/internal/analyzer"
	"triage-kiosk/internal/metrics"
	"triage-kiosk/internal/models"
	"triage-kiosk/internal/triage"
)

// Publisher delivers outcomes to one downstream system.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, outcome models.Outcome) error
}

// StationStore is the registry the processor keeps in sync.
type StationStore interface {
	StartStation(stationID, location string) error
	StopStation(stationID string) error
	BatchUpdateLastClassifiedTime(updates map[string]int64) error
	GetActiveStations() ([]models.Station, error)
}

type TriageProcessor struct {
	store      StationStore
	analyzer   *analyzer.Service
	policy     triage.GatePolicy
	publishers []Publisher
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time

	activeStations       map[string]models.Station
	lastClassifiedTimes  map[string]int64
	activeStationsMu     sync.RWMutex
	lastClassifiedTimeMu sync.Mutex
}

// NewTriageProcessor restores the active stations from store. m may be nil.
func NewTriageProcessor(store StationStore, svc *analyzer.Service, policy triage.GatePolicy, m *metrics.Metrics, logger *zap.Logger, publishers ...Publisher) (*TriageProcessor, error) {
	if _, err := triage.ParseGatePolicy(string(policy)); err != nil {
		return nil, err
	}
	p := &TriageProcessor{
		store:               store,
		analyzer:            svc,
		policy:              policy,
		publishers:          publishers,
		metrics:             m,
		logger:              logger,
		now:                 time.Now,
		activeStations:      make(map[string]models.Station),
		lastClassifiedTimes: make(map[string]int64),
	}

	if err := p.loadActiveStations(); err != nil {
		return nil, err
	}
	logger.Info("Station registry restored", zap.Int("active_stations", len(p.activeStations)))
	return p, nil
}

func (p *TriageProcessor) loadActiveStations() error {
	stations, err := p.store.GetActiveStations()
	if err != nil {
		return fmt.Errorf("failed to load active stations: %w", err)
	}
	p.activeStationsMu.Lock()
	defer p.activeStationsMu.Unlock()
	for _, station := range stations {
		p.activeStations[station.StationID] = station
	}
	return nil
}

// Process analyses one reading, applies the configured gate policy and fans
// the outcome out. Publisher failures are logged and do not affect the
// returned outcome.
func (p *TriageProcessor) Process(ctx context.Context, r models.Reading) models.Outcome {
	start := time.Now()
	result := p.analyzer.Analyze(ctx, r.Snapshot)
	p.metrics.ObserveAnalysis(time.Since(start))

	outcome := models.Outcome{
		ID:          uuid.NewString(),
		StationID:   r.StationID,
		Result:      result,
		Gate:        p.decideGate(r, result),
		ProcessedAt: p.now().UnixMilli(),
	}

	p.activeStationsMu.RLock()
	_, known := p.activeStations[r.StationID]
	p.activeStationsMu.RUnlock()
	if !known {
		p.logger.Debug("Reading from a station that has not started", zap.String("station_id", r.StationID))
	}

	if r.StationID != "" {
		p.lastClassifiedTimeMu.Lock()
		p.lastClassifiedTimes[r.StationID] = p.now().Unix()
		p.lastClassifiedTimeMu.Unlock()
	}

	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, outcome); err != nil {
			p.metrics.PublishFailed(pub.Name())
			p.logger.Error("Failed to publish outcome",
				zap.String("publisher", pub.Name()),
				zap.String("outcome_id", outcome.ID),
				zap.String("station_id", outcome.StationID),
				zap.Error(err),
			)
		}
	}

	p.metrics.ObserveOutcome(result.HealthData.RiskLevel.String(), string(outcome.Gate.Status), string(result.Source))
	p.logger.Info("Reading triaged",
		zap.String("outcome_id", outcome.ID),
		zap.String("station_id", outcome.StationID),
		zap.Stringer("risk_level", result.HealthData.RiskLevel),
		zap.String("status", string(result.HealthData.Status)),
		zap.String("gate", string(outcome.Gate.Status)),
		zap.String("source", string(result.Source)),
	)
	return outcome
}

// decideGate calls exactly one gate rule, chosen by policy.
func (p *TriageProcessor) decideGate(r models.Reading, result analyzer.Result) triage.GateDecision {
	if p.policy == triage.GatePolicyRisk {
		return triage.GateFromRisk(result.HealthData.RiskLevel)
	}
	return triage.EvaluateGate(r.GateInput())
}

// DecodeReading parses an inbound vitals message.
func DecodeReading(payload []byte) (models.Reading, error) {
	var msg models.VitalsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return models.Reading{}, fmt.Errorf("invalid vitals message: %w", err)
	}
	return msg.Reading()
}

// HandleVitalsMessage decodes and processes a raw message. Malformed
// messages are logged and dropped.
func (p *TriageProcessor) HandleVitalsMessage(ctx context.Context, payload []byte) {
	r, err := DecodeReading(payload)
	if err != nil {
		p.logger.Warn("Discarding vitals message",
			zap.Error(err),
			zap.ByteString("payload", payload),
		)
		return
	}
	p.Process(ctx, r)
}

func (p *TriageProcessor) HandleStationStart(payload []byte) {
	var msg models.StationStartPayload
	if err := json.Unmarshal(payload, &msg); err != nil || msg.StationID == "" {
		p.logger.Warn("Ignoring station start message", zap.ByteString("payload", payload))
		return
	}
	p.activeStationsMu.Lock()
	defer p.activeStationsMu.Unlock()
	if err := p.store.StartStation(msg.StationID, msg.Location); err != nil {
		p.logger.Error("DB error starting station", zap.String("station_id", msg.StationID), zap.Error(err))
		return
	}
	p.activeStations[msg.StationID] = models.Station{
		StationID: msg.StationID,
		Location:  msg.Location,
		Status:    models.StationRunning,
		StartTime: p.now().Unix(),
	}
	p.logger.Info("Started station", zap.String("station_id", msg.StationID), zap.String("location", msg.Location))
}

func (p *TriageProcessor) HandleStationAction(payload []byte) {
	var msg models.StationActionPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	if msg.Action != "stop" {
		p.logger.Debug("Ignoring station action", zap.String("action", msg.Action))
		return
	}

	p.activeStationsMu.Lock()
	defer p.activeStationsMu.Unlock()
	station, ok := p.activeStations[msg.StationID]
	if !ok {
		return
	}
	if err := p.store.StopStation(msg.StationID); err != nil {
		p.logger.Error("DB error stopping station", zap.String("station_id", msg.StationID), zap.Error(err))
		return
	}
	now := p.now().Unix()
	station.Status = models.StationStopped
	station.EndTime = &now
	p.activeStations[msg.StationID] = station
	p.logger.Info("Stopped station", zap.String("station_id", msg.StationID))
}

// ActiveStations returns a snapshot of the in-memory registry, by id.
func (p *TriageProcessor) ActiveStations() []models.Station {
	p.activeStationsMu.RLock()
	defer p.activeStationsMu.RUnlock()
	stations := make([]models.Station, 0, len(p.activeStations))
	for _, s := range p.activeStations {
		stations = append(stations, s)
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].StationID < stations[j].StationID })
	return stations
}

func (p *TriageProcessor) RunHousekeepingCycle(ctx context.Context, interval time.Duration) {
	p.logger.Info("Housekeeping cycle started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Housekeeping cycle stopping")
			return
		case <-ticker.C:
			p.housekeep()
		}
	}
}

// housekeep prunes stopped stations, flushes last-classified times to the
// registry and logs a station report.
func (p *TriageProcessor) housekeep() {
	var stationsToPrune []string
	p.activeStationsMu.RLock()
	for id, station := range p.activeStations {
		if station.Status == models.StationStopped {
			stationsToPrune = append(stationsToPrune, id)
		}
	}
	p.activeStationsMu.RUnlock()

	if len(stationsToPrune) > 0 {
		p.activeStationsMu.Lock()
		for _, id := range stationsToPrune {
			delete(p.activeStations, id)
		}
		p.activeStationsMu.Unlock()
	}

	p.lastClassifiedTimeMu.Lock()
	updates := p.lastClassifiedTimes
	p.lastClassifiedTimes = make(map[string]int64)
	p.lastClassifiedTimeMu.Unlock()

	if len(updates) > 0 {
		if err := p.store.BatchUpdateLastClassifiedTime(updates); err != nil {
			p.logger.Error("Housekeeping DB update failed", zap.Error(err))
			p.requeue(updates)
		} else {
			p.logger.Info("Housekeeping: updated last classified time", zap.Int("stations", len(updates)))
		}
	}

	var report strings.Builder
	report.WriteString("\n--- Housekeeping Report ---\n")
	report.WriteString(fmt.Sprintf("%-15s | %-20s | %-10s\n", "Station", "Location", "Triaging?"))
	report.WriteString(strings.Repeat("-", 51) + "\n")

	stations := p.ActiveStations()
	p.metrics.SetActiveStations(len(stations))
	if len(stations) == 0 {
		report.WriteString("No active stations.\n")
	}
	for _, station := range stations {
		_, triaging := updates[station.StationID]
		report.WriteString(fmt.Sprintf("%-15s | %-20s | %-10t\n", station.StationID, station.Location, triaging))
	}
	if len(stationsToPrune) > 0 {
		report.WriteString(fmt.Sprintf("Pruned %d stopped station(s) from cache.\n", len(stationsToPrune)))
	}
	report.WriteString(strings.Repeat("-", 51))
	p.logger.Info(report.String())
}

// requeue puts back timestamps from a failed flush unless a newer one has
// arrived meanwhile.
func (p *TriageProcessor) requeue(updates map[string]int64) {
	p.lastClassifiedTimeMu.Lock()
	defer p.lastClassifiedTimeMu.Unlock()
	for id, ts := range updates {
		if cur, ok := p.lastClassifiedTimes[id]; !ok || cur < ts {
			p.lastClassifiedTimes[id] = ts
		}
	}
}
