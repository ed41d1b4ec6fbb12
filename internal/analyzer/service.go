// Package analyzer wraps the triage classifier in the analysis result that
// kiosks and downstream consumers receive.
package analyzer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"triage-kiosk/internal/triage"
)

const (
	PrimaryConfidence  = 0.92
	FallbackConfidence = 0.70
)

// Source names the path that produced a Result.
type Source string

const (
	SourceRules    Source = "rules"
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// HealthData echoes the input vitals next to the verdict fields.
type HealthData struct {
	Temperature     float64               `json:"temperature"`
	SpO2            float64               `json:"spo2"`
	HeartRate       *float64              `json:"heartRate,omitempty"`
	BloodPressure   *triage.BloodPressure `json:"bloodPressure,omitempty"`
	RespiratoryRate *float64              `json:"respiratoryRate,omitempty"`
	triage.Verdict
}

type Result struct {
	HealthData         HealthData `json:"healthData"`
	Confidence         float64    `json:"confidence"`
	DetectedConditions []string   `json:"detectedConditions"`
	Timestamp          int64      `json:"timestamp"`
	Source             Source     `json:"source"`
	FallbackReason     string     `json:"fallbackReason,omitempty"`
}

type Service struct {
	model  Model
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(model Model, logger *zap.Logger, opts ...Option) *Service {
	if model == nil {
		model = RuleModel{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{model: model, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze never fails. If the primary model errors, the same snapshot is
// classified by the local rules and reported with FallbackConfidence and no
// detected conditions.
func (s *Service) Analyze(ctx context.Context, snap triage.Snapshot) Result {
	verdict, err := s.model.Analyze(ctx, snap)
	if err != nil {
		s.logger.Warn("Primary analysis failed, using rule fallback",
			zap.String("model", s.model.Name()),
			zap.Error(err),
		)
		res := s.build(snap, triage.Classify(snap), FallbackConfidence, SourceFallback, []string{})
		res.FallbackReason = err.Error()
		return res
	}

	detected := make([]string, len(verdict.Symptoms))
	copy(detected, verdict.Symptoms)
	return s.build(snap, verdict, PrimaryConfidence, Source(s.model.Name()), detected)
}

func (s *Service) build(snap triage.Snapshot, v triage.Verdict, confidence float64, src Source, detected []string) Result {
	return Result{
		HealthData: HealthData{
			Temperature:     snap.Temperature,
			SpO2:            snap.SpO2,
			HeartRate:       snap.HeartRate,
			BloodPressure:   snap.BloodPressure,
			RespiratoryRate: snap.RespiratoryRate,
			Verdict:         v,
		},
		Confidence:         confidence,
		DetectedConditions: detected,
		Timestamp:          s.now().UnixMilli(),
		Source:             src,
	}
}
