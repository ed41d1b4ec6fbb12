package models

import (
	"errors"

	"triage-kiosk/internal/analyzer"
	"triage-kiosk/internal/triage"
)

// Reading is one measurement cycle from a kiosk: the vitals snapshot plus
// the mask detection used by the access gate.
type Reading struct {
	StationID  string `json:"stationId"`
	CapturedAt int64  `json:"capturedAt"`
	MaskWorn   bool   `json:"maskWorn"`
	triage.Snapshot
}

// GateInput picks out the fields the raw-vitals gate looks at.
func (r Reading) GateInput() triage.GateInput {
	return triage.GateInput{MaskWorn: r.MaskWorn, Temperature: r.Temperature, SpO2: r.SpO2}
}

// VitalsMessage is the inbound Kafka/MQTT shape. Required vitals are
// pointers so a missing field can be told apart from a zero reading.
type VitalsMessage struct {
	StationID       string                `json:"stationId"`
	CapturedAt      int64                 `json:"capturedAt"`
	MaskWorn        bool                  `json:"maskWorn"`
	Temperature     *float64              `json:"temperature"`
	SpO2            *float64              `json:"spo2"`
	HeartRate       *float64              `json:"heartRate,omitempty"`
	BloodPressure   *triage.BloodPressure `json:"bloodPressure,omitempty"`
	RespiratoryRate *float64              `json:"respiratoryRate,omitempty"`
	ImageData       string                `json:"imageData,omitempty"`
}

// ErrMissingVitals means temperature or spo2 was absent from a message.
var ErrMissingVitals = errors.New("temperature and spo2 are required")

// Reading converts the message, rejecting it when a required vital is absent.
func (m VitalsMessage) Reading() (Reading, error) {
	if m.Temperature == nil || m.SpO2 == nil {
		return Reading{}, ErrMissingVitals
	}
	return Reading{
		StationID:  m.StationID,
		CapturedAt: m.CapturedAt,
		MaskWorn:   m.MaskWorn,
		Snapshot: triage.Snapshot{
			Temperature:     *m.Temperature,
			SpO2:            *m.SpO2,
			HeartRate:       m.HeartRate,
			BloodPressure:   m.BloodPressure,
			RespiratoryRate: m.RespiratoryRate,
			ImageData:       m.ImageData,
		},
	}, nil
}

// Outcome is what publishers receive for every processed reading.
type Outcome struct {
	ID          string              `json:"id"`
	StationID   string              `json:"stationId"`
	Result      analyzer.Result     `json:"result"`
	Gate        triage.GateDecision `json:"gate"`
	ProcessedAt int64               `json:"processedAt"`
}

// Station represents a kiosk's monitoring session
type Station struct {
	StationID          string `json:"stationId"`
	Location           string `json:"location"`
	Status             string `json:"status"`
	StartTime          int64  `json:"startTime"`
	EndTime            *int64 `json:"endTime,omitempty"`
	LastClassifiedTime *int64 `json:"lastClassifiedTime,omitempty"`
}

const (
	StationRunning = "running"
	StationStopped = "stopped"
)

type StationStartPayload struct {
	StationID string `json:"stationId"`
	Location  string `json:"location"`
}

type StationActionPayload struct {
	StationID string `json:"stationId"`
	Action    string `json:"action"`
}
