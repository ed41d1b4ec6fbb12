package triage

import (
	"errors"
	"fmt"
	"math"
)

// ErrImplausible is returned by Validate for values no sensor could produce.
var ErrImplausible = errors.New("implausible vitals")

// Plausibility bounds applied by Validate. Classify ignores them.
const (
	MinPlausibleTemperature = 25.0
	MaxPlausibleTemperature = 45.0
)

type BloodPressure struct {
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
}

// Snapshot is one set of vitals. Optional fields are nil when the kiosk has
// no such sensor; a zero value is treated the same as nil.
type Snapshot struct {
	Temperature     float64        `json:"temperature"`
	SpO2            float64        `json:"spo2"`
	HeartRate       *float64       `json:"heartRate,omitempty"`
	BloodPressure   *BloodPressure `json:"bloodPressure,omitempty"`
	RespiratoryRate *float64       `json:"respiratoryRate,omitempty"`
	ImageData       string         `json:"imageData,omitempty"`
}

func present(v *float64) (float64, bool) {
	if v == nil || *v == 0 {
		return 0, false
	}
	return *v, true
}

// Validate reports whether the snapshot holds values a real sensor could
// produce. It never changes what Classify returns for the same snapshot.
func Validate(s Snapshot) error {
	if !finite(s.Temperature) || !finite(s.SpO2) {
		return fmt.Errorf("%w: non-finite temperature or spo2", ErrImplausible)
	}
	if s.Temperature < MinPlausibleTemperature || s.Temperature > MaxPlausibleTemperature {
		return fmt.Errorf("%w: temperature %.1f outside [%.0f, %.0f]", ErrImplausible, s.Temperature, MinPlausibleTemperature, MaxPlausibleTemperature)
	}
	if s.SpO2 < 0 || s.SpO2 > 100 {
		return fmt.Errorf("%w: spo2 %.1f outside [0, 100]", ErrImplausible, s.SpO2)
	}
	if err := checkOptional("heart rate", s.HeartRate); err != nil {
		return err
	}
	if err := checkOptional("respiratory rate", s.RespiratoryRate); err != nil {
		return err
	}
	if bp := s.BloodPressure; bp != nil {
		if !finite(bp.Systolic) || !finite(bp.Diastolic) || bp.Systolic < 0 || bp.Diastolic < 0 {
			return fmt.Errorf("%w: blood pressure %.0f/%.0f", ErrImplausible, bp.Systolic, bp.Diastolic)
		}
	}
	return nil
}

func checkOptional(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if !finite(*v) || *v < 0 {
		return fmt.Errorf("%w: %s %v", ErrImplausible, name, *v)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
