package triage

import (
	"fmt"
	"strings"
)

type GateStatus string

const (
	AccessGranted GateStatus = "ACCESS_GRANTED"
	AccessDenied  GateStatus = "ACCESS_DENIED"
)

// GatePolicy selects which rule drives the access gate.
type GatePolicy string

const (
	// GatePolicyVitals decides from mask, temperature and SpO2 directly.
	GatePolicyVitals GatePolicy = "vitals"
	// GatePolicyRisk denies entry only when the verdict is CRITICAL.
	GatePolicyRisk GatePolicy = "risk"
)

// ParseGatePolicy accepts "vitals" or "risk", case-insensitively.
func ParseGatePolicy(s string) (GatePolicy, error) {
	switch p := GatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case GatePolicyVitals, GatePolicyRisk:
		return p, nil
	default:
		return "", fmt.Errorf("unknown gate policy %q", s)
	}
}

const (
	ReasonProceed         = "Please proceed"
	ReasonMaskRequired    = "Mask required"
	ReasonHighTemperature = "High body temperature"
	ReasonLowOxygen       = "Low oxygen saturation"
	ReasonEmergency       = "Emergency care required"
)

type GateInput struct {
	MaskWorn    bool    `json:"maskWorn"`
	Temperature float64 `json:"temperature"`
	SpO2        float64 `json:"spo2"`
}

type GateDecision struct {
	Status GateStatus `json:"status"`
	Reason string     `json:"reason"`
	Policy GatePolicy `json:"policy"`
}

func (d GateDecision) Granted() bool { return d.Status == AccessGranted }

// EvaluateGate applies the raw-vitals rule. When several conditions fail,
// the reason follows mask, then temperature, then oxygen.
func EvaluateGate(in GateInput) GateDecision {
	d := GateDecision{Status: AccessDenied, Policy: GatePolicyVitals}
	switch {
	case in.MaskWorn && in.Temperature < 37.5 && in.SpO2 > 95:
		d.Status = AccessGranted
		d.Reason = ReasonProceed
	case !in.MaskWorn:
		d.Reason = ReasonMaskRequired
	case in.Temperature >= 37.5:
		d.Reason = ReasonHighTemperature
	default:
		d.Reason = ReasonLowOxygen
	}
	return d
}

// GateFromRisk applies the risk-level rule.
func GateFromRisk(level RiskLevel) GateDecision {
	if level == Critical {
		return GateDecision{Status: AccessDenied, Reason: ReasonEmergency, Policy: GatePolicyRisk}
	}
	return GateDecision{Status: AccessGranted, Reason: ReasonProceed, Policy: GatePolicyRisk}
}
