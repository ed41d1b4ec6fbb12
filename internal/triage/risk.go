package triage

import "fmt"

// RiskLevel is the ordered severity scale. Comparisons use the integer
// order, so max(a, b) is the more severe of the two.
type RiskLevel int

const (
	Low RiskLevel = iota
	Medium
	High
	Critical
)

var riskNames = [...]string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}

func (r RiskLevel) String() string {
	if r < Low || r > Critical {
		return fmt.Sprintf("RiskLevel(%d)", int(r))
	}
	return riskNames[r]
}

func (r RiskLevel) MarshalText() ([]byte, error) {
	if r < Low || r > Critical {
		return nil, fmt.Errorf("invalid risk level %d", int(r))
	}
	return []byte(riskNames[r]), nil
}

func (r *RiskLevel) UnmarshalText(text []byte) error {
	level, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*r = level
	return nil
}

// ParseRiskLevel maps the wire name back to a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	for i, name := range riskNames {
		if name == s {
			return RiskLevel(i), nil
		}
	}
	return Low, fmt.Errorf("unknown risk level %q", s)
}

// Status is the triage label shown at the kiosk.
type Status string

const (
	StatusNormal  Status = "NORMAL"
	StatusWaspada Status = "WASPADA" // alert
	StatusKritis  Status = "KRITIS"  // critical, needs access to care
	StatusDarurat Status = "DARURAT" // emergency
)
