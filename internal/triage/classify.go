// Package triage holds the rule-based risk classifier and the access gate.
// Both are pure functions and safe for concurrent use.
package triage

// Symptom labels, in the order Classify can emit them.
const (
	SymptomHighFever            = "High Fever"
	SymptomFever                = "Fever"
	SymptomSevereHypoxemia      = "Severe Hypoxemia"
	SymptomHypoxemia            = "Hypoxemia"
	SymptomTachycardia          = "Tachycardia"
	SymptomBradycardia          = "Bradycardia"
	SymptomCriticalHypertension = "Critical Hypertension"
	SymptomHypertension         = "Hypertension"
	SymptomTachypnea            = "Tachypnea"
	SymptomBradypnea            = "Bradypnea"
)

// Verdict is the classifier output for one snapshot.
type Verdict struct {
	Symptoms        []string  `json:"symptoms"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	Status          Status    `json:"status"`
	Message         string    `json:"message"`
	Recommendations []string  `json:"recommendations"`
}

type triageEntry struct {
	status          Status
	message         string
	recommendations []string
}

var triageTable = map[RiskLevel]triageEntry{
	Low: {
		status:          StatusNormal,
		message:         "Condition within normal limits",
		recommendations: []string{"Maintain a healthy lifestyle", "Schedule routine checkups"},
	},
	Medium: {
		status:          StatusWaspada,
		message:         "Requires health monitoring",
		recommendations: []string{"Consult a physician", "Get adequate rest", "Monitor symptoms"},
	},
	High: {
		status:          StatusKritis,
		message:         "Requires immediate medical attention",
		recommendations: []string{"Visit emergency department", "Monitor condition periodically", "Prepare history"},
	},
	Critical: {
		status:          StatusDarurat,
		message:         "Requires immediate emergency care",
		recommendations: []string{"Contact medical team immediately", "Continuous vital monitoring", "Prepare resuscitation equipment"},
	},
}

// assessment accumulates symptoms and the running risk floor.
type assessment struct {
	symptoms []string
	level    RiskLevel
}

func (a *assessment) raise(symptom string, to RiskLevel) {
	a.symptoms = append(a.symptoms, symptom)
	a.level = max(a.level, to)
}

// raiseIfLow records the symptom but only lifts a LOW level to MEDIUM.
func (a *assessment) raiseIfLow(symptom string) {
	a.symptoms = append(a.symptoms, symptom)
	if a.level == Low {
		a.level = Medium
	}
}

// Classify runs the threshold cascade over s. The checks run in a fixed
// order because the conditional raises look at the level reached so far.
func Classify(s Snapshot) Verdict {
	a := assessment{symptoms: []string{}, level: Low}

	switch {
	case s.Temperature >= 38.0:
		a.raise(SymptomHighFever, High)
	case s.Temperature >= 37.5:
		a.raise(SymptomFever, Medium)
	}

	switch {
	case s.SpO2 < 90:
		a.raise(SymptomSevereHypoxemia, Critical)
	case s.SpO2 < 95:
		a.raise(SymptomHypoxemia, High)
	}

	if hr, ok := present(s.HeartRate); ok {
		switch {
		case hr > 120:
			a.raiseIfLow(SymptomTachycardia)
		case hr < 50:
			a.raiseIfLow(SymptomBradycardia)
		}
	}

	if bp := s.BloodPressure; bp != nil {
		switch {
		case bp.Systolic >= 180 || bp.Diastolic >= 120:
			a.raise(SymptomCriticalHypertension, Critical)
		case bp.Systolic >= 140 || bp.Diastolic >= 90:
			a.raiseIfLow(SymptomHypertension)
		}
	}

	if rr, ok := present(s.RespiratoryRate); ok {
		switch {
		case rr > 30:
			a.raiseIfLow(SymptomTachypnea)
		case rr < 12:
			a.raiseIfLow(SymptomBradypnea)
		}
	}

	return VerdictFor(a.level, a.symptoms)
}

// VerdictFor builds the verdict for a final risk level. Status, message and
// recommendations come from the level alone.
func VerdictFor(level RiskLevel, symptoms []string) Verdict {
	entry, ok := triageTable[level]
	if !ok {
		entry = triageTable[Low]
		level = Low
	}
	if symptoms == nil {
		symptoms = []string{}
	}
	recs := make([]string, len(entry.recommendations))
	copy(recs, entry.recommendations)
	return Verdict{
		Symptoms:        symptoms,
		RiskLevel:       level,
		Status:          entry.status,
		Message:         entry.message,
		Recommendations: recs,
	}
}
