package vitals

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"triage-kiosk/internal/models"
	"triage-kiosk/internal/triage"
)

// Simulator generates plausible kiosk readings for demos and load tests.
// Ranges follow the dashboard mock: mostly healthy visitors, with enough
// spread to hit fever, low SpO2 and a missing mask now and then.
type Simulator struct {
	stationID string
	now       func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulator(stationID string, seed uint64) *Simulator {
	return &Simulator{
		stationID: stationID,
		now:       time.Now,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Simulator) Next(ctx context.Context) (models.Reading, error) {
	if err := ctx.Err(); err != nil {
		return models.Reading{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	temp := math.Round((36.0+s.rng.Float64()*2.0)*10) / 10
	spo2 := float64(93 + s.rng.IntN(7))
	heartRate := float64(75 + s.rng.IntN(40))
	respiratory := float64(12 + s.rng.IntN(12))

	return models.Reading{
		StationID:  s.stationID,
		CapturedAt: s.now().UnixMilli(),
		MaskWorn:   s.rng.Float64() > 0.3,
		Snapshot: triage.Snapshot{
			Temperature: temp,
			SpO2:        spo2,
			HeartRate:   &heartRate,
			BloodPressure: &triage.BloodPressure{
				Systolic:  float64(110 + s.rng.IntN(40)),
				Diastolic: float64(70 + s.rng.IntN(30)),
			},
			RespiratoryRate: &respiratory,
		},
	}, nil
}
