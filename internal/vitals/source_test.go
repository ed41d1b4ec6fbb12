package vitals

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"triage-kiosk/internal/models"
)

func TestSimulator_Ranges(t *testing.T) {
	sim := NewSimulator("kiosk-sim", 42)
	masked := 0
	const n = 5000
	for i := 0; i < n; i++ {
		r, err := sim.Next(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "kiosk-sim", r.StationID)
		assert.GreaterOrEqual(t, r.Temperature, 36.0)
		assert.LessOrEqual(t, r.Temperature, 38.0)
		assert.GreaterOrEqual(t, r.SpO2, 93.0)
		assert.LessOrEqual(t, r.SpO2, 99.0)
		require.NotNil(t, r.HeartRate)
		assert.GreaterOrEqual(t, *r.HeartRate, 75.0)
		assert.LessOrEqual(t, *r.HeartRate, 114.0)
		require.NotNil(t, r.BloodPressure)
		assert.GreaterOrEqual(t, r.BloodPressure.Systolic, 110.0)
		assert.LessOrEqual(t, r.BloodPressure.Systolic, 149.0)
		assert.GreaterOrEqual(t, r.BloodPressure.Diastolic, 70.0)
		assert.LessOrEqual(t, r.BloodPressure.Diastolic, 99.0)
		require.NotNil(t, r.RespiratoryRate)
		assert.GreaterOrEqual(t, *r.RespiratoryRate, 12.0)
		assert.LessOrEqual(t, *r.RespiratoryRate, 23.0)
		if r.MaskWorn {
			masked++
		}
	}
	ratio := float64(masked) / n
	assert.InDelta(t, 0.7, ratio, 0.05)
}

func TestSimulator_Deterministic(t *testing.T) {
	a, b := NewSimulator("k", 7), NewSimulator("k", 7)
	for i := 0; i < 20; i++ {
		ra, _ := a.Next(context.Background())
		rb, _ := b.Next(context.Background())
		assert.Equal(t, ra.Snapshot, rb.Snapshot)
		assert.Equal(t, ra.MaskWorn, rb.MaskWorn)
	}
}

func TestSimulator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimulator("k", 1).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannelSource(t *testing.T) {
	src := NewChannelSource(1)
	ctx := context.Background()

	require.True(t, src.Push(ctx, models.Reading{StationID: "a"}))
	r, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", r.StationID)

	src.Close()
	src.Close()
	assert.False(t, src.Push(ctx, models.Reading{StationID: "b"}))
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestChannelSource_TryPushNeverBlocks(t *testing.T) {
	src := NewChannelSource(1)

	assert.True(t, src.TryPush(models.Reading{StationID: "a"}))
	assert.False(t, src.TryPush(models.Reading{StationID: "b"}), "buffer full")

	r, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", r.StationID)

	src.Close()
	assert.False(t, src.TryPush(models.Reading{StationID: "c"}))
}

func TestRun_StopsWhenSourceCloses(t *testing.T) {
	src := NewChannelSource(4)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, src.Push(ctx, models.Reading{StationID: id}))
	}

	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})
	go func() {
		Run(ctx, src, 0, func(_ context.Context, r models.Reading) {
			mu.Lock()
			seen = append(seen, r.StationID)
			n := len(seen)
			mu.Unlock()
			if n == 3 {
				src.Close()
			}
		}, zap.NewNop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestRun_TickerAndCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	Run(ctx, NewSimulator("k", 3), time.Millisecond, func(context.Context, models.Reading) {
		count++
		if count == 5 {
			cancel()
		}
	}, zap.NewNop())
	assert.Equal(t, 5, count)
}
