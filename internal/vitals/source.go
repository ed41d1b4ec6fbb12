// Package vitals provides the readings the triage processor consumes. The
// simulator stands in for kiosk hardware; ChannelSource adapts pushed
// messages (MQTT, Kafka) to the same pull interface.
package vitals

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"triage-kiosk/internal/models"
)

// ErrClosed is returned by Next once a source has no more readings.
var ErrClosed = errors.New("vitals source closed")

type Source interface {
	Next(ctx context.Context) (models.Reading, error)
}

// ChannelSource is a push-based Source.
type ChannelSource struct {
	ch        chan models.Reading
	done      chan struct{}
	closeOnce sync.Once
}

func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{
		ch:   make(chan models.Reading, buffer),
		done: make(chan struct{}),
	}
}

// Push hands a reading to the consumer. It blocks while the buffer is full
// and returns false once the source is closed or ctx is done.
func (c *ChannelSource) Push(ctx context.Context, r models.Reading) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.ch <- r:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// TryPush is Push without waiting: it returns false when the buffer is full
// or the source is closed.
func (c *ChannelSource) TryPush(r models.Reading) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.ch <- r:
		return true
	default:
		return false
	}
}

func (c *ChannelSource) Next(ctx context.Context) (models.Reading, error) {
	select {
	case r := <-c.ch:
		return r, nil
	case <-c.done:
		return models.Reading{}, ErrClosed
	case <-ctx.Done():
		return models.Reading{}, ctx.Err()
	}
}

func (c *ChannelSource) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Run pulls from src every interval and hands each reading to fn. A zero
// interval pulls back to back, which suits push-based sources. Run returns
// when ctx is done or the source is closed; other errors are logged and the
// loop carries on.
func Run(ctx context.Context, src Source, interval time.Duration, fn func(context.Context, models.Reading), logger *zap.Logger) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		}

		r, err := src.Next(ctx)
		switch {
		case err == nil:
			fn(ctx, r)
		case errors.Is(err, ErrClosed), ctx.Err() != nil:
			return
		default:
			logger.Warn("Failed to read vitals", zap.Error(err))
		}
	}
}
