// Package cache keeps the latest triage outcome per kiosk in Redis so that
// dashboards can read it without subscribing to a broker.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"triage-kiosk/internal/models"
)

const keyPrefix = "triage:station:"

// LatestKey is the Redis key holding the newest outcome for a station.
func LatestKey(stationID string) string {
	return keyPrefix + stationID + ":latest"
}

type OutcomeCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewOutcomeCache(client *redis.Client, ttl time.Duration) *OutcomeCache {
	return &OutcomeCache{client: client, ttl: ttl}
}

func (c *OutcomeCache) Name() string { return "redis" }

// Publish stores the outcome as the station's latest, replacing the last one.
func (c *OutcomeCache) Publish(ctx context.Context, outcome models.Outcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}
	if err := c.client.Set(ctx, LatestKey(outcome.StationID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache outcome for %s: %w", outcome.StationID, err)
	}
	return nil
}

// Latest returns the cached outcome, or false when none is cached.
func (c *OutcomeCache) Latest(ctx context.Context, stationID string) (models.Outcome, bool, error) {
	data, err := c.client.Get(ctx, LatestKey(stationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Outcome{}, false, nil
	}
	if err != nil {
		return models.Outcome{}, false, err
	}
	var outcome models.Outcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return models.Outcome{}, false, fmt.Errorf("corrupt cached outcome for %s: %w", stationID, err)
	}
	return outcome, true, nil
}

func (c *OutcomeCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *OutcomeCache) Close() error {
	return c.client.Close()
}
