package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage-kiosk/internal/triage"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "", cfg.KafkaBrokers)
	assert.Equal(t, "kiosk-vitals-topic", cfg.VitalsTopic)
	assert.Equal(t, "triage_kiosk", cfg.ConsumerGroup)
	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, triage.GatePolicyVitals, cfg.GatePolicy)
	assert.Equal(t, 2*time.Second, cfg.SimulatorInterval)
	assert.Equal(t, time.Minute, cfg.HousekeepingInterval)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 5*time.Minute, cfg.OutcomeTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.SimulatorEnabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvironmentVariables(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-1:9092")
	t.Setenv("GATE_POLICY", "RISK")
	t.Setenv("SIMULATOR_ENABLED", "TRUE")
	t.Setenv("SIMULATOR_INTERVAL", "500ms")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("AI_API_ENDPOINT", "http://localhost:5001/analyze")
	t.Setenv("LOG_LEVEL", "Debug")

	cfg := LoadConfig()

	assert.Equal(t, "broker-1:9092", cfg.KafkaBrokers)
	assert.Equal(t, triage.GatePolicyRisk, cfg.GatePolicy)
	assert.True(t, cfg.SimulatorEnabled)
	assert.Equal(t, 500*time.Millisecond, cfg.SimulatorInterval)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "http://localhost:5001/analyze", cfg.AIEndpoint)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_BadNumbersFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "three")
	t.Setenv("AI_TIMEOUT", "soon")

	cfg := LoadConfig()
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 5*time.Second, cfg.AITimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"gate policy", func(c *Config) { c.GatePolicy = "both" }},
		{"log level", func(c *Config) { c.LogLevel = "trace" }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
		{"simulator interval", func(c *Config) { c.SimulatorEnabled = true; c.SimulatorInterval = 0 }},
		{"housekeeping interval", func(c *Config) { c.HousekeepingInterval = 0 }},
		{"timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"kafka topics", func(c *Config) { c.KafkaBrokers = "localhost:9092"; c.OutcomeTopic = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
