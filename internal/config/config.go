package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"triage-kiosk/internal/triage"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	// Kafka. Empty brokers disable the consumer and producer.
	KafkaBrokers  string
	VitalsTopic   string
	OutcomeTopic  string
	ConsumerGroup string

	// MQTT. Empty broker disables the client.
	MQTTBroker        string
	MQTTClientID      string
	MQTTUsername      string
	MQTTPassword      string
	MQTTOutcomePrefix string

	// Redis latest-outcome cache. Empty address disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	OutcomeTTL    time.Duration

	HTTPAddr string
	DBPath   string
	Timezone string

	// Remote analysis model. Empty endpoint means local rules only.
	AIEndpoint string
	AITimeout  time.Duration
	AIRetries  int

	GatePolicy triage.GatePolicy

	SimulatorEnabled   bool
	SimulatorStationID string
	SimulatorInterval  time.Duration
	SimulatorSeed      uint64

	HousekeepingInterval time.Duration

	MetricsEnabled bool

	LogLevel     string
	LogFormat    string
	LogFile      string
	LogToConsole bool
}

func LoadConfig() *Config {
	err := godotenv.Load() // Looks for ".env" in the current directory
	if err != nil {
		log.Println("No .env file found, using environment variables or default values")
	}

	return &Config{
		KafkaBrokers:  getEnv("KAFKA_BROKERS", ""),
		VitalsTopic:   getEnv("VITALS_TOPIC", "kiosk-vitals-topic"),
		OutcomeTopic:  getEnv("OUTCOME_TOPIC", "kiosk-triage-outcome-topic"),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "triage_kiosk"),

		MQTTBroker:        getEnv("MQTT_BROKER_URL", ""),
		MQTTClientID:      getEnv("MQTT_CLIENT_ID", "TriageKiosk_local"),
		MQTTUsername:      getEnv("MQTT_USERNAME", ""),
		MQTTPassword:      getEnv("MQTT_PASSWORD", ""),
		MQTTOutcomePrefix: getEnv("MQTT_OUTCOME_PREFIX", "triage/outcome/"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		OutcomeTTL:    getEnvDuration("OUTCOME_TTL", 5*time.Minute),

		HTTPAddr: getEnv("HTTP_ADDR", ":8000"),
		DBPath:   getEnv("DB_PATH", "triage.db"),
		Timezone: getEnv("TIMEZONE", "Asia/Jakarta"),

		AIEndpoint: getEnv("AI_API_ENDPOINT", ""),
		AITimeout:  getEnvDuration("AI_TIMEOUT", 5*time.Second),
		AIRetries:  getEnvInt("AI_RETRIES", 1),

		GatePolicy: triage.GatePolicy(strings.ToLower(getEnv("GATE_POLICY", string(triage.GatePolicyVitals)))),

		SimulatorEnabled:   getEnvBool("SIMULATOR_ENABLED", false),
		SimulatorStationID: getEnv("SIMULATOR_STATION_ID", "kiosk-sim"),
		SimulatorInterval:  getEnvDuration("SIMULATOR_INTERVAL", 2*time.Second),
		SimulatorSeed:      uint64(getEnvInt("SIMULATOR_SEED", int(time.Now().UnixNano()&0x7fffffff))),

		HousekeepingInterval: getEnvDuration("HOUSEKEEPING_INTERVAL", time.Minute),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:    strings.ToLower(getEnv("LOG_FORMAT", "json")),
		LogFile:      getEnv("LOG_FILE", "./logs/triage.log"),
		LogToConsole: getEnvBool("LOG_TO_CONSOLE", false),
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if _, err := triage.ParseGatePolicy(string(c.GatePolicy)); err != nil {
		return fmt.Errorf("%w: GATE_POLICY: %v", ErrInvalid, err)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: LOG_LEVEL %q", ErrInvalid, c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("%w: LOG_FORMAT %q", ErrInvalid, c.LogFormat)
	}
	if c.SimulatorEnabled && c.SimulatorInterval <= 0 {
		return fmt.Errorf("%w: SIMULATOR_INTERVAL must be positive", ErrInvalid)
	}
	if c.HousekeepingInterval <= 0 {
		return fmt.Errorf("%w: HOUSEKEEPING_INTERVAL must be positive", ErrInvalid)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: TIMEZONE: %v", ErrInvalid, err)
	}
	if c.KafkaBrokers != "" && (c.VitalsTopic == "" || c.OutcomeTopic == "") {
		return fmt.Errorf("%w: Kafka topics must be set when KAFKA_BROKERS is", ErrInvalid)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return strings.EqualFold(value, "true")
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid integer for %s=%q, using %d", key, value, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s=%q, using %s", key, value, fallback)
	}
	return fallback
}
