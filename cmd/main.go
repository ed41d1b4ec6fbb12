package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"triage-kiosk/internal/analyzer"
	"triage-kiosk/internal/api"
	"triage-kiosk/internal/cache"
	"triage-kiosk/internal/config"
	"triage-kiosk/internal/database"
	"triage-kiosk/internal/handler"
	"triage-kiosk/internal/logging"
	"triage-kiosk/internal/metrics"
	"triage-kiosk/internal/models"
	"triage-kiosk/internal/vitals"
)

func main() {
	log.Println("Starting Triage Kiosk Service...")
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	logger := logging.NewLogger(logging.Options{
		Level:        cfg.LogLevel,
		Format:       cfg.LogFormat,
		ServiceName:  "triage-kiosk",
		File:         cfg.LogFile,
		LogToConsole: cfg.LogToConsole,
	})
	defer logger.Sync()
	logConfiguration(cfg, logger)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("Failed to load timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	repo, err := database.NewRepository(cfg.DBPath, loc, logger.Named("database"))
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer repo.Close()

	model := analyzer.NewModel(analyzer.Config{
		Endpoint: cfg.AIEndpoint,
		Timeout:  cfg.AITimeout,
		Retries:  cfg.AIRetries,
	})
	svc := analyzer.NewService(model, logger.Named("analyzer"))
	logger.Info("Analysis model selected", zap.String("model", model.Name()))

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.NewMetrics()
	}

	var publishers []handler.Publisher

	var outcomeCache *cache.OutcomeCache
	if cfg.RedisAddr != "" {
		outcomeCache = cache.NewOutcomeCache(cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.OutcomeTTL)
		defer outcomeCache.Close()
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
		if err := outcomeCache.Ping(pingCtx); err != nil {
			logger.Warn("Redis not reachable at startup; outcomes will be retried per message", zap.Error(err))
		}
		cancelPing()
		publishers = append(publishers, outcomeCache)
	}

	if cfg.KafkaBrokers != "" {
		kafkaPublisher, err := handler.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OutcomeTopic, logger.Named("kafka"))
		if err != nil {
			logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
		}
		defer kafkaPublisher.Close()
		publishers = append(publishers, kafkaPublisher)
	}

	// The MQTT publisher needs the client, and the client's handler needs the
	// processor, so the publisher slot is filled after connecting.
	mqttPublisher := &lateMQTTPublisher{}
	if cfg.MQTTBroker != "" {
		publishers = append(publishers, mqttPublisher)
	}

	processor, err := handler.NewTriageProcessor(repo, svc, cfg.GatePolicy, m, logger.Named("processor"), publishers...)
	if err != nil {
		logger.Fatal("Failed to initialize processor", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, closing consumers...")
		cancel()
	}()

	var wg sync.WaitGroup

	if cfg.MQTTBroker != "" {
		readings := vitals.NewChannelSource(64)
		mqttClient, err := handler.InitializeMQTT(cfg, handler.NewMessageHandler(processor, readings, logger.Named("mqtt")), logger.Named("mqtt"))
		if err != nil {
			logger.Fatal("Failed to initialize MQTT client", zap.Error(err))
		}
		mqttPublisher.set(handler.NewMQTTPublisher(mqttClient, cfg.MQTTOutcomePrefix))

		wg.Add(2)
		go func() {
			defer wg.Done()
			vitals.Run(ctx, readings, 0, processReading(processor), logger.Named("mqtt"))
		}()
		go func() {
			defer wg.Done()
			<-ctx.Done()
			logger.Info("Shutting down MQTT client...")
			mqttClient.Disconnect(250)
			readings.Close()
		}()
	}

	if cfg.KafkaBrokers != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := handler.RunKafkaConsumer(ctx, cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.VitalsTopic, processor.HandleVitalsMessage, logger.Named("kafka")); err != nil {
				logger.Error("Kafka consumer stopped", zap.Error(err))
				cancel()
			}
		}()
	}

	if cfg.SimulatorEnabled {
		sim := vitals.NewSimulator(cfg.SimulatorStationID, cfg.SimulatorSeed)
		logger.Info("Vitals simulator enabled",
			zap.String("station_id", cfg.SimulatorStationID),
			zap.Duration("interval", cfg.SimulatorInterval),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			vitals.Run(ctx, sim, cfg.SimulatorInterval, processReading(processor), logger.Named("simulator"))
		}()
	}

	// Start the housekeeping goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		processor.RunHousekeepingCycle(ctx, cfg.HousekeepingInterval)
	}()

	var latest api.LatestReader
	if outcomeCache != nil {
		latest = outcomeCache
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(svc, processor, latest, m, logger.Named("api")).Handler(os.Stdout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown", zap.Error(err))
		}
	}()

	logger.Info("🚀 Service started successfully. Waiting for readings...")
	wg.Wait()
	logger.Info("All services closed. Exiting.")
}

func processReading(p *handler.TriageProcessor) func(context.Context, models.Reading) {
	return func(ctx context.Context, r models.Reading) {
		p.Process(ctx, r)
	}
}

// lateMQTTPublisher forwards to the MQTT publisher once the client is up and
// drops outcomes before that.
type lateMQTTPublisher struct {
	mu  sync.RWMutex
	pub *handler.MQTTPublisher
}

func (l *lateMQTTPublisher) set(p *handler.MQTTPublisher) {
	l.mu.Lock()
	l.pub = p
	l.mu.Unlock()
}

func (l *lateMQTTPublisher) Name() string { return "mqtt" }

func (l *lateMQTTPublisher) Publish(ctx context.Context, outcome models.Outcome) error {
	l.mu.RLock()
	pub := l.pub
	l.mu.RUnlock()
	if pub == nil {
		return errors.New("mqtt client not connected yet")
	}
	return pub.Publish(ctx, outcome)
}

func logConfiguration(cfg *config.Config, logger *zap.Logger) {
	logger.Info("--- Service Configuration ---")
	logger.Info("Kafka Brokers", zap.String("value", orDisabled(cfg.KafkaBrokers)))
	logger.Info("MQTT Broker URL", zap.String("value", orDisabled(cfg.MQTTBroker)))
	logger.Info("Redis Address", zap.String("value", orDisabled(cfg.RedisAddr)))
	logger.Info("AI API Endpoint", zap.String("value", orDisabled(cfg.AIEndpoint)))
	logger.Info("Gate Policy", zap.String("value", string(cfg.GatePolicy)))
	logger.Info("HTTP Address", zap.String("value", cfg.HTTPAddr))
	logger.Info("DB Path", zap.String("value", cfg.DBPath))
	logger.Info("Metrics Enabled", zap.Bool("value", cfg.MetricsEnabled))
	logger.Info("MQTT Password", zap.String("value", setOrNot(cfg.MQTTPassword)))
	logger.Info("Redis Password", zap.String("value", setOrNot(cfg.RedisPassword)))
	logger.Info("---------------------------")
}

func orDisabled(v string) string {
	if v == "" {
		return "[DISABLED]"
	}
	return v
}

func setOrNot(secret string) string {
	if secret != "" {
		return "[SET]"
	}
	return "[NOT SET]"
}
