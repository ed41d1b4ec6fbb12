package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"triage-kiosk/internal/config"
	"triage-kiosk/internal/models"
	"triage-kiosk/internal/vitals"
)

const (
	TopicVitals        = "triage/vitals"
	TopicStationStart  = "triage/station_start"
	TopicStationAction = "triage/station_action"
)

var subscribedTopics = []string{TopicVitals, TopicStationStart, TopicStationAction}

// NewMessageHandler routes MQTT messages. Vitals are handed to readings
// without waiting, so the paho callback never blocks; a reading that finds
// the buffer full is dropped. When readings is nil they are processed inline.
func NewMessageHandler(processor *TriageProcessor, readings *vitals.ChannelSource, logger *zap.Logger) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		logger.Debug("Received message", zap.String("topic", msg.Topic()), zap.ByteString("payload", msg.Payload()))

		switch msg.Topic() {
		case TopicVitals:
			if readings == nil {
				processor.HandleVitalsMessage(context.Background(), msg.Payload())
				return
			}
			r, err := DecodeReading(msg.Payload())
			if err != nil {
				logger.Warn("Discarding vitals message", zap.Error(err))
				return
			}
			if !readings.TryPush(r) {
				logger.Warn("Reading dropped, queue full or closed", zap.String("station_id", r.StationID))
			}
		case TopicStationStart:
			processor.HandleStationStart(msg.Payload())
		case TopicStationAction:
			processor.HandleStationAction(msg.Payload())
		default:
			logger.Warn("Unknown topic", zap.String("topic", msg.Topic()))
		}
	}
}

func InitializeMQTT(cfg *config.Config, handler mqtt.MessageHandler, logger *zap.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetUsername(cfg.MQTTUsername)
	opts.SetPassword(cfg.MQTTPassword)
	opts.SetAutoReconnect(true)
	opts.SetDefaultPublishHandler(handler)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))
		subscribeToTopics(client, logger)
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return client, nil
}

func subscribeToTopics(client mqtt.Client, logger *zap.Logger) {
	for _, topic := range subscribedTopics {
		token := client.Subscribe(topic, 1, nil)
		token.Wait()
		if err := token.Error(); err != nil {
			logger.Error("Failed to subscribe", zap.String("topic", topic), zap.Error(err))
			continue
		}
		logger.Info("Subscribed to topic", zap.String("topic", topic))
	}
}

// DefaultPublishTimeout bounds the wait for a QoS 1 acknowledgement.
const DefaultPublishTimeout = 5 * time.Second

// MQTTPublisher sends each outcome to <prefix><stationId>.
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
}

func NewMQTTPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix, timeout: DefaultPublishTimeout}
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

func (p *MQTTPublisher) Topic(stationID string) string {
	if stationID == "" {
		stationID = "unknown"
	}
	return p.prefix + stationID
}

func (p *MQTTPublisher) Publish(ctx context.Context, outcome models.Outcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome %s: %w", outcome.ID, err)
	}
	topic := p.Topic(outcome.StationID)
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	token := p.client.Publish(topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to topic %s not acknowledged: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}
