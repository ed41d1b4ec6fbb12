package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"triage-kiosk/internal/models"
)

// RunKafkaConsumer polls topic until ctx is done and hands every message
// value to handlerFunc.
func RunKafkaConsumer(ctx context.Context, brokers, group, topic string, handlerFunc func(context.Context, []byte), logger *zap.Logger) error {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"group.id":          group,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer for topic %s: %w", topic, err)
	}
	defer consumer.Close()

	if err := consumer.Subscribe(topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	logger.Info("Consumer started", zap.String("topic", topic), zap.String("group_id", group))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping consumer", zap.String("topic", topic))
			return nil
		default:
			ev := consumer.Poll(100)
			if ev == nil {
				continue
			}
			switch e := ev.(type) {
			case *kafka.Message:
				handlerFunc(ctx, e.Value)
			case kafka.Error:
				logger.Error("Kafka error", zap.String("topic", topic), zap.Error(e))
			}
		}
	}
}

// KafkaPublisher writes outcomes to a topic, keyed by station so a kiosk's
// outcomes stay ordered within a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   *zap.Logger
	done     chan struct{}
}

func NewKafkaPublisher(brokers, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	p := &KafkaPublisher{producer: producer, topic: topic, logger: logger, done: make(chan struct{})}
	go p.drainEvents()
	return p, nil
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) drainEvents() {
	defer close(p.done)
	for ev := range p.producer.Events() {
		switch e := ev.(type) {
		case *kafka.Message:
			if e.TopicPartition.Error != nil {
				p.logger.Error("Outcome delivery failed",
					zap.String("key", string(e.Key)),
					zap.Error(e.TopicPartition.Error),
				)
			}
		case kafka.Error:
			p.logger.Error("Kafka producer error", zap.Error(e))
		}
	}
}

func (p *KafkaPublisher) Publish(_ context.Context, outcome models.Outcome) error {
	msg, err := outcomeMessage(p.topic, outcome)
	if err != nil {
		return err
	}
	return p.producer.Produce(msg, nil)
}

// Close flushes pending messages for up to five seconds.
func (p *KafkaPublisher) Close() {
	if remaining := p.producer.Flush(5000); remaining > 0 {
		p.logger.Warn("Outcomes not delivered before shutdown", zap.Int("remaining", remaining))
	}
	p.producer.Close()
	<-p.done
}

func outcomeMessage(topic string, outcome models.Outcome) (*kafka.Message, error) {
	value, err := json.Marshal(outcome)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outcome %s: %w", outcome.ID, err)
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(outcome.StationID),
		Value:          value,
		Headers:        []kafka.Header{{Key: "outcome-id", Value: []byte(outcome.ID)}},
	}, nil
}
