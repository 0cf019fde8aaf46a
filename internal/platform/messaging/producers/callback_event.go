package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/vaultpay/payment-core/internal/config"
)

// CallbackEventProducer publishes provider callback events from the webhook
// ingress to the callback topic. Writes are synchronous: the webhook only
// acknowledges the provider once the event is on the broker.
type CallbackEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewCallbackEventProducer creates the callback producer and ensures the topic exists
func NewCallbackEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*CallbackEventProducer, error) {
	if cfg.CallbackTopic == "" {
		return nil, fmt.Errorf("kafka callback topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for callback producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.CallbackTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure callback topic %s exists: %w", cfg.CallbackTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.CallbackTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &CallbackEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.CallbackTopic,
	}, nil
}

func (p *CallbackEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal callback event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish callback event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish callback event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published callback event", "topic", p.topic, "key", key)
	return nil
}

func (p *CallbackEventProducer) Close() error {
	p.logger.Info("Closing callback event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
