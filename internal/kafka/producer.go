package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gw-transfer-batch/internal/models"

	"github.com/IBM/sarama"
)

type Producer interface {
	SendRunCompleted(ctx context.Context, event models.RunCompletedEvent) error
	Close() error
}

type KafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
}

func NewSaramaConfig(timeout time.Duration) *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Timeout = timeout
	return config
}

func NewKafkaProducer(brokers []string, topic string, timeout time.Duration, log *slog.Logger) (Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.Info("kafka producer created", slog.String("topic", topic), slog.Any("brokers", brokers))

	return NewProducerWith(producer, topic, log), nil
}

// NewProducerWith wraps an existing sarama producer.
func NewProducerWith(producer sarama.SyncProducer, topic string, log *slog.Logger) *KafkaProducer {
	return &KafkaProducer{
		producer: producer,
		topic:    topic,
		log:      log,
	}
}

func (p *KafkaProducer) SendRunCompleted(ctx context.Context, event models.RunCompletedEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.RunID),
		Value: sarama.ByteEncoder(eventData),
	}

	type result struct {
		partition int32
		offset    int64
		err       error
	}

	resultCh := make(chan result, 1)

	go func() {
		partition, offset, err := p.producer.SendMessage(msg)
		resultCh <- result{partition, offset, err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			p.log.Error("kafka send failed",
				slog.String("run_id", event.RunID),
				slog.String("error", res.err.Error()))
			return res.err
		}
		p.log.Debug("kafka send success",
			slog.String("run_id", event.RunID),
			slog.Int("partition", int(res.partition)),
			slog.Int64("offset", res.offset))
		return nil

	case <-ctx.Done():
		p.log.Warn("kafka send cancelled",
			slog.String("run_id", event.RunID))
		return ctx.Err()
	}
}

func (p *KafkaProducer) Close() error {
	if p.producer == nil {
		return nil
	}
	p.log.Info("closing kafka producer")
	return p.producer.Close()
}

type NoOpProducer struct {
	log *slog.Logger
}

func NewNoOpProducer(log *slog.Logger) Producer {
	return &NoOpProducer{log: log}
}

func (p *NoOpProducer) SendRunCompleted(ctx context.Context, event models.RunCompletedEvent) error {
	p.log.Debug("kafka disabled, event not sent",
		slog.String("run_id", event.RunID))
	return nil
}

func (p *NoOpProducer) Close() error {
	return nil
}
