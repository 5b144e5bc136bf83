package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"marketdash/internal/config"
	"marketdash/pkg/models"
)

const DefaultKafkaTopic = "market_quotes"

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// QuoteEvent is the value of one Kafka message.
type QuoteEvent struct {
	models.Quote
	UpdatedAt time.Time `json:"updatedAt"`
}

// Kafka writes one message per symbol, keyed by symbol so each symbol's
// history stays ordered within its partition.
type Kafka struct {
	writer KafkaWriter
	logger *zap.Logger
}

func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func NewKafka(writer KafkaWriter, logger *zap.Logger) *Kafka {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Kafka{writer: writer, logger: logger}
}

func (k *Kafka) QuotesRefreshed(ctx context.Context, quotes []models.Quote, at time.Time) error {
	msgs := make([]kafka.Message, 0, len(quotes))
	for _, q := range quotes {
		value, err := json.Marshal(QuoteEvent{Quote: q, UpdatedAt: at})
		if err != nil {
			return fmt.Errorf("encode %s: %w", q.Symbol, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(q.Symbol),
			Value: value,
			Time:  at,
		})
	}

	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}

	k.logger.Debug("Snapshot published to Kafka", zap.Int("messages", len(msgs)))
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
