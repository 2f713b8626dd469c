// Package events publishes committed transaction records to downstream
// consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/observability"
)

// DefaultTopic receives one message per committed transaction record
const DefaultTopic = "ledger.transactions"

// batchTimeout bounds how long the writer waits to fill a batch. The
// kafka-go default of one second would hold every batch for a second.
const batchTimeout = 10 * time.Millisecond

// Publisher delivers committed transaction records
type Publisher interface {
	Publish(ctx context.Context, records ...model.TransactionRecord) error
	Close() error
}

// Nop discards every record
type Nop struct{}

func (Nop) Publish(context.Context, ...model.TransactionRecord) error { return nil }
func (Nop) Close() error { return nil }

// TransactionEvent is the wire form of a published record
type TransactionEvent struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	AccountID     string    `json:"account_id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// KafkaPublisher writes records to a Kafka topic keyed by account id, so
// the records of one account stay ordered within a partition
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
// Writes are asynchronous: Publish returns once the messages are queued and
// delivery failures are logged and counted by the writer's completion hook.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	p := &KafkaPublisher{logger: logger}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: batchTimeout,
		Async:        true,
		Completion:   p.completed,
		Logger:       zap.NewStdLog(logger.With(zap.String("kafka_component", "producer"))),
	}

	logger.Info("kafka publisher initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return p
}

// completed runs once per delivered or failed batch
func (p *KafkaPublisher) completed(msgs []kafka.Message, err error) {
	if err == nil {
		p.logger.Debug("published transaction events", zap.Int("count", len(msgs)))
		return
	}
	observability.EventsPublishFailed.Add(float64(len(msgs)))
	p.logger.Error("failed to deliver transaction events", zap.Int("count", len(msgs)), zap.Error(err))
}

// Publish queues one message per record
func (p *KafkaPublisher) Publish(ctx context.Context, records ...model.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	msgs, err := buildMessages(records)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish transaction events: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka publisher: %w", err)
	}
	return nil
}

func buildMessages(records []model.TransactionRecord) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		value, err := json.Marshal(TransactionEvent{
			ID:            rec.ID.String(),
			CorrelationID: rec.CorrelationID.String(),
			AccountID:     rec.AccountID.String(),
			Type:          string(rec.Type),
			Amount:        rec.Amount.StringFixed(2),
			Reason:        rec.Reason,
			CreatedAt:     rec.CreatedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal transaction event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(rec.AccountID.String()),
			Value: value,
			Time:  rec.CreatedAt,
		})
	}
	return msgs, nil
}
