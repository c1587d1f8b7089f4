// Package kafkafeed streams round and bet events to Kafka for downstream
// consumers such as analytics or notification services.
package kafkafeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fastprodman/pointsarena/internal/events"
	"github.com/fastprodman/pointsarena/internal/infra/logging"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	w messageWriter
}

// NewWriter builds an async writer for a comma separated broker list.
// Messages are hashed by key so every event of a round lands on one
// partition. Publish returns once a message is queued; delivery failures are
// logged by logCompletion.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		Async:                  true,
		Completion:             logCompletion,
		AllowAutoTopicCreation: true,
	}
}

func logCompletion(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}

	slog.Warn("kafka delivery failed", "messages", len(msgs), logging.Err(err))
}

func NewPublisher(w messageWriter) *Publisher {
	return &Publisher{w: w}
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.RoundID.String()),
		Value: b,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
			{Key: "game", Value: []byte(e.GameType)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}
