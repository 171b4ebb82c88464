// Package kafka provides a Kafka-backed eventstream publisher.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turnpike-ai/turnpike/pkg/eventstream"
)

// Config holds the connection settings for the Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds a single publish. Zero selects 10 seconds.
	WriteTimeout time.Duration
}

// Publisher writes turn events to a Kafka topic, keyed by session id so one
// session's events land in order on the same partition.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}

	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: timeout,
			RequiredAcks: kafka.RequireOne,
		},
	}, nil
}

// PublishTurn encodes the event as JSON and writes it keyed by session id.
func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding turn event %s: %w", event.EventID, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Turn.SessionID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publishing turn event %s: %w", event.EventID, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
