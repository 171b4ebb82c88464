// Package nop provides a publisher that drops every event, used for tests
// and for servers running with event streaming disabled.
package nop

import (
	"context"

	"github.com/turnpike-ai/turnpike/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishTurn validates input and otherwise does nothing.
func (p *Publisher) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
