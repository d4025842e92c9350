// Package events publishes payment lifecycle events so downstream
// consumers (fulfillment, analytics) learn about confirmed and failed
// charges without polling the store.
package events

import (
	"context"

	"paineluriel/backend/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, event domain.PaymentEvent) error
	Close() error
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.PaymentEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
