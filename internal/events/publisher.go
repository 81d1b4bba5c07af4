// Package events publishes scan lifecycle events to NATS, a Redis stream
// and the in-process SSE broker.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	infraevents "github.com/jonesrussell/seoscan/infrastructure/events"
	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/infrastructure/sse"
)

// Publisher sends a scan event somewhere.
type Publisher interface {
	Publish(ctx context.Context, event infraevents.ScanEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, infraevents.ScanEvent) error { return nil }

// Multi publishes to every sink and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event infraevents.ScanEvent) error {
	stampEvent(&event)
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BrokerPublisher forwards events to SSE subscribers.
type BrokerPublisher struct {
	broker sse.Publisher
}

// NewBrokerPublisher wraps broker.
func NewBrokerPublisher(broker sse.Publisher) *BrokerPublisher {
	return &BrokerPublisher{broker: broker}
}

func (b *BrokerPublisher) Publish(ctx context.Context, event infraevents.ScanEvent) error {
	stampEvent(&event)
	return b.broker.Publish(ctx, sse.Event{
		Type: string(event.EventType),
		ID:   event.EventID.String(),
		Data: event,
	})
}

// Logging wraps a Publisher and logs failures instead of returning them.
type Logging struct {
	next Publisher
	log  infralogger.Logger
}

// NewLogging wraps next.
func NewLogging(next Publisher, log infralogger.Logger) *Logging {
	return &Logging{next: next, log: log.With(infralogger.Component("events"))}
}

func (l *Logging) Publish(ctx context.Context, event infraevents.ScanEvent) error {
	if err := l.next.Publish(ctx, event); err != nil {
		l.log.Warn("Failed to publish scan event",
			infralogger.String("event_type", string(event.EventType)),
			infralogger.ScanID(event.ScanID),
			infralogger.Error(err),
		)
	}
	return nil
}

func stampEvent(event *infraevents.ScanEvent) {
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
}
