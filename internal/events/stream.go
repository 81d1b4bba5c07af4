package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	infraevents "github.com/jonesrussell/seoscan/infrastructure/events"
)

// DefaultStreamMaxLen caps the Redis stream, approximately.
const DefaultStreamMaxLen = 10000

// StreamPublisher appends events to a capped Redis stream.
type StreamPublisher struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewStreamPublisher writes to prefix+infraevents.StreamName.
func NewStreamPublisher(client redis.UniversalClient, prefix string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: prefix + infraevents.StreamName, maxLen: DefaultStreamMaxLen}
}

// Stream is the key events are appended to.
func (p *StreamPublisher) Stream() string {
	return p.stream
}

func (p *StreamPublisher) Publish(ctx context.Context, event infraevents.ScanEvent) error {
	stampEvent(&event)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal scan event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_type": string(event.EventType),
			"event":      string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to stream %s: %w", p.stream, err)
	}
	return nil
}
