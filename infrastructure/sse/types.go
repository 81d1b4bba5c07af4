// Package sse fans events out to Server-Sent Events clients and writes
// one-off event streams.
package sse

import (
	"context"
	"errors"
	"time"
)

// Event is one SSE frame: "event: <Type>", optional id/retry, "data: <json>".
type Event struct {
	Type  string `json:"type"`
	Data  any    `json:"data"`
	ID    string `json:"id,omitempty"`
	Retry int    `json:"retry,omitempty"`
}

// ErrTooManyClients is returned by Subscribe when the client cap is reached.
var ErrTooManyClients = errors.New("sse: too many clients")

// ErrBufferFull is returned by Publish when the broker cannot keep up.
var ErrBufferFull = errors.New("sse: publish buffer full")

// Publisher sends events to every subscribed client.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Broker owns client subscriptions and the broadcast loop.
type Broker interface {
	Publisher
	// Subscribe registers a client until ctx ends or the returned cancel func
	// is called. The channel is closed when the subscription ends.
	Subscribe(ctx context.Context, opts ...ClientOption) (<-chan Event, func(), error)
	Start(ctx context.Context) error
	Stop() error
	ClientCount() int
	HeartbeatInterval() time.Duration
}

// EventFilter returns true for events the client wants.
type EventFilter func(event Event) bool

// ClientOptions configure one subscription.
type ClientOptions struct {
	Filter     EventFilter
	BufferSize int
}

const (
	eventTypeConnected = "connected"
)
