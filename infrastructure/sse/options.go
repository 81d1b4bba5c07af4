package sse

import "time"

const (
	DefaultEventBufferSize   = 512
	DefaultClientBufferSize  = 64
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
	DefaultMaxClients        = 500
)

// Config is the sse section of the service config.
type Config struct {
	Enabled           bool          `env:"SSE_ENABLED"            yaml:"enabled"`
	EventBufferSize   int           `yaml:"event_buffer_size"`
	ClientBufferSize  int           `yaml:"client_buffer_size"`
	HeartbeatInterval time.Duration `env:"SSE_HEARTBEAT_INTERVAL" yaml:"heartbeat_interval"`
	MaxClients        int           `env:"SSE_MAX_CLIENTS"        yaml:"max_clients"`
}

// BrokerOption configures NewBroker.
type BrokerOption func(*broker)

// WithConfig applies the non-zero fields of cfg.
func WithConfig(cfg Config) BrokerOption {
	return func(b *broker) {
		if cfg.EventBufferSize > 0 {
			b.eventBufferSize = cfg.EventBufferSize
		}
		if cfg.ClientBufferSize > 0 {
			b.clientBufferSize = cfg.ClientBufferSize
		}
		if cfg.HeartbeatInterval > 0 {
			b.heartbeatInterval = cfg.HeartbeatInterval
		}
		if cfg.MaxClients > 0 {
			b.maxClients = cfg.MaxClients
		}
	}
}

// WithMaxClients caps concurrent subscriptions; zero means unlimited.
func WithMaxClients(n int) BrokerOption {
	return func(b *broker) { b.maxClients = n }
}

// WithClientBufferSize sets the default per-client buffer.
func WithClientBufferSize(size int) BrokerOption {
	return func(b *broker) {
		if size > 0 {
			b.clientBufferSize = size
		}
	}
}

// WithHeartbeatInterval sets the keep-alive comment interval used by Handler.
func WithHeartbeatInterval(d time.Duration) BrokerOption {
	return func(b *broker) {
		if d > 0 {
			b.heartbeatInterval = d
		}
	}
}

// ClientOption configures a subscription.
type ClientOption func(*ClientOptions)

// WithFilter sets the subscription's filter.
func WithFilter(filter EventFilter) ClientOption {
	return func(o *ClientOptions) { o.Filter = filter }
}

// WithTypePrefix keeps events whose Type starts with prefix, e.g. "scan:".
func WithTypePrefix(prefix string) ClientOption {
	return WithFilter(func(e Event) bool {
		return len(e.Type) >= len(prefix) && e.Type[:len(prefix)] == prefix
	})
}
