package bootstrap

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/infrastructure/sse"
	"github.com/jonesrussell/seoscan/internal/config"
	"github.com/jonesrussell/seoscan/internal/events"
)

// EventComponents holds the scan event sinks.
type EventComponents struct {
	Publisher events.Publisher
	// Broker is nil when SSE is disabled.
	Broker sse.Broker
	NATS   *nats.Conn
}

// SetupEvents starts the SSE broker and connects NATS when enabled. A NATS
// connection failure disables that sink rather than failing start-up.
func SetupEvents(ctx context.Context, cfg *config.Config, redisClient *redis.Client, log infralogger.Logger) (*EventComponents, error) {
	ec := &EventComponents{}
	var sinks events.Multi

	if cfg.SSE.Enabled {
		ec.Broker = sse.NewBroker(log, sse.WithConfig(cfg.SSE))
		if err := ec.Broker.Start(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, events.NewBrokerPublisher(ec.Broker))
	}

	if cfg.NATS.Enabled {
		conn, err := nats.Connect(cfg.NATS.URL,
			nats.Name(ServiceName),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			log.Warn("NATS not available, scan events will not be published to NATS",
				infralogger.String("url", cfg.NATS.URL),
				infralogger.Error(err),
			)
		} else {
			ec.NATS = conn
			sinks = append(sinks, events.NewNATSPublisher(conn, cfg.NATS.SubjectPrefix))
			log.Info("Connected to NATS", infralogger.String("url", cfg.NATS.URL))
		}
	}

	if redisClient != nil {
		stream := events.NewStreamPublisher(redisClient, cfg.Redis.KeyPrefix)
		sinks = append(sinks, stream)
		log.Info("Publishing scan events to Redis stream", infralogger.String("stream", stream.Stream()))
	}

	if len(sinks) == 0 {
		ec.Publisher = events.Nop{}
		return ec, nil
	}
	ec.Publisher = events.NewLogging(sinks, log)
	return ec, nil
}

// StopBroker closes every SSE subscription so streaming handlers return.
func (ec *EventComponents) StopBroker(log infralogger.Logger) {
	if ec.Broker == nil {
		return
	}
	log.Info("Stopping SSE broker")
	if err := ec.Broker.Stop(); err != nil {
		log.Error("Failed to stop SSE broker", infralogger.Error(err))
	}
}

// Close drains the NATS connection.
func (ec *EventComponents) Close(log infralogger.Logger) {
	if ec.NATS != nil {
		log.Info("Draining NATS connection")
		if err := ec.NATS.Drain(); err != nil {
			log.Error("Failed to drain NATS", infralogger.Error(err))
		}
	}
}
