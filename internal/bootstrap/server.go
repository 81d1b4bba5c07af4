package bootstrap

import (
	"context"

	"github.com/gin-gonic/gin"

	infragin "github.com/jonesrussell/seoscan/infrastructure/gin"
	"github.com/jonesrussell/seoscan/internal/api"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// ServerComponents holds the HTTP server and its error channel.
type ServerComponents struct {
	Server    *infragin.Server
	ErrorChan <-chan error
}

// NewHTTPServer builds the gin server with health checks for whichever
// backing stores are connected.
func NewHTTPServer(deps *CommandDeps, storage *StorageComponents, ev *EventComponents, services *ServiceComponents) *infragin.Server {
	cfg := deps.Config

	builder := infragin.NewServerBuilder(ServiceName, cfg.Server.Port).
		WithLogger(deps.Logger).
		WithDebug(cfg.Debug).
		WithVersion(Version).
		WithHost(cfg.Server.Host).
		WithCORSOrigins(cfg.Server.CORSOrigins).
		WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout)

	if storage.Redis != nil {
		builder = builder.WithRedisHealthCheck(func(ctx context.Context) error {
			return storage.Redis.Ping(ctx).Err()
		})
	}
	if storage.DB != nil {
		builder = builder.WithDatabaseHealthCheck(storage.DB.PingContext)
	}

	routeDeps := api.Deps{
		Scans:    services.Orchestrator,
		SEO:      services.Aggregator,
		Broker:   ev.Broker,
		Gatherer: services.Registry,
		Logger:   deps.Logger,
	}

	return builder.WithRoutes(func(router *gin.Engine) {
		api.RegisterRoutes(router, routeDeps)
	}).Build()
}

// SetupHTTPServer builds and starts the server.
func SetupHTTPServer(deps *CommandDeps, storage *StorageComponents, ev *EventComponents, services *ServiceComponents) *ServerComponents {
	server := NewHTTPServer(deps, storage, ev, services)
	return &ServerComponents{
		Server:    server,
		ErrorChan: server.StartAsync(),
	}
}
