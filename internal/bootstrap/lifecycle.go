package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
)

const (
	signalChannelBufferSize = 1
	defaultShutdownTimeout  = 30 * time.Second
)

// Runtime is everything Shutdown has to stop.
type Runtime struct {
	Logger   infralogger.Logger
	Server   *ServerComponents
	Services *ServiceComponents
	Events   *EventComponents
	Storage  *StorageComponents
}

// RunUntilInterrupt blocks until SIGINT/SIGTERM or a server error.
func RunUntilInterrupt(rt *Runtime) error {
	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case serverErr, ok := <-rt.Server.ErrorChan:
		if !ok {
			return nil
		}
		rt.Logger.Error("Server error", infralogger.Error(serverErr))
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if rt.Events != nil {
			rt.Events.StopBroker(rt.Logger)
		}
		shutdownDependencies(ctx, rt)
		return fmt.Errorf("server error: %w", serverErr)
	case sig := <-sigChan:
		return Shutdown(rt, sig)
	}
}

// Shutdown closes SSE subscriptions and stops intake, then drains running
// scans, then releases events and storage.
func Shutdown(rt *Runtime, sig os.Signal) error {
	rt.Logger.Info("Shutdown signal received", infralogger.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if rt.Events != nil {
		rt.Events.StopBroker(rt.Logger)
	}

	rt.Logger.Info("Stopping HTTP server")
	serverErr := rt.Server.Server.Shutdown(ctx)
	if serverErr != nil {
		rt.Logger.Error("Failed to stop server", infralogger.Error(serverErr))
	}

	shutdownDependencies(ctx, rt)

	if serverErr != nil {
		return fmt.Errorf("failed to stop server: %w", serverErr)
	}
	rt.Logger.Info("Server stopped successfully")
	return nil
}

func shutdownDependencies(ctx context.Context, rt *Runtime) {
	if rt.Services != nil {
		rt.Logger.Info("Draining in-flight scans", infralogger.Int("in_flight", rt.Services.Orchestrator.InFlight()))
		if err := rt.Services.Orchestrator.Shutdown(ctx); err != nil {
			rt.Logger.Warn("Scans did not finish before the shutdown deadline", infralogger.Error(err))
		}
		rt.Services.Close(rt.Logger)
	}
	if rt.Events != nil {
		rt.Events.Close(rt.Logger)
	}
	if rt.Storage != nil {
		rt.Storage.Close()
	}
	_ = rt.Logger.Sync()
}
