// Package bootstrap handles application initialization and lifecycle management
// for the seoscan service.
//
// The bootstrap process follows these phases:
//   - Phase 1: Config & Logger - Load configuration and create logger
//   - Phase 2: Storage - Connect the snapshot store backend and Redis lock
//   - Phase 3: Events - Start the SSE broker and event sinks
//   - Phase 4: Services - Create the scan orchestrator, SEO aggregator and janitor
//   - Phase 5: Server - Create and start HTTP server
//   - Phase 6: Run - Wait for interrupt signal or error
package bootstrap

import (
	"context"
	"fmt"
)

// Start runs the HTTP service until it is interrupted or fails.
func Start(opts Options) error {
	// Phase 1: Initialize config and logger
	deps, err := NewCommandDeps(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	ctx := context.Background()

	// Phase 2: Setup storage
	storage, err := SetupStorage(ctx, deps.Config, deps.Logger)
	if err != nil {
		return fmt.Errorf("failed to setup storage: %w", err)
	}

	// Phase 3: Setup events
	ev, err := SetupEvents(ctx, deps.Config, storage.Redis, deps.Logger)
	if err != nil {
		storage.Close()
		return fmt.Errorf("failed to setup events: %w", err)
	}

	// Phase 4: Setup services
	services, err := SetupServices(ctx, deps, storage, ev)
	if err != nil {
		ev.StopBroker(deps.Logger)
		ev.Close(deps.Logger)
		storage.Close()
		return fmt.Errorf("failed to setup services: %w", err)
	}

	// Phase 5: Start HTTP server
	server := SetupHTTPServer(deps, storage, ev, services)

	// Phase 6: Run until interrupt or error
	return RunUntilInterrupt(&Runtime{
		Logger:   deps.Logger,
		Server:   server,
		Services: services,
		Events:   ev,
		Storage:  storage,
	})
}
