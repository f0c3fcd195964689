package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lazymail/phish-analyzer/internal/adapters/httpapi"
	"github.com/lazymail/phish-analyzer/internal/core"
	"github.com/lazymail/phish-analyzer/internal/di"
	"github.com/lazymail/phish-analyzer/internal/ports"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	messageFilter ports.MessageFilter,
	apiServer *httpapi.Server,
	messageStore core.MessageStore,
) error {
	defer logger.Sync()

	// Start the SMTP filter
	if err := messageFilter.Start(); err != nil {
		logger.Fatal("Failed to start SMTP filter", zap.Error(err))
		return err
	}

	// Start the HTTP API
	if err := apiServer.Start(); err != nil {
		logger.Fatal("Failed to start HTTP API", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	if err := apiServer.Stop(); err != nil {
		logger.Error("Failed to stop HTTP API", zap.Error(err))
	}

	if err := messageFilter.Stop(); err != nil {
		logger.Error("Failed to stop SMTP filter", zap.Error(err))
	}

	// Stop the store if needed
	if stopper, ok := messageStore.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
