package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/b1zarr-e/ODTL/internal/catalog"
	"github.com/b1zarr-e/ODTL/internal/config"
	"github.com/b1zarr-e/ODTL/internal/event"
	"github.com/b1zarr-e/ODTL/internal/logging"
)

// createLogger creates a logger if logging is enabled in config.
// Returns a NopLogger if logging is disabled or if creation fails.
func createLogger(cfg *config.Config) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.NopLogger()
	}

	rotationConfig := logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	}

	logger, err := logging.NewLoggerWithRotation(cfg.Logging.Dir, cfg.Logging.Level, rotationConfig)
	if err != nil {
		// Log creation failure shouldn't prevent the game from starting
		fmt.Fprintf(os.Stderr, "Warning: failed to create logger: %v\n", err)
		return logging.NopLogger()
	}
	return logger
}

// loadChallenges returns the catalog at path, or the built-in one when
// path is empty.
func loadChallenges(path string) ([]catalog.Challenge, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newBus creates an event bus whose handler panics go to the log.
func newBus(logger *logging.Logger) *event.Bus {
	bus := event.NewBus()
	bus.OnPanic(func(eventType string, recovered any, stack []byte) {
		logger.Error("event handler panicked",
			"event", eventType,
			"panic", fmt.Sprint(recovered),
			"stack", string(stack),
		)
	})
	return bus
}
