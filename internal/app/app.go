package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dispatchd/dispatchd/internal/config"
	"github.com/dispatchd/dispatchd/internal/logging"
	"github.com/dispatchd/dispatchd/internal/otel"
	"go.uber.org/zap"
)

type App struct {
	config *config.Config
}

func New(cfg *config.Config) *App {
	return &App{
		config: cfg,
	}
}

func (a *App) Run(ctx context.Context) error {
	return run(ctx, a.config)
}

func run(mainContext context.Context, cfg *config.Config) error {
	logger, err := logging.NewLogger(
		logging.WithLogLevel(cfg.LogLevel),
	)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting dispatchd", cfg.LogConfigurationSummary()...)

	// Declare sink infrastructure before anything publishes to it
	if err := cfg.Sink.DeclareInfrastructure(mainContext); err != nil {
		logger.Error("sink infrastructure declaration failed", zap.Error(err))
		return err
	}

	// Set up cancellation context
	ctx, cancel := context.WithCancel(mainContext)
	defer cancel()

	// Set up OpenTelemetry.
	if cfg.OpenTelemetry.ToOTELConfig() != nil {
		otelShutdown, err := otel.SetupOTelSDK(ctx, cfg.OpenTelemetry.ToOTELConfig())
		if err != nil {
			return err
		}
		// Flush telemetry on the way out so nothing leaks.
		defer func() {
			if shutdownErr := otelShutdown(context.Background()); shutdownErr != nil {
				logger.Error("error shutting down otel sdk", zap.Error(shutdownErr))
			}
		}()
	}

	// Build workers using ServiceBuilder
	logger.Debug("building services")
	builder := NewServiceBuilder(ctx, cfg, logger)

	supervisor, err := builder.BuildWorkers()
	if err != nil {
		logger.Error("failed to build workers", zap.Error(err))
		return err
	}

	// Handle sigterm and await termChan signal
	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

	// Run workers in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- supervisor.Run(ctx)
	}()

	// Wait for either termination signal or worker failure
	var exitErr error
	select {
	case <-termChan:
		logger.Info("shutdown signal received")
		cancel() // Cancel context to trigger graceful shutdown
		err := <-errChan
		// context.Canceled is expected during graceful shutdown
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("error during graceful shutdown", zap.Error(err))
			exitErr = err
		}
	case err := <-errChan:
		// Workers exited unexpectedly
		if err != nil {
			logger.Error("workers exited unexpectedly", zap.Error(err))
			exitErr = err
		}
	}

	// Run cleanup functions
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	builder.Cleanup(shutdownCtx)

	logger.Info("dispatchd shutdown complete")

	return exitErr
}
