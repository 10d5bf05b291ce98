package app

import (
	"context"

	"github.com/dispatchd/dispatchd/internal/config"
	"github.com/dispatchd/dispatchd/internal/daemon"
	"github.com/dispatchd/dispatchd/internal/dispatch"
	"github.com/dispatchd/dispatchd/internal/dmetrics"
	"github.com/dispatchd/dispatchd/internal/journal"
	"github.com/dispatchd/dispatchd/internal/logging"
	"github.com/dispatchd/dispatchd/internal/producer"
	"github.com/dispatchd/dispatchd/internal/redis"
	"github.com/dispatchd/dispatchd/internal/worker"
	"go.uber.org/zap"
)

// ServiceBuilder constructs the daemon service and its workers.
type ServiceBuilder struct {
	ctx        context.Context
	cfg        *config.Config
	logger     *logging.Logger
	supervisor *worker.Supervisor

	// Cleanup functions run in registration order during shutdown
	cleanupFuncs []func(context.Context, *logging.LoggerWithCtx)
}

// NewServiceBuilder creates a new ServiceBuilder.
func NewServiceBuilder(ctx context.Context, cfg *config.Config, logger *logging.Logger) *ServiceBuilder {
	return &ServiceBuilder{
		ctx:    ctx,
		cfg:    cfg,
		logger: logger,
		supervisor: worker.NewSupervisor(logger,
			worker.WithShutdownTimeout(cfg.ShutdownTimeout())),
		cleanupFuncs: []func(context.Context, *logging.LoggerWithCtx){},
	}
}

// BuildWorkers creates the daemon worker and, unless disabled, the demo
// producer, then returns the supervisor that runs them. This sets up the
// full dispatch path: sink, journal writer, metrics, dispatcher with
// retries, daemon.
func (b *ServiceBuilder) BuildWorkers() (*worker.Supervisor, error) {
	b.logger.Debug("building daemon workers")

	// Build the record sink
	b.logger.Debug("building record sink", zap.String("sink", b.cfg.Sink.SinkName()))
	recordSink, err := b.cfg.Sink.Build(b.ctx)
	if err != nil {
		b.logger.Error("sink initialization failed", zap.Error(err))
		return nil, err
	}
	b.cleanupFuncs = append(b.cleanupFuncs, func(ctx context.Context, logger *logging.LoggerWithCtx) {
		if err := recordSink.Close(); err != nil {
			logger.Error("error closing sink", zap.Error(err))
		}
	})

	// Initialize the journal writer
	var journalWriter *journal.Writer
	if !b.cfg.DisableJournal {
		b.logger.Debug("initializing Redis client for journal")
		redisClient, err := redis.New(b.ctx, b.cfg.Redis.ToConfig())
		if err != nil {
			b.logger.Error("Redis client initialization failed", zap.Error(err))
			return nil, err
		}

		b.logger.Debug("creating journal writer",
			zap.String("stream", b.cfg.JournalStream),
			zap.Int("batch_size", b.cfg.JournalBatchSize))
		journalWriter, err = journal.NewWriter(b.ctx, b.logger,
			journal.NewRedisStore(redisClient, b.cfg.JournalStream),
			journal.WriterConfig{
				ItemCountThreshold: b.cfg.JournalBatchSize,
				DelayThreshold:     b.cfg.JournalBatchDelay(),
			})
		if err != nil {
			b.logger.Error("journal writer creation failed", zap.Error(err))
			return nil, err
		}
		// Shut the writer down before the client so the final flush lands
		b.cleanupFuncs = append(b.cleanupFuncs, func(ctx context.Context, logger *logging.LoggerWithCtx) {
			journalWriter.Shutdown()
			logger.Info("journal writer shut down")
			if err := redisClient.Close(); err != nil {
				logger.Error("error closing redis client", zap.Error(err))
			}
		})
	}

	// Initialize metrics
	b.logger.Debug("creating dispatch metrics")
	metrics, err := dmetrics.New()
	if err != nil {
		b.logger.Error("metrics initialization failed", zap.Error(err))
		return nil, err
	}

	// Create the dispatcher and wrap it with retries
	dispatcherOpts := []dispatch.DispatcherOption{
		dispatch.WithLogger(b.logger),
		dispatch.WithMetrics(metrics),
	}
	if journalWriter != nil {
		dispatcherOpts = append(dispatcherOpts, dispatch.WithJournal(journalWriter))
	}
	dispatcher := dispatch.NewDispatcher(recordSink, dispatcherOpts...)

	retryBackoff, maxAttempts := b.cfg.GetRetryBackoff()
	var handler daemon.Handler[*dispatch.Record] = dispatcher
	if maxAttempts > 1 {
		handler = dispatch.NewRetryHandler(handler, maxAttempts, retryBackoff, b.logger)
	}

	// Create the daemon
	b.logger.Debug("creating daemon", zap.String("name", b.cfg.DaemonName))
	d := daemon.New(handler,
		daemon.WithName(b.cfg.DaemonName),
		daemon.WithLogger(b.logger))

	if err := metrics.RegisterQueueDepth(func() int64 {
		return int64(d.Len())
	}); err != nil {
		b.logger.Error("queue depth gauge registration failed", zap.Error(err))
		return nil, err
	}

	// Worker 1: the daemon itself
	b.supervisor.Register(dispatch.NewDaemonWorker(d, b.logger))

	// Worker 2: demo producer (optional)
	if !b.cfg.DisableProducer {
		b.supervisor.Register(producer.New(d, b.logger,
			producer.WithInterval(b.cfg.ProducerInterval()),
			producer.WithBurstSize(b.cfg.ProducerBurstSize),
			producer.WithMetrics(metrics)))
	}

	b.logger.Info("daemon workers built successfully")
	return b.supervisor, nil
}

// Cleanup runs all registered cleanup functions.
func (b *ServiceBuilder) Cleanup(ctx context.Context) {
	logger := b.logger.Ctx(ctx)
	for _, cleanupFunc := range b.cleanupFuncs {
		cleanupFunc(ctx, &logger)
	}
}
