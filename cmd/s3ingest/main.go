// Command s3ingest consumes S3 object-created notifications from an SQS
// queue, downloads each object, decodes it line by line and emits the
// records to stdout or Kafka.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slackmgr/s3ingest/awsauth"
	"github.com/slackmgr/s3ingest/config"
	"github.com/slackmgr/s3ingest/logging"
	"github.com/slackmgr/s3ingest/metrics"
	"github.com/slackmgr/s3ingest/notification"
	"github.com/slackmgr/s3ingest/processor"
	"github.com/slackmgr/s3ingest/sqs"
	"github.com/slackmgr/s3ingest/worker"
	"github.com/slackmgr/types"
)

const metricsTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Errorf("s3ingest stopped with error: %v", err)
		stop()
		_ = logger.Sync()
		os.Exit(1) //nolint:gocritic // deferred calls already run above
	}
}

func run(ctx context.Context, cfg *config.Config, logger types.Logger) error {
	registry := metrics.NewRegistry()

	if cfg.MetricsPort > 0 {
		server := metrics.NewServer(metrics.ServerConfig{Port: cfg.MetricsPort, Timeout: metricsTimeout}, registry, logger)

		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Errorf("Metrics server failed: %v", err)
			}
		}()
	}

	awsCfg, err := awsauth.Load(ctx, awsauth.Credentials{
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		SessionToken:    cfg.SessionToken,
		RoleARN:         cfg.RoleARN,
		RoleSessionName: cfg.RoleSessionName,
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	queue, err := sqs.New(&awsCfg, cfg.QueueName, logger,
		sqs.WithSqsVisibilityTimeout(cfg.VisibilityTimeoutSeconds),
		sqs.WithSqsReceiveWaitTimeSeconds(cfg.ReceiveWaitTimeSeconds),
		sqs.WithQueueOwnerAccountID(cfg.QueueOwnerAccountID),
		sqs.WithMetrics(registry),
	).Init(ctx)
	if err != nil {
		return err //nolint:wrapcheck
	}

	store, err := newObjectStore(&awsCfg, cfg, logger)
	if err != nil {
		return err
	}

	recordSink, closeSink, err := newSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	codecs, err := newCodecs(cfg, logger)
	if err != nil {
		return err
	}

	proc := processor.New(recordSink, codecs, logger,
		processor.WithPrefix(cfg.Prefix),
		processor.WithMetrics(registry),
	)

	parser := notification.NewParser(logger,
		notification.WithSNSEnvelope(cfg.FromSNS),
		notification.WithEventSources(cfg.AcceptedEventSources()...),
	)

	newWorker := func(id int) *worker.Worker {
		return worker.New(queue, store, parser, proc, logger,
			worker.WithID(id),
			worker.WithTempDir(cfg.TemporaryDirectory),
			worker.WithDeleteOnSuccess(cfg.DeleteOnSuccess),
			worker.WithDeleteMessages(cfg.DeleteMessages),
			worker.WithMetrics(registry),
		)
	}

	logger.
		WithField("workers", cfg.Workers).
		WithField("from_sns", cfg.FromSNS).
		WithField("event_sources", parser.EventSources()).
		WithField("delete_on_success", cfg.DeleteOnSuccess).
		WithField("sink", cfg.Sink).
		Info("Starting s3ingest")

	runners := make([]worker.Runner, cfg.Workers)
	for i := range runners {
		runners[i] = newWorker(i)
	}

	return runWorkers(ctx, runners, cfg.ShutdownTimeout, logger)
}

// runWorkers runs runners in a pool until one of them fails or ctx is
// cancelled. A single worker goes through the pool as well, so
// SHUTDOWN_TIMEOUT bounds every shutdown.
func runWorkers(ctx context.Context, runners []worker.Runner, shutdownTimeout time.Duration, logger types.Logger) error {
	pool := worker.NewPool(runners, logger)
	pool.Start(ctx)

	waitErr := make(chan error, 1)

	go func() {
		waitErr <- pool.Wait()
	}()

	select {
	case err := <-waitErr:
		return err
	case <-ctx.Done():
		logger.Info("Shutdown requested")

		if err := pool.Stop(shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
			return err //nolint:wrapcheck
		}

		return nil
	}
}
