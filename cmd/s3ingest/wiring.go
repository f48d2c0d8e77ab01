package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/slackmgr/s3ingest/codec"
	"github.com/slackmgr/s3ingest/config"
	"github.com/slackmgr/s3ingest/minio"
	"github.com/slackmgr/s3ingest/processor"
	"github.com/slackmgr/s3ingest/s3"
	"github.com/slackmgr/s3ingest/sink"
	"github.com/slackmgr/s3ingest/worker"
	"github.com/slackmgr/types"
)

//nolint:ireturn // backend selected by configuration
func newObjectStore(awsCfg *aws.Config, cfg *config.Config, logger types.Logger) (worker.ObjectStore, error) {
	if cfg.ObjectStoreEndpoint != "" {
		opts := []minio.Option{
			minio.WithSSL(cfg.ObjectStoreUseSSL),
			minio.WithRegion(cfg.Region),
		}

		if cfg.AccessKeyID != "" {
			opts = append(opts, minio.WithStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken))
		}

		client, err := minio.New(cfg.ObjectStoreEndpoint, logger, opts...).Init()
		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		return client, nil
	}

	client, err := s3.New(awsCfg, logger,
		s3.WithBaseEndpoint(cfg.S3Endpoint),
		s3.WithUsePathStyle(cfg.S3UsePathStyle),
	).Init()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return client, nil
}

//nolint:ireturn // sink selected by configuration
func newSink(cfg *config.Config, logger types.Logger) (processor.Sink, func(), error) {
	switch cfg.Sink {
	case config.SinkKafka:
		k, err := sink.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return nil, nil, err //nolint:wrapcheck
		}

		return k, func() {
			if err := k.Close(); err != nil {
				logger.Errorf("Failed to close Kafka sink: %v", err)
			}
		}, nil
	default:
		return sink.NewWriter(os.Stdout), func() {}, nil
	}
}

// newCodecs builds the default decoder and the per-folder overrides. A
// folder whose codec cannot be built falls back to the default one.
func newCodecs(cfg *config.Config, logger types.Logger) (*processor.Codecs, error) {
	codecCfg := codec.Config{
		MultilinePattern:  cfg.MultilinePattern,
		MultilineNegate:   cfg.MultilineNegate,
		MultilineMaxLines: cfg.MultilineMaxLines,
	}

	fallback, err := codec.Lookup(cfg.Codec, codecCfg)
	if err != nil {
		return nil, fmt.Errorf("invalid default codec: %w", err)
	}

	byFolder := make(map[string]processor.DecoderFactory, len(cfg.FolderCodecs))

	for folder, name := range cfg.FolderCodecs {
		factory, err := codec.Lookup(name, codecCfg)
		if err != nil {
			logger.WithField("folder", folder).Errorf("Using the default codec: %v", err)
			continue
		}

		byFolder[folder] = factory
	}

	return processor.NewCodecs(fallback, byFolder), nil
}
