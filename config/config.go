// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	SinkStdout = "stdout"
	SinkKafka  = "kafka"

	eventSourceS3    = "aws:s3"
	eventSourceMinIO = "minio:s3"
)

// Config is the complete process configuration.
type Config struct {
	QueueName           string `env:"QUEUE_NAME"`
	QueueOwnerAccountID string `env:"QUEUE_OWNER_ACCOUNT_ID"`
	Region              string `env:"AWS_REGION"`
	Prefix              string `env:"PREFIX"`

	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	SessionToken    string `env:"SESSION_TOKEN"`
	RoleARN         string `env:"ROLE_ARN"`
	RoleSessionName string `env:"ROLE_SESSION_NAME" envDefault:"s3ingest"`

	DeleteOnSuccess bool `env:"DELETE_ON_SUCCESS" envDefault:"false"`
	DeleteMessages  bool `env:"DELETE_MESSAGES" envDefault:"true"`
	FromSNS         bool `env:"FROM_SNS" envDefault:"true"`

	// EventSources lists the accepted notification event sources. Unset means
	// aws:s3, plus minio:s3 when OBJECT_STORE_ENDPOINT is set.
	EventSources []string `env:"EVENT_SOURCES" envSeparator:","`

	Workers                  int           `env:"WORKERS" envDefault:"1"`
	TemporaryDirectory       string        `env:"TEMPORARY_DIRECTORY"`
	VisibilityTimeoutSeconds int32         `env:"VISIBILITY_TIMEOUT" envDefault:"600"`
	ReceiveWaitTimeSeconds   int32         `env:"RECEIVE_WAIT_TIME" envDefault:"20"`
	ShutdownTimeout          time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`

	// ObjectStoreEndpoint selects the MinIO backend ("host:port") instead of S3.
	ObjectStoreEndpoint string `env:"OBJECT_STORE_ENDPOINT"`
	ObjectStoreUseSSL   bool   `env:"OBJECT_STORE_USE_SSL" envDefault:"true"`

	Codec             string            `env:"CODEC" envDefault:"line"`
	FolderCodecs      map[string]string `env:"FOLDER_CODECS" envSeparator:"," envKeyValSeparator:":"`
	MultilinePattern  string            `env:"MULTILINE_PATTERN"`
	MultilineNegate   bool              `env:"MULTILINE_NEGATE" envDefault:"false"`
	MultilineMaxLines int               `env:"MULTILINE_MAX_LINES" envDefault:"500"`

	Sink         string   `env:"SINK" envDefault:"stdout"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC"`

	// MetricsPort 0 disables the metrics server.
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment and validates the result. A .env file in the
// working directory, if present, fills in variables that are not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if cfg.TemporaryDirectory == "" {
		cfg.TemporaryDirectory = filepath.Join(os.TempDir(), "s3ingest")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// AcceptedEventSources returns EVENT_SOURCES, or the default for the
// configured object store when it is unset.
func (c *Config) AcceptedEventSources() []string {
	var sources []string

	for _, s := range c.EventSources {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}

	if len(sources) > 0 {
		return sources
	}

	if c.ObjectStoreEndpoint != "" {
		return []string{eventSourceS3, eventSourceMinIO}
	}

	return []string{eventSourceS3}
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	var errs []error

	if c.QueueName == "" {
		errs = append(errs, errors.New("QUEUE_NAME is required"))
	}

	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		errs = append(errs, errors.New("ACCESS_KEY_ID and SECRET_ACCESS_KEY must be set together"))
	}

	if c.Workers < 1 {
		errs = append(errs, errors.New("WORKERS must be at least 1"))
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}

	if c.TemporaryDirectory == "" {
		errs = append(errs, errors.New("TEMPORARY_DIRECTORY cannot be empty"))
	}

	switch c.Sink {
	case SinkStdout:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			errs = append(errs, errors.New("KAFKA_BROKERS and KAFKA_TOPIC are required for the kafka sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SINK %q", c.Sink))
	}

	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("METRICS_PORT %d is out of range", c.MetricsPort))
	}

	return errors.Join(errs...)
}
