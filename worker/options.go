package worker

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/slackmgr/s3ingest/metrics"
	"github.com/slackmgr/s3ingest/sqs"
)

// Option is a functional option for configuring a [Worker].
type Option func(*Options)

// Options holds the configuration for a [Worker].
type Options struct {
	id              int
	tempDir         string
	deleteOnSuccess bool
	deleteMessages  bool
	backoffInitial  time.Duration
	backoffCeiling  time.Duration
	metrics         *metrics.Registry
}

func newOptions() *Options {
	return &Options{
		tempDir:        filepath.Join(os.TempDir(), "s3ingest"),
		deleteMessages: true,
		backoffInitial: sqs.DefaultBackoffInitial,
		backoffCeiling: sqs.DefaultBackoffCeiling,
	}
}

func (o *Options) validate() error {
	if o.tempDir == "" {
		return errors.New("temporary directory cannot be empty")
	}

	if o.backoffInitial <= 0 || o.backoffCeiling < o.backoffInitial {
		return errors.New("backoff ceiling must be at least the initial backoff, which must be positive")
	}

	return nil
}

// WithID sets the worker number used in logs and in the staging path.
func WithID(id int) Option {
	return func(o *Options) {
		o.id = id
	}
}

// WithTempDir sets the root of the staging directory. Default: the system
// temporary directory + "/s3ingest".
func WithTempDir(dir string) Option {
	return func(o *Options) {
		o.tempDir = dir
	}
}

// WithDeleteOnSuccess deletes every object of a message from the object
// store once all of them were processed. Default: false.
func WithDeleteOnSuccess(enabled bool) Option {
	return func(o *Options) {
		o.deleteOnSuccess = enabled
	}
}

// WithDeleteMessages controls whether fully processed messages are deleted
// from the queue. When false they are left to expire. Default: true.
func WithDeleteMessages(enabled bool) Option {
	return func(o *Options) {
		o.deleteMessages = enabled
	}
}

// WithBackoff overrides the poll loop backoff bounds.
func WithBackoff(initial, ceiling time.Duration) Option {
	return func(o *Options) {
		o.backoffInitial = initial
		o.backoffCeiling = ceiling
	}
}

// WithMetrics records message and object outcomes in r.
func WithMetrics(r *metrics.Registry) Option {
	return func(o *Options) {
		o.metrics = r
	}
}
