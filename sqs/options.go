package sqs

import (
	"errors"
	"time"

	"github.com/slackmgr/s3ingest/metrics"
)

// Option is a functional option for configuring a [Client].
// Options are passed to [New] and applied before [Client.Init] is called.
type Option func(*Options)

// Options holds the resolved configuration for a [Client].
// All fields are set to sensible defaults by [New]; use With* functions to
// override individual values.
type Options struct {
	sqsVisibilityTimeoutSeconds int32
	sqsReceiveWaitTimeSeconds   int32
	sqsAPIMaxRetryAttempts      int
	sqsAPIMaxRetryBackoffDelay  time.Duration
	queueOwnerAccountID         string
	metrics                     *metrics.Registry
	sqsClient                   sqsClient // Optional: injected SQS client for testing
}

func newOptions() *Options {
	return &Options{
		sqsVisibilityTimeoutSeconds: 600,
		sqsReceiveWaitTimeSeconds:   20,
		sqsAPIMaxRetryAttempts:      5,
		sqsAPIMaxRetryBackoffDelay:  10 * time.Second,
	}
}

func (o *Options) validate() error {
	if o.sqsVisibilityTimeoutSeconds < 10 || o.sqsVisibilityTimeoutSeconds > 43200 {
		return errors.New("SQS message visibility timeout must be between 10 seconds and 12 hours")
	}

	if o.sqsReceiveWaitTimeSeconds < 1 || o.sqsReceiveWaitTimeSeconds > 20 {
		return errors.New("SQS receive wait time must be between 1 and 20 seconds")
	}

	if o.sqsAPIMaxRetryAttempts < 0 || o.sqsAPIMaxRetryAttempts > 10 {
		return errors.New("max SQS API retry attempts must be between 0 and 10")
	}

	if o.sqsAPIMaxRetryBackoffDelay < 1*time.Second || o.sqsAPIMaxRetryBackoffDelay > 30*time.Second {
		return errors.New("max SQS API retry backoff delay must be between 1 and 30 seconds")
	}

	return nil
}

// WithSqsVisibilityTimeout sets the visibility timeout applied to each
// received message, and the duration each lease renewal asks for.
// Must be between 10 seconds and 12 hours. Default: 600.
//
// Leases are only renewed between lines while a file is read, never during a
// download. The timeout must therefore exceed the worst-case download time of
// the largest expected object, or the message becomes visible again and is
// delivered twice.
func WithSqsVisibilityTimeout(seconds int32) Option {
	return func(o *Options) {
		o.sqsVisibilityTimeoutSeconds = seconds
	}
}

// WithSqsReceiveWaitTimeSeconds sets the long-poll wait duration for each
// ReceiveMessage API call. Cancelling the context passed to [Client.Receive]
// aborts the wait early. Must be between 1 and 20 seconds. Default: 20.
func WithSqsReceiveWaitTimeSeconds(seconds int32) Option {
	return func(o *Options) {
		o.sqsReceiveWaitTimeSeconds = seconds
	}
}

// WithSqsAPIMaxRetryAttempts sets the maximum number of retry attempts for
// failed SQS API calls. Must be between 0 and 10. Default: 5.
func WithSqsAPIMaxRetryAttempts(n int) Option {
	return func(o *Options) {
		o.sqsAPIMaxRetryAttempts = n
	}
}

// WithSqsAPIMaxRetryBackoffDelay sets the maximum backoff delay between
// consecutive SQS API retry attempts. Must be between 1 second and 30 seconds.
// Default: 10 seconds.
func WithSqsAPIMaxRetryBackoffDelay(d time.Duration) Option {
	return func(o *Options) {
		o.sqsAPIMaxRetryBackoffDelay = d
	}
}

// WithQueueOwnerAccountID resolves the queue URL in another AWS account.
// Empty means the account of the resolved credentials.
func WithQueueOwnerAccountID(accountID string) Option {
	return func(o *Options) {
		o.queueOwnerAccountID = accountID
	}
}

// WithMetrics records receive, delete and renewal outcomes in r.
func WithMetrics(r *metrics.Registry) Option {
	return func(o *Options) {
		o.metrics = r
	}
}

// WithSQSClient replaces the default AWS SQS client with a custom
// implementation of the internal sqsClient interface. This option is
// intended for testing with mock or stub clients.
func WithSQSClient(client sqsClient) Option {
	return func(o *Options) {
		o.sqsClient = client
	}
}
