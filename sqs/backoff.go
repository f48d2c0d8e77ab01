package sqs

import (
	"context"
	"errors"
	"time"

	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v5"
	"github.com/slackmgr/s3ingest/metrics"
	"github.com/slackmgr/types"
)

const (
	// DefaultBackoffInitial is the first sleep after a transient queue error.
	DefaultBackoffInitial = time.Second

	// DefaultBackoffCeiling bounds the sleep. A doubled value above the
	// ceiling restarts the sequence at the initial value.
	DefaultBackoffCeiling = 60 * time.Second
)

// Backoff is the sleep policy applied between retries of the poll loop.
// The sleep doubles after every transient error and wraps back to the
// initial value once the next value would exceed the ceiling, so an outage
// of the queue service is retried frequently rather than abandoned:
// 1s, 2s, 4s, 8s, 16s, 32s, 1s, 2s, ...
//
// Backoff implements [backoff.BackOff]. It is not safe for concurrent use;
// each worker owns its own instance.
type Backoff struct {
	initial time.Duration
	ceiling time.Duration
	current time.Duration
}

var _ backoff.BackOff = (*Backoff)(nil)

// NewBackoff returns a Backoff starting at initial and wrapping above ceiling.
func NewBackoff(initial, ceiling time.Duration) *Backoff {
	return &Backoff{
		initial: initial,
		ceiling: ceiling,
		current: initial,
	}
}

// NextBackOff returns the current sleep and advances the sequence.
func (b *Backoff) NextBackOff() time.Duration {
	d := b.current

	next := b.current * 2
	if next > b.ceiling {
		next = b.initial
	}

	b.current = next

	return d
}

// Reset restarts the sequence at the initial value. The poll loop calls it
// after every successful receive.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// IsServiceError reports whether err is a transient error returned by an AWS
// service call, as opposed to a cancellation or a local failure.
func IsServiceError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return true
	}

	var opErr *smithy.OperationError

	return errors.As(err, &opErr)
}

// RunWithBackoff invokes op and, each time op fails with a service error,
// sleeps according to b before invoking it again. Any other error, and the
// cancellation of ctx, ends the loop and is returned. A nil return from op
// ends the loop with a nil error.
//
// op is expected to be a long-lived polling loop that only returns on
// failure, so RunWithBackoff normally runs until ctx is cancelled.
func RunWithBackoff(ctx context.Context, b *Backoff, logger types.Logger, m *metrics.Registry, op func(ctx context.Context) error) error {
	operation := func() (struct{}, error) {
		err := op(ctx)

		switch {
		case err == nil:
			return struct{}{}, nil
		case IsServiceError(err):
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}

	notify := func(err error, d time.Duration) {
		m.BackoffSlept()
		logger.WithField("backoff", d).Errorf("SQS service error, retrying after backoff: %v", err)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)

	return err
}
