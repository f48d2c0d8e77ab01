package sqs

import (
	"context"
	"time"

	"github.com/slackmgr/types"
)

// renewalThreshold is the fraction of the visibility timeout that may elapse
// before the lease is renewed.
const renewalThreshold = 0.9

// ExtendFunc renews the visibility timeout of a single message.
type ExtendFunc func(ctx context.Context) error

// Lease tracks the visibility timeout of one in-flight message and renews it
// from the processing loop itself.
//
// There is no background timer. [Lease.MaybeExtend] is called before each
// unit of work, so a worker that stops making progress also stops renewing
// and its message is redelivered once the lease expires.
//
// Renewal is best-effort. After a failed renewal the lease gives up, the
// worker carries on, and the queue may redeliver the message to another
// consumer. A Lease is owned by a single worker and is not safe for
// concurrent use.
type Lease struct {
	messageID         string
	lastExtendedAt    time.Time
	visibilityTimeout time.Duration
	extend            ExtendFunc
	logger            types.Logger
	now               func() time.Time
	renewals          int
}

// NewLease creates a Lease for msg that started when msg was received.
func NewLease(msg *Message, visibilityTimeout time.Duration, extend ExtendFunc, logger types.Logger) *Lease {
	return &Lease{
		messageID:         msg.ID,
		lastExtendedAt:    msg.ReceivedAt,
		visibilityTimeout: visibilityTimeout,
		extend:            extend,
		logger:            logger.WithField("message_id", msg.ID),
		now:               time.Now,
	}
}

// NeedsExtensionNow returns true once 90% of the visibility timeout has
// elapsed since the lease started or was last renewed.
func (l *Lease) NeedsExtensionNow() bool {
	if l.extend == nil {
		return false
	}

	threshold := time.Duration(float64(l.visibilityTimeout) * renewalThreshold)

	return l.now().Sub(l.lastExtendedAt) >= threshold
}

// MaybeExtend renews the lease for the full visibility timeout if it is due.
func (l *Lease) MaybeExtend(ctx context.Context) {
	if !l.NeedsExtensionNow() {
		return
	}

	if err := l.extend(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}

		l.logger.Errorf("Failed to extend message visibility, giving up on further renewals: %v", err)
		l.extend = nil

		return
	}

	l.lastExtendedAt = l.now()
	l.renewals++
}

// Renewals returns the number of successful renewals.
func (l *Lease) Renewals() int {
	return l.renewals
}
