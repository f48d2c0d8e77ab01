//nolint:paralleltest,testpackage // Tests need access to unexported fields
package sqs

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLease(clock *fakeClock, timeout time.Duration, extend ExtendFunc) *Lease {
	msg := &Message{ID: "msg-1", ReceiptHandle: "receipt-1", ReceivedAt: clock.Now()}
	lease := NewLease(msg, timeout, extend, newMockLogger())
	lease.now = clock.Now

	return lease
}

func TestLease_NoExtensionBeforeThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	calls := 0

	lease := newTestLease(clock, 30*time.Second, func(_ context.Context) error {
		calls++
		return nil
	})

	clock.Advance(26 * time.Second)
	lease.MaybeExtend(t.Context())

	if calls != 0 {
		t.Errorf("expected no renewal before 90%% of the timeout, got %d", calls)
	}
}

func TestLease_ExtendsAtThresholdAndResets(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	calls := 0

	lease := newTestLease(clock, 30*time.Second, func(_ context.Context) error {
		calls++
		return nil
	})

	clock.Advance(27 * time.Second)
	lease.MaybeExtend(t.Context())

	if calls != 1 {
		t.Fatalf("expected one renewal at 90%% of the timeout, got %d", calls)
	}

	// The renewal restarts the clock.
	clock.Advance(10 * time.Second)
	lease.MaybeExtend(t.Context())

	if calls != 1 {
		t.Errorf("expected no renewal right after a renewal, got %d", calls)
	}

	if lease.Renewals() != 1 {
		t.Errorf("expected 1 recorded renewal, got %d", lease.Renewals())
	}
}

func TestLease_RenewsBeforeExpiryDuringLongProcessing(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	timeout := 30 * time.Second
	start := clock.Now()

	var renewedAt []time.Time

	lease := newTestLease(clock, timeout, func(_ context.Context) error {
		renewedAt = append(renewedAt, clock.Now())
		return nil
	})

	// 100 lines, one every 500ms: 50s of processing for a 30s lease.
	for range 100 {
		lease.MaybeExtend(t.Context())
		clock.Advance(500 * time.Millisecond)
	}

	if len(renewedAt) == 0 {
		t.Fatal("expected at least one renewal")
	}

	if !renewedAt[0].Before(start.Add(timeout)) {
		t.Errorf("expected first renewal before the lease expired, got %v after start", renewedAt[0].Sub(start))
	}

	for i := 1; i < len(renewedAt); i++ {
		if renewedAt[i].Sub(renewedAt[i-1]) >= timeout {
			t.Errorf("renewal %d came %v after the previous one", i, renewedAt[i].Sub(renewedAt[i-1]))
		}
	}
}

func TestLease_GivesUpAfterFailure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	calls := 0

	lease := newTestLease(clock, 30*time.Second, func(_ context.Context) error {
		calls++
		return errors.New("receipt handle expired")
	})

	clock.Advance(28 * time.Second)
	lease.MaybeExtend(t.Context())
	clock.Advance(28 * time.Second)
	lease.MaybeExtend(t.Context())

	if calls != 1 {
		t.Errorf("expected renewal attempts to stop after a failure, got %d", calls)
	}

	if lease.NeedsExtensionNow() {
		t.Error("expected a failed lease to never need extension again")
	}
}
