//nolint:paralleltest,testpackage // Tests need access to unexported functions
package sqs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/smithy-go"
)

func TestBackoff_Sequence(t *testing.T) {
	b := NewBackoff(DefaultBackoffInitial, DefaultBackoffCeiling)

	want := []time.Duration{1, 2, 4, 8, 16, 32, 1, 2, 4}

	for i, w := range want {
		if got := b.NextBackOff(); got != w*time.Second {
			t.Fatalf("step %d: expected %v, got %v", i, w*time.Second, got)
		}
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff(DefaultBackoffInitial, DefaultBackoffCeiling)

	b.NextBackOff()
	b.NextBackOff()
	b.NextBackOff()
	b.Reset()

	if got := b.NextBackOff(); got != time.Second {
		t.Errorf("expected 1s after reset, got %v", got)
	}
}

func TestIsServiceError(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "ServiceUnavailable", Message: "try again"}
	opErr := &smithy.OperationError{ServiceID: "SQS", OperationName: "ReceiveMessage", Err: errors.New("connection reset")}
	cancelled := &smithy.OperationError{ServiceID: "SQS", OperationName: "ReceiveMessage", Err: context.Canceled}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"api error", apiErr, true},
		{"wrapped api error", fmt.Errorf("failed to receive SQS message: %w", apiErr), true},
		{"operation error", opErr, true},
		{"cancelled operation", cancelled, false},
		{"context deadline", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsServiceError(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRunWithBackoff_RetriesServiceErrors(t *testing.T) {
	b := NewBackoff(time.Millisecond, 60*time.Millisecond)
	calls := 0

	err := RunWithBackoff(t.Context(), b, newMockLogger(), nil, func(_ context.Context) error {
		calls++
		if calls < 4 {
			return &smithy.GenericAPIError{Code: "ServiceUnavailable"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestRunWithBackoff_StopsOnOtherErrors(t *testing.T) {
	b := NewBackoff(time.Millisecond, 60*time.Millisecond)
	boom := errors.New("boom")
	calls := 0

	err := RunWithBackoff(t.Context(), b, newMockLogger(), nil, func(_ context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestRunWithBackoff_ContextCancelledDuringSleep(t *testing.T) {
	b := NewBackoff(time.Hour, 2*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := RunWithBackoff(ctx, b, newMockLogger(), nil, func(_ context.Context) error {
		return &smithy.GenericAPIError{Code: "ServiceUnavailable"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
