package extcall

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrors "github.com/rsharan/slotflow/pkg/slotflow/errors"
)

func fastRetry(attempts int) sferrors.RetryConfig {
	return sferrors.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestCallSuccess(t *testing.T) {
	backend := BackendFunc{
		BackendName: "crm-lookup",
		Fn: func(_ context.Context, bundle map[string]any) (map[string]any, error) {
			assert.Equal(t, "9876543210", bundle["customer.phone"])
			return map[string]any{"customer.id": "C-42"}, nil
		},
	}
	caller := NewCaller(backend, WithRetry(fastRetry(3)))

	out, err := caller.Call(context.Background(), map[string]any{"customer.phone": "9876543210"})
	require.NoError(t, err)
	assert.Equal(t, "C-42", out["customer.id"])
}

func TestCallRetriesTransient(t *testing.T) {
	calls := 0
	backend := BackendFunc{
		BackendName: "availability",
		Fn: func(context.Context, map[string]any) (map[string]any, error) {
			calls++
			if calls < 3 {
				return nil, &sferrors.HTTPError{StatusCode: 503, Message: "overloaded"}
			}
			return map[string]any{"appointment.slot": "10:00"}, nil
		},
	}
	caller := NewCaller(backend, WithRetry(fastRetry(3)))

	out, err := caller.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "10:00", out["appointment.slot"])
}

func TestCallDoesNotRetryPermanent(t *testing.T) {
	calls := 0
	backend := BackendFunc{
		BackendName: "booking",
		Fn: func(context.Context, map[string]any) (map[string]any, error) {
			calls++
			return nil, &sferrors.HTTPError{StatusCode: 401, Message: "bad credentials"}
		},
	}
	caller := NewCaller(backend, WithRetry(fastRetry(3)))

	_, err := caller.Call(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCallBreakerOpensAndFailsFast(t *testing.T) {
	calls := 0
	backend := BackendFunc{
		BackendName: "flaky",
		Fn: func(context.Context, map[string]any) (map[string]any, error) {
			calls++
			return nil, &sferrors.HTTPError{StatusCode: 503, Message: "down"}
		},
	}
	caller := NewCaller(backend,
		WithRetry(fastRetry(1)),
		WithBreakerSettings(gobreaker.Settings{
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 2
			},
		}),
	)

	for range 2 {
		_, err := caller.Call(context.Background(), nil)
		require.Error(t, err)
	}
	require.Equal(t, 2, calls)

	// breaker is now open; the backend must not be touched again
	_, err := caller.Call(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls)
}

func TestCallTimeoutPerAttempt(t *testing.T) {
	backend := BackendFunc{
		BackendName: "slow",
		Fn: func(ctx context.Context, _ map[string]any) (map[string]any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return map[string]any{}, nil
			}
		},
	}
	caller := NewCaller(backend,
		WithTimeout(10*time.Millisecond),
		WithRetry(fastRetry(2)),
	)

	start := time.Now()
	_, err := caller.Call(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCallRespectsCallerContext(t *testing.T) {
	backend := BackendFunc{
		BackendName: "any",
		Fn: func(context.Context, map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	}
	caller := NewCaller(backend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := caller.Call(ctx, nil)
	require.Error(t, err)
}
