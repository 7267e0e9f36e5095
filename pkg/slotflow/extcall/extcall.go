// Package extcall wraps outbound calls to external systems (CRM
// lookups, slot availability, booking creation) with the timeout,
// retry, and circuit breaking discipline those systems need. Results
// come back as field-path maps ready to merge into a record.
package extcall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	sferrors "github.com/rsharan/slotflow/pkg/slotflow/errors"
)

// Backend performs one named external operation against a bundle of
// extracted fields. The returned map is keyed by field path; the
// caller writes those values back at full confidence.
type Backend interface {
	Name() string
	Call(ctx context.Context, bundle map[string]any) (map[string]any, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc struct {
	BackendName string
	Fn          func(ctx context.Context, bundle map[string]any) (map[string]any, error)
}

// Name implements Backend.
func (b BackendFunc) Name() string { return b.BackendName }

// Call implements Backend.
func (b BackendFunc) Call(ctx context.Context, bundle map[string]any) (map[string]any, error) {
	return b.Fn(ctx, bundle)
}

// Caller executes a backend under a per-attempt timeout, a retry
// policy for transient failures, and a circuit breaker that sheds load
// when the backend is down.
type Caller struct {
	backend Backend
	timeout time.Duration
	retry   sferrors.RetryConfig
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// CallerOption is a functional option for Caller.
type CallerOption func(*Caller)

// WithTimeout sets the per-attempt deadline.
func WithTimeout(d time.Duration) CallerOption {
	return func(c *Caller) {
		c.timeout = d
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg sferrors.RetryConfig) CallerOption {
	return func(c *Caller) {
		c.retry = cfg
	}
}

// WithLogger sets the caller's logger.
func WithLogger(l *slog.Logger) CallerOption {
	return func(c *Caller) {
		c.logger = l
	}
}

// WithBreakerSettings replaces the default breaker configuration. The
// Name field is filled from the backend when left blank.
func WithBreakerSettings(st gobreaker.Settings) CallerOption {
	return func(c *Caller) {
		if st.Name == "" {
			st.Name = c.backend.Name()
		}
		c.breaker = gobreaker.NewCircuitBreaker(st)
	}
}

// NewCaller wraps a backend with the default policies: 5s per attempt,
// three attempts with exponential backoff, and a breaker that opens
// after five consecutive failures.
func NewCaller(backend Backend, opts ...CallerOption) *Caller {
	c := &Caller{
		backend: backend,
		timeout: 5 * time.Second,
		retry:   sferrors.DefaultRetry,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    backend.Name(),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if c.logger != nil {
				c.logger.Warn("circuit breaker state changed",
					slog.String("backend", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			}
		},
	})
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name returns the wrapped backend's name.
func (c *Caller) Name() string {
	return c.backend.Name()
}

// Call runs the backend. Each attempt goes through the breaker with
// the timeout applied; transient failures are retried, an open breaker
// fails fast.
func (c *Caller) Call(ctx context.Context, bundle map[string]any) (map[string]any, error) {
	cfg := c.retry
	base := cfg.RetryableFunc
	if base == nil {
		base = sferrors.IsRetryable
	}
	cfg.RetryableFunc = func(err error) bool {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false
		}
		return base(err)
	}

	res := sferrors.WithRetryContext(ctx, cfg, func(ctx context.Context) (map[string]any, error) {
		out, err := c.breaker.Execute(func() (any, error) {
			actx := ctx
			if c.timeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, c.timeout)
				defer cancel()
			}
			return c.backend.Call(actx, bundle)
		})
		if err != nil {
			return nil, err
		}
		return out.(map[string]any), nil
	})

	if res.Err != nil {
		if c.logger != nil {
			c.logger.Error("external call failed",
				slog.String("backend", c.backend.Name()),
				slog.Int("attempts", res.Attempts),
				slog.Duration("elapsed", res.Duration),
				slog.String("error", res.Err.Error()))
		}
		return nil, fmt.Errorf("extcall %s: %w", c.backend.Name(), res.Err)
	}
	if c.logger != nil && res.Attempts > 1 {
		c.logger.Info("external call recovered after retry",
			slog.String("backend", c.backend.Name()),
			slog.Int("attempts", res.Attempts))
	}
	return res.Value, nil
}
