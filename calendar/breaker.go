package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/calassist/calassist/logging"
)

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

// BreakerOptions configure a Breaker.
type BreakerOptions struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration
	Logger   logging.Logger
}

// Breaker wraps a Client with circuit breaker protection. When the backend
// fails repeatedly the circuit opens and subsequent calls fail fast without
// reaching it, preventing retry storms against an unhealthy calendar API.
type Breaker struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreaker wraps inner with a circuit breaker.
func NewBreaker(inner Client, optFns ...func(o *BreakerOptions)) *Breaker {
	opts := BreakerOptions{
		MaxFailures: defaultBreakerMaxFailures,
		Timeout:     defaultBreakerTimeout,
		Interval:    defaultBreakerInterval,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "calendar",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			opts.Logger.Warn("calendar.breaker.state_change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is the caller's doing, not backend health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Breaker{inner: inner, breaker: cb}
}

func (b *Breaker) execute(fn func() (any, error)) (any, error) {
	result, err := b.breaker.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, fmt.Errorf("calendar backend circuit open: %w", err)
	}
	return result, err
}

// ListUpcoming implements Client.
func (b *Breaker) ListUpcoming(ctx context.Context, max int64) ([]Event, error) {
	result, err := b.execute(func() (any, error) { return b.inner.ListUpcoming(ctx, max) })
	if err != nil {
		return nil, err
	}
	return result.([]Event), nil
}

// ListBetween implements Client.
func (b *Breaker) ListBetween(ctx context.Context, start, end time.Time) ([]Event, error) {
	result, err := b.execute(func() (any, error) { return b.inner.ListBetween(ctx, start, end) })
	if err != nil {
		return nil, err
	}
	return result.([]Event), nil
}

// Create implements Client.
func (b *Breaker) Create(ctx context.Context, ev Event) (Event, error) {
	result, err := b.execute(func() (any, error) { return b.inner.Create(ctx, ev) })
	if err != nil {
		return Event{}, err
	}
	return result.(Event), nil
}

// Update implements Client.
func (b *Breaker) Update(ctx context.Context, id string, ev Event) (Event, error) {
	result, err := b.execute(func() (any, error) { return b.inner.Update(ctx, id, ev) })
	if err != nil {
		return Event{}, err
	}
	return result.(Event), nil
}

// Delete implements Client.
func (b *Breaker) Delete(ctx context.Context, id string) error {
	_, err := b.execute(func() (any, error) { return nil, b.inner.Delete(ctx, id) })
	return err
}

// Now implements Client. The clock never trips the breaker.
func (b *Breaker) Now() time.Time { return b.inner.Now() }

// State returns the current circuit breaker state for monitoring.
func (b *Breaker) State() gobreaker.State { return b.breaker.State() }
