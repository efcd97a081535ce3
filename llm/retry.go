package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxRetries is the default maximum number of retries
	DefaultMaxRetries = 5
	// DefaultMaxElapsedTime is the default maximum elapsed time for backoff
	DefaultMaxElapsedTime = 5 * time.Minute
	// DefaultMaxInterval is the default maximum interval for backoff
	DefaultMaxInterval = 5 * time.Minute
	// DefaultInitialDelay is the default initial delay for exponential backoff
	DefaultInitialDelay = 1 * time.Second
	// RetryAfterMultiplier is the multiplier for retry-after based backoff
	RetryAfterMultiplier = 1.5
	// RetryAfterRandomizationFactor is the randomization factor for retry-after based backoff
	RetryAfterRandomizationFactor = 0.1
	// StandardMultiplier is the multiplier for standard exponential backoff
	StandardMultiplier = 2.0
	// StandardRandomizationFactor is the randomization factor for standard exponential backoff
	StandardRandomizationFactor = 0.2
)

// RetryPolicy bounds the retry loop around a Client.
type RetryPolicy struct {
	MaxRetries     uint64
	InitialDelay   time.Duration
	MaxInterval    time.Duration
	MaxElapsedTime time.Duration
}

// DefaultRetryPolicy returns the retry bounds used when callers pass the
// zero value.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     DefaultMaxRetries,
		InitialDelay:   DefaultInitialDelay,
		MaxInterval:    DefaultMaxInterval,
		MaxElapsedTime: DefaultMaxElapsedTime,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxRetries == 0 {
		p.MaxRetries = def.MaxRetries
	}
	if p.InitialDelay == 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxInterval == 0 {
		p.MaxInterval = def.MaxInterval
	}
	if p.MaxElapsedTime == 0 {
		p.MaxElapsedTime = def.MaxElapsedTime
	}
	return p
}

// newBackoff creates a backoff configuration for one fetch.
// If retryAfter is provided, it is used as the initial delay.
func (p RetryPolicy) newBackoff(retryAfter time.Duration) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()

	if retryAfter > 0 {
		// Use retry-after as initial delay with exponential backoff
		eb.InitialInterval = retryAfter
		eb.Multiplier = RetryAfterMultiplier
		eb.RandomizationFactor = RetryAfterRandomizationFactor
	} else {
		// Standard exponential backoff
		eb.InitialInterval = p.InitialDelay
		eb.Multiplier = StandardMultiplier
		eb.RandomizationFactor = StandardRandomizationFactor
	}

	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = p.MaxElapsedTime
	eb.Reset()

	// Limit max retries
	return backoff.WithMaxRetries(eb, p.MaxRetries)
}

// WithRetry wraps a Client so that retryable errors (rate limits, network
// failures, transient provider errors) are retried with bounded randomized
// exponential backoff. Terminal errors (context length, invalid request,
// quota, parsing) pass through unchanged on the first attempt.
func WithRetry(client Client, policy RetryPolicy, logger zerolog.Logger) Client {
	return &retryingClient{
		client: client,
		policy: policy.withDefaults(),
		logger: logger.With().Str("component", "llmRetry").Logger(),
		wait:   waitForRetry,
	}
}

type retryingClient struct {
	client Client
	policy RetryPolicy
	logger zerolog.Logger
	// wait blocks for a delay, respecting context cancellation. Stubbed in
	// tests.
	wait func(ctx context.Context, delay time.Duration) error
}

// Fetch implements Client. The backoff state lives for the duration of one
// fetch; a fresh call starts the schedule over.
func (c *retryingClient) Fetch(ctx context.Context, req *Request) (*Response, error) {
	var b backoff.BackOff

	for attempt := 0; ; attempt++ {
		resp, err := c.client.Fetch(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !IsRetryableError(err) {
			return nil, err
		}

		if b == nil {
			var retryAfter time.Duration
			if ra := ExtractRetryAfter(err); ra != nil {
				retryAfter = *ra
			}
			b = c.policy.newBackoff(retryAfter)
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			c.logger.Error().
				Uint64("max_retries", c.policy.MaxRetries).
				Str("model", req.Model).
				Msg("Max retries or elapsed time exceeded")
			return nil, fmt.Errorf("retries exhausted after %d attempts: %w", attempt+1, err)
		}

		c.logger.Warn().
			Int("attempt", attempt+1).
			Uint64("max_retries", c.policy.MaxRetries).
			Dur("next_delay", delay).
			Err(err).
			Msg("Retryable model error. Retrying after delay")

		if waitErr := c.wait(ctx, delay); waitErr != nil {
			return nil, fmt.Errorf("context cancelled while waiting to retry: %w", waitErr)
		}
	}
}

// waitForRetry waits for the specified delay, respecting context cancellation
func waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Client = (*retryingClient)(nil)
