// Package retry bounds how often a flaky external step is attempted.
package retry

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/postbuilder/internal/config"
)

// Policy holds backoff settings for a retried operation. It is immutable after construction.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int // retries after the first attempt
}

// DefaultPolicy is linear backoff starting at 1s, capped at 10s, with one retry.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 10 * time.Second, MaxRetries: 1}
}

// FromConfig builds a policy from the diagram retry section.
func FromConfig(rc config.RetryConfig) Policy {
	return NewPolicy(rc.Mode, rc.Initial, rc.Max, rc.MaxRetries)
}

// NewPolicy builds a policy from raw fields. Zero or unknown values keep the default.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	switch mode {
	case config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the wait before retry n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		d = p.Initial << (n - 1)
	default:
		d = time.Duration(n) * p.Initial
	}
	if d > p.Max || d <= 0 {
		return p.Max
	}
	return d
}

// Attempts is the total number of times Do calls its function.
func (p Policy) Attempts() int { return p.MaxRetries + 1 }

// Validate reports a policy that cannot be applied.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// Do runs fn until it succeeds, the attempts are exhausted, or ctx is done.
// fn receives the 1-based attempt number. The last error is returned.
// An invalid policy never calls fn.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid retry policy: %w", err)
	}
	var err error
	for attempt := 1; attempt <= p.Attempts(); attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(p.Delay(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry aborted after %d attempts: %w", attempt-1, ctx.Err())
			case <-timer.C:
			}
		}
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
