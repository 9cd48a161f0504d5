package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Config controls WithBackoff. Delays grow by Multiplier from InitialDelay up to MaxDelay.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// JitterEnabled spreads each delay by ±15%.
	JitterEnabled bool
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:    10,
		InitialDelay:  2 * time.Second,
		MaxDelay:      60 * time.Second,
		Multiplier:    2.0,
		JitterEnabled: true,
	}
}

// delay is the pause after the given failed attempt, counting from 1.
func (c Config) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(max(c.Multiplier, 1), float64(attempt-1))
	d = min(d, float64(c.MaxDelay))
	if c.JitterEnabled {
		d *= 0.85 + 0.3*rand.Float64()
	}
	return time.Duration(d)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. WithBackoff returns it on the first attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether any error in err's chain was marked by Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// WithBackoff runs fn until it succeeds, returns a Permanent error, exhausts
// MaxRetries attempts or ctx ends. A MaxRetries below one still runs fn once.
func WithBackoff(ctx context.Context, cfg Config, logger *zap.Logger, operation string, fn func() error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := max(cfg.MaxRetries, 1)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		err := fn()
		switch {
		case err == nil:
			if attempt > 1 {
				logger.Info("Operation succeeded after retries",
					zap.String("operation", operation),
					zap.Int("attempts", attempt))
			}
			return nil
		case IsPermanent(err):
			return fmt.Errorf("%s: %w", operation, err)
		case attempt >= attempts:
			return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, err)
		}

		wait := cfg.delay(attempt)
		logger.Warn("Operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", attempts),
			zap.Duration("retry_in", wait),
			zap.Error(err))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-t.C:
		}
	}
}
