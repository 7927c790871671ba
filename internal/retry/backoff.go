package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/reviewloop/internal/logging"
)

// Config configures retry behavior with exponential backoff.
type Config struct {
	MaxAttempts int           // total attempts including the first (default: 4)
	BaseDelay   time.Duration // delay before the first retry (default: 1s)
	MaxDelay    time.Duration // ceiling on any single delay (default: 30s)
	Multiplier  float64       // exponential backoff multiplier (default: 2.0)
	Jitter      bool          // add random jitter to prevent thundering herd
}

// DefaultConfig returns a retry configuration with sensible defaults for
// hosting-platform API calls.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 4,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// LLMConfig returns a retry configuration tuned for model requests, which
// are slower and rate limited more aggressively.
func LLMConfig() Config {
	return Config{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2.5,
		Jitter:      true,
	}
}

// statusCoder is implemented by errors carrying an HTTP status code
// (hosting.StatusError does).
type statusCoder interface {
	HTTPStatusCode() int
}

// Do executes op with exponential backoff. Retryable failures are retried
// up to cfg.MaxAttempts total attempts; a non-retryable failure propagates
// immediately without consuming the remaining attempts.
func Do(ctx context.Context, cfg Config, logger *logging.ReviewLogger, op func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err = op()
		if err == nil {
			if attempt > 1 {
				logger.Log("operation succeeded after %d attempts", attempt)
			}
			return nil
		}

		if !IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(cfg, attempt)
		logger.Log("attempt %d/%d failed (%v), retrying in %v", attempt, cfg.MaxAttempts, err, delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	logger.Log("operation failed after %d attempts: %v", cfg.MaxAttempts, err)
	return err
}

// backoffDelay computes baseDelay * multiplier^(attempt-1), capped at
// MaxDelay, with up to ±10% jitter.
func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(cfg.BaseDelay)
		}
	}
	return time.Duration(delay)
}

// transientFragments are substrings of error messages that indicate a
// transient network condition worth retrying.
var transientFragments = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"service unavailable",
	"too many requests",
	"rate limit",
	"no such host",
	"network unreachable",
	"broken pipe",
	"eof",
}

// IsRetryable classifies an error: HTTP 429 and 5xx responses and
// recognized transient network failures are retryable, everything else is
// not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatusCode()
		return code == 429 || code >= 500
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
