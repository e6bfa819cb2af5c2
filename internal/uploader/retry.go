package uploader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/bstardust/trip-backfill/internal/logger"
	"github.com/bstardust/trip-backfill/pkg/s3client"
)

// RetryConfig controls how a failed upload is retried
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	// RetryableErrors holds the S3 error codes worth another attempt
	RetryableErrors map[string]bool
}

// DefaultRetryConfig waits 1s, 2s, 4s... up to a minute, five times
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      5,
		InitialBackoff:  1 * time.Second,
		MaxBackoff:      1 * time.Minute,
		BackoffFactor:   2.0,
		RetryableErrors: defaultRetryableErrors(),
	}
}

func defaultRetryableErrors() map[string]bool {
	return map[string]bool{
		"RequestTimeout":         true,
		"RequestTimeTooSkewed":   true,
		"InternalError":          true,
		"SlowDown":               true,
		"OperationAborted":       true,
		"ThrottlingException":    true,
		"ServiceUnavailable":     true,
		"RequestLimitExceeded":   true,
		"BandwidthLimitExceeded": true,
	}
}

var transientFragments = []string{
	"timeout",
	"connection",
	"reset",
	"broken pipe",
	"network",
	"unavailable",
	"eof",
}

// IsRetryable reports whether err looks transient. Cancellation and
// credential or missing-bucket errors are never retried.
func (rc RetryConfig) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if s3client.IsAuthError(err) || s3client.IsNotFoundError(err) {
		return false
	}

	if code := s3client.ErrorCode(err); code != "" {
		return rc.RetryableErrors[code]
	}

	msg := err.Error()
	for code := range rc.RetryableErrors {
		if strings.Contains(msg, code) {
			return true
		}
	}

	lower := strings.ToLower(msg)
	for _, frag := range transientFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// RetryWithBackoff calls fn until it succeeds, returns an error IsRetryable
// rejects, has been tried MaxRetries+1 times, or ctx is done.
func RetryWithBackoff(ctx context.Context, operation string, fn func() error, config RetryConfig) error {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s canceled: %w", operation, err)
		}

		err := fn()
		attempts++
		switch {
		case err == nil:
			if attempts > 1 {
				logger.Info("Completed %s after %d retries", operation, attempts-1)
			}
			return nil
		case !config.IsRetryable(err):
			return err
		case attempts > config.MaxRetries:
			return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, err)
		}

		wait := getBackoffDuration(attempts-1, config)
		logger.Debug("Retry %d/%d for %s in %v: %v", attempts, config.MaxRetries, operation, wait, err)
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("%s canceled during retry: %w", operation, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// getBackoffDuration is InitialBackoff * BackoffFactor^attempt with ±20%
// jitter, capped at MaxBackoff
func getBackoffDuration(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(attempt))
	backoff *= 0.8 + rand.Float64()*0.4
	return time.Duration(min(backoff, float64(config.MaxBackoff)))
}
