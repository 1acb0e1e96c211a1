// Package retry provides exponential backoff used by the step
// executor's retry policy and the AI api transport's rate-limit
// handling.
package retry

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/forgen-run/forgen/utils/config"
)

// RetryConfig holds configuration for retry operations.
type RetryConfig struct {
	MaxRetries  int           // Maximum number of retry attempts
	InitialWait time.Duration // Initial wait time before first retry
	MaxWait     time.Duration // Maximum wait time between retries
	Factor      float64       // Exponential backoff factor
	Jitter      bool          // Add +/-25% jitter to the computed wait
}

// DefaultRetryConfig provides sensible defaults for AI transport calls.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:  5,
	InitialWait: 1 * time.Second,
	MaxWait:     60 * time.Second,
	Factor:      2.0,
}

// StepRetryConfig is the step executor's backoff policy: 200ms * 2^n
// with jitter, capped at 10s. The executor replaces MaxRetries with the
// step's own `retries` value, so a step without `retries` is tried once.
var StepRetryConfig = RetryConfig{
	MaxRetries:  3,
	InitialWait: 200 * time.Millisecond,
	MaxWait:     10 * time.Second,
	Factor:      2.0,
	Jitter:      true,
}

// WithRetry executes operation, retrying it while shouldRetry(err) is
// true, up to cfg.MaxRetries additional attempts after the first.
func WithRetry(operation func() (interface{}, error), shouldRetry func(error) bool, cfg RetryConfig) (interface{}, error) {
	result, _, err := WithRetryCount(operation, shouldRetry, cfg)
	return result, err
}

// WithRetryCount behaves like WithRetry but also reports how many
// retry attempts were made, which the Step Executor records in
// StepResult.RetryCount.
func WithRetryCount(operation func() (interface{}, error), shouldRetry func(error) bool, cfg RetryConfig) (interface{}, int, error) {
	var result interface{}
	var err error
	wait := cfg.InitialWait

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err = operation()

		if err == nil || !shouldRetry(err) {
			return result, attempt, err
		}

		if attempt == cfg.MaxRetries {
			return nil, attempt, fmt.Errorf("operation failed after %d retries: %w", cfg.MaxRetries, err)
		}

		retryWait := time.Duration(math.Min(float64(wait), float64(cfg.MaxWait)))
		if retryTime := extractRetryTime(err.Error()); retryTime > 0 {
			retryWait = retryTime
		}
		if cfg.Jitter {
			retryWait = jitter(retryWait)
		}

		cfg.DebugLog("received retryable error: %v, retrying in %v (attempt %d/%d)",
			err, retryWait, attempt+1, cfg.MaxRetries)
		log.Printf("retrying in %v (attempt %d/%d): %v\n", retryWait, attempt+1, cfg.MaxRetries, err)

		time.Sleep(retryWait)
		wait = time.Duration(float64(wait) * cfg.Factor)
	}

	return nil, cfg.MaxRetries, fmt.Errorf("unexpected error in retry logic")
}

func jitter(d time.Duration) time.Duration {
	delta := float64(d) * 0.25
	offset := (rand.Float64()*2 - 1) * delta
	return time.Duration(float64(d) + offset)
}

// Is429Error checks if the error is a rate limit (429) error.
func Is429Error(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "429") ||
		strings.Contains(errMsg, "rate limit") ||
		strings.Contains(errMsg, "quota exceeded") ||
		strings.Contains(errMsg, "too many requests")
}

// IsTransient reports whether an error kind is worth retrying: rate
// limits, and the generic transport/network errors surfaced by the
// AI api transport and the Shell tool's subprocess launch failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if Is429Error(err) {
		return true
	}
	errMsg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "connection reset", "temporarily unavailable", "eof", "broken pipe"} {
		if strings.Contains(errMsg, s) {
			return true
		}
	}
	return false
}

// extractRetryTime attempts to extract a retry time from an error message.
func extractRetryTime(errMsg string) time.Duration {
	retryPatterns := []string{
		"retry in ",
		"retry after ",
		"try again in ",
		"try again after ",
	}

	for _, pattern := range retryPatterns {
		if idx := strings.Index(strings.ToLower(errMsg), pattern); idx >= 0 {
			timeStr := errMsg[idx+len(pattern):]

			var seconds int
			if _, err := fmt.Sscanf(timeStr, "%ds", &seconds); err == nil {
				return time.Duration(seconds) * time.Second
			}
			if _, err := fmt.Sscanf(timeStr, "%d seconds", &seconds); err == nil {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return 0
}

// DebugLog logs debug information if debug mode is enabled.
func (c RetryConfig) DebugLog(format string, args ...interface{}) {
	config.DebugLog("[retry] "+format, args...)
}

// Log prints a message regardless of debug mode.
func (c RetryConfig) Log(format string, args ...interface{}) {
	log.Printf(format+"\n", args...)
}
