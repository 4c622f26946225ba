package clients

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialBackoff  time.Duration // Initial backoff duration
	MaxBackoff      time.Duration // Maximum backoff duration
	BackoffFactor   float64       // Multiplier for exponential backoff
	Jitter          float64       // Random jitter factor (0-1)
	RetryableErrors []int         // HTTP status codes to retry
}

// DefaultRetryConfig retries rate limiting only. Remote writes are not
// idempotent, so 5xx answers are surfaced instead of replayed.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryableErrors: []int{
			http.StatusTooManyRequests, // 429
		},
	}
}

// RetryResult contains the result of a retry operation
type RetryResult struct {
	Attempts      int
	LastError     error
	TotalDuration time.Duration
	RetryAfter    time.Duration // From TransientError or Retry-After header
}

// Retrier handles retry logic with exponential backoff
type Retrier struct {
	config *RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a new retrier with the given config
func NewRetrier(config *RetryConfig) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Retrier{config: config, sleep: sleepCtx}
}

// ShouldRetry determines if an error should be retried
func (r *Retrier) ShouldRetry(statusCode int, err error) bool {
	if err == nil {
		return false
	}
	for _, code := range r.config.RetryableErrors {
		if statusCode == code {
			return true
		}
	}
	return false
}

// CalculateBackoff calculates the backoff duration for a given attempt
func (r *Retrier) CalculateBackoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}

	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffFactor, float64(attempt))

	if r.config.Jitter > 0 {
		jitter := backoff * r.config.Jitter * (rand.Float64()*2 - 1)
		backoff += jitter
	}

	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}

	return time.Duration(backoff)
}

// ParseRetryAfter extracts the Retry-After duration from response headers
func ParseRetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}

	retryAfter := header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.ParseFloat(retryAfter, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}

	return 0
}

// RetryableFunc is a function that can be retried. Use StatusCode(err) for the status.
type RetryableFunc func(ctx context.Context) (statusCode int, err error)

// Do executes a function with retry logic
func (r *Retrier) Do(ctx context.Context, operation string, fn RetryableFunc) *RetryResult {
	result := &RetryResult{}
	startTime := time.Now()

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		statusCode, err := fn(ctx)
		result.LastError = err

		if err == nil {
			result.TotalDuration = time.Since(startTime)
			return result
		}

		if !r.ShouldRetry(statusCode, err) {
			result.TotalDuration = time.Since(startTime)
			return result
		}

		if attempt >= r.config.MaxRetries {
			result.LastError = fmt.Errorf("max retries exceeded for %s: %w", operation, err)
			result.TotalDuration = time.Since(startTime)
			return result
		}

		result.RetryAfter = 0
		var te *TransientError
		if errors.As(err, &te) {
			result.RetryAfter = te.RetryAfter
		}

		if err := r.sleep(ctx, r.CalculateBackoff(attempt, result.RetryAfter)); err != nil {
			result.LastError = err
			result.TotalDuration = time.Since(startTime)
			return result
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CircuitBreaker implements a simple circuit breaker pattern
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     int
	successes    int
	state        CircuitState
	lastFailure  time.Time
	threshold    int
	resetTimeout time.Duration
	halfOpenMax  int
}

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "closed"
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		halfOpenMax:  3,
		state:        CircuitClosed,
	}
}

// Allow checks if a request should be allowed
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.successes = 0
			return true
		}
		return false
	case CircuitHalfOpen:
		return cb.successes < cb.halfOpenMax
	}
	return false
}

// RecordSuccess records a successful operation
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.successes++
		if cb.successes >= cb.halfOpenMax {
			cb.state = CircuitClosed
			cb.failures = 0
		}
	} else {
		cb.failures = 0
	}
}

// RecordFailure records a failed operation
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == CircuitHalfOpen || cb.failures >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
	cb.successes = 0
}
