// Package retry provides exponential backoff for operations that are retried
// opportunistically rather than in a blocking loop.
//
// A Throttle gates attempts of an operation that the caller triggers on its
// own schedule, such as re-attaching to a logging channel on every handled
// request until the target firmware is ready:
//
//	throttle := retry.NewThrottle(retry.Config{
//	    InitialBackoff: 100 * time.Millisecond,
//	    MaxBackoff:     5 * time.Second,
//	})
//
//	if throttle.Allow() {
//	    if err := attach(); err != nil {
//	        throttle.Failure()
//	    } else {
//	        throttle.Success()
//	    }
//	}
//
// # Backoff Strategy
//
// The backoff duration follows an exponential pattern: InitialBackoff * 2^(attempt-1).
// For example, with InitialBackoff of 100ms:
//   - Attempt 1: 100ms
//   - Attempt 2: 200ms
//   - Attempt 3: 400ms
//   - Attempt 4: 800ms
package retry

import (
	"math"
	"time"
)

// Config defines the backoff behavior.
type Config struct {
	// MaxRetries is the maximum number of consecutive failed attempts after
	// which a Throttle stops allowing new ones. Zero means no limit.
	MaxRetries int

	// InitialBackoff is the base backoff duration.
	// Each retry multiplies this by 2^(attempt-1).
	// Zero disables backoff: every attempt is allowed.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration.
	// Zero means no cap (backoff grows unbounded).
	MaxBackoff time.Duration

	// Jitter spreads out backoff (0.0 to 1.0). It increases linearly with the
	// attempt number and only applies when MaxRetries is set:
	//   jitter_amount = backoff * Jitter * attempt / MaxRetries
	Jitter float64
}

// Backoff computes the backoff duration after the given failed attempt.
//
// The backoff calculation follows these steps:
//  1. Calculate exponential backoff: InitialBackoff * 2^(attempt-1)
//  2. Apply MaxBackoff cap if configured (cfg.MaxBackoff > 0)
//  3. Add jitter if configured (cfg.Jitter > 0 and cfg.MaxRetries > 0)
func Backoff(cfg Config, attempt int) time.Duration {
	if attempt < 1 || cfg.InitialBackoff <= 0 {
		return 0
	}

	// Exponential backoff: 2^(attempt-1) * InitialBackoff.
	multiplier := math.Pow(2, float64(attempt-1))
	backoff := float64(cfg.InitialBackoff) * multiplier

	// Apply max backoff cap. Comparing as float also guards the conversion
	// against overflow for large attempt counts.
	var result time.Duration
	switch {
	case cfg.MaxBackoff > 0 && backoff > float64(cfg.MaxBackoff):
		result = cfg.MaxBackoff
	case backoff >= math.MaxInt64:
		result = time.Duration(math.MaxInt64)
	default:
		result = time.Duration(backoff)
	}

	// Add jitter (increases linearly with attempt).
	if cfg.Jitter > 0 && cfg.MaxRetries > 0 {
		jitterAmount := float64(result) * cfg.Jitter * float64(attempt) / float64(cfg.MaxRetries)
		result += time.Duration(jitterAmount)
	}

	return result
}

// Throttle tracks consecutive failures of an operation and tells the caller
// when the next attempt is due. It is not safe for concurrent use.
type Throttle struct {
	cfg      Config
	now      func() time.Time
	failures int
	next     time.Time
}

// NewThrottle returns a throttle that allows the first attempt immediately.
func NewThrottle(cfg Config) *Throttle {
	return NewThrottleWithClock(cfg, time.Now)
}

// NewThrottleWithClock returns a throttle that reads the time from now.
func NewThrottleWithClock(cfg Config, now func() time.Time) *Throttle {
	return &Throttle{cfg: cfg, now: now}
}

// Allow reports whether an attempt may be made now.
func (t *Throttle) Allow() bool {
	if t.cfg.MaxRetries > 0 && t.failures >= t.cfg.MaxRetries {
		return false
	}
	return !t.now().Before(t.next)
}

// Failure records a failed attempt and schedules the next one.
func (t *Throttle) Failure() {
	t.failures++
	t.next = t.now().Add(Backoff(t.cfg, t.failures))
}

// Success records a successful attempt and resets the backoff.
func (t *Throttle) Success() {
	t.Reset()
}

// Reset clears the failure history.
func (t *Throttle) Reset() {
	t.failures = 0
	t.next = time.Time{}
}

// Failures returns the number of consecutive failed attempts.
func (t *Throttle) Failures() int {
	return t.failures
}

// NextAttempt returns the earliest time of the next allowed attempt. The zero
// time means now.
func (t *Throttle) NextAttempt() time.Time {
	return t.next
}
