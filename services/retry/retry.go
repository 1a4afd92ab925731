package retry

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/JatinSri1909/slack-connect-server/core"
)

// Policy configures bounded exponential-backoff retry for one family of
// operations. A zero delay between attempts never happens: the first failure
// already waits BaseDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64

	// Retryable decides whether a given failure is worth another attempt.
	// Non-transient failures (e.g. malformed input) must be rejected here -
	// the executor never second-guesses the predicate.
	Retryable func(error) bool

	// Jitter, when set, perturbs the computed delay. The default policies
	// leave it nil for deterministic backoff.
	Jitter func(time.Duration) time.Duration

	// Sleep is overridable for tests; nil means a context-aware time.Sleep
	Sleep func(ctx context.Context, d time.Duration) error
}

// Execute runs op with at most MaxAttempts invocations. On failure it
// propagates immediately when attempts are exhausted or the predicate rejects
// the error; otherwise it sleeps min(base * multiplier^attempt, maxDelay) and
// retries. A rate-limit retry-after hint takes precedence over the computed
// delay for the next attempt.
func (p Policy) Execute(ctx context.Context, name string, op func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		if attempt+1 >= p.MaxAttempts || p.Retryable == nil || !p.Retryable(err) {
			return err
		}

		delay := p.backoffDelay(attempt)
		if retryAfter, ok := core.IsRateLimitedError(err); ok && retryAfter > 0 {
			delay = retryAfter
		}

		log.Printf("⚠️ %s failed (attempt %d/%d), retrying in %s: %v", name, attempt+1, p.MaxAttempts, delay, err)
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("%s aborted while waiting to retry: %w", name, sleepErr)
		}
	}

	return err
}

func (p Policy) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt)))
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter != nil {
		delay = p.Jitter(delay)
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DefaultRetryable retries on connection failures, timeouts and 5xx responses
func DefaultRetryable(err error) bool {
	return core.IsTransientError(err)
}

// APIRetryable additionally retries on rate-limit (429) responses
func APIRetryable(err error) bool {
	if _, ok := core.IsRateLimitedError(err); ok {
		return true
	}
	return DefaultRetryable(err)
}

// StorageRetryable retries only on busy/locked/serialization signals from the
// storage layer
func StorageRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "lock not available") ||
		strings.Contains(msg, "database is locked")
}

// DefaultPolicy covers generic external calls
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
		Retryable:   DefaultRetryable,
	}
}

// APICallPolicy covers Slack API calls, which can additionally be rate limited
func APICallPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2,
		Retryable:   APIRetryable,
	}
}

// StoragePolicy covers storage operations, with fewer attempts and a shorter
// base delay since contention clears quickly
func StoragePolicy() Policy {
	return Policy{
		MaxAttempts: 2,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    1 * time.Second,
		Multiplier:  2,
		Retryable:   StorageRetryable,
	}
}
