package connection

import (
	"context"
	"time"

	"github.com/yndnr/salesdesk-go/internal/core/domain"
)

// Defaults applied when a Descriptor or option leaves a value unset.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// RetryPolicy decides whether and when a failed attempt is repeated.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, including the first.
	MaxAttempts int
	// BaseDelay is the linear backoff step: attempt n waits BaseDelay*(n-1).
	BaseDelay time.Duration
	// Retryable reports whether a failure may be retried. Nil means IsRetryable.
	Retryable func(error) bool
}

// DefaultRetryPolicy returns 3 attempts with 1s linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Retryable:   IsRetryable,
	}
}

// Delay returns the wait before the given 1-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(attempt-1)
}

// ShouldRetry applies the policy predicate.
func (p RetryPolicy) ShouldRetry(err error) bool {
	if p.Retryable == nil {
		return IsRetryable(err)
	}
	return p.Retryable(err)
}

func (p RetryPolicy) attempts(override int) int {
	n := p.MaxAttempts
	if override > 0 {
		n = override
	}
	if n < 1 {
		n = 1
	}
	return n
}

// IsRetryable is the default predicate: network failures and 5xx responses.
func IsRetryable(err error) bool {
	ne, ok := domain.AsNormalized(err)
	if !ok {
		return false
	}
	switch ne.Kind {
	case domain.KindNetwork:
		return true
	case domain.KindHTTPStatus:
		return ne.HTTPStatus >= 500
	default:
		return false
	}
}

// Clock abstracts time for the retry loop.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, returning ctx.Err() in that case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
