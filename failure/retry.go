package failure

import (
	"context"
	"time"
)

// Policy bounds the retries applied to rate-limited upstream calls.
// MaxAttempts counts the first call; 1 or less disables retrying.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy is three attempts with 500ms, 1s backoff capped at 8s.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}

// Delay returns the wait before attempt n+1 (n starting at 0). A server
// supplied hint wins over the computed backoff; both are capped.
func (p Policy) Delay(n int, hint time.Duration) time.Duration {
	d := p.BaseDelay << uint(n)
	if d < 0 {
		d = p.MaxDelay
	}
	if hint > 0 {
		d = hint
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Retry calls fn until it succeeds, fails with a kind other than
// KindRateLimited, or the policy is exhausted.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var (
		out T
		err error
	)
	for i := 0; i < attempts; i++ {
		out, err = fn(ctx)
		if err == nil || !Has(err, KindRateLimited) || i == attempts-1 {
			return out, err
		}
		var hint time.Duration
		if fe, ok := rateLimited(err); ok {
			hint = fe.RetryAfter
		}
		timer := time.NewTimer(p.Delay(i, hint))
		select {
		case <-ctx.Done():
			timer.Stop()
			return out, err
		case <-timer.C:
		}
	}
	return out, err
}

func rateLimited(err error) (*Error, bool) {
	for err != nil {
		if fe, ok := err.(*Error); ok && fe.Kind == KindRateLimited {
			return fe, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
