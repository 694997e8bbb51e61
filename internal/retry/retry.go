// Package retry provides the single retry policy shared by the
// classification orchestrator and the publish adapter. Decisions follow
// the error kind instead of ad-hoc sleeps at each call site.
package retry

import (
	"context"
	"time"

	"GiftScout/internal/faults"
)

// Policy bounds retries per error kind.
type Policy struct {
	// MaxAttempts counts the first try plus retries for transient failures.
	MaxAttempts int
	// Backoff is slept between transient attempts.
	Backoff time.Duration
	// QuotaWait is the fixed wait after a quota-exceeded signal.
	QuotaWait time.Duration
	// QuotaAttempts bounds the backoff loop before OnQuotaExhausted fires.
	QuotaAttempts int
	// OnQuotaExhausted may switch credentials; returning true grants one
	// fresh round of quota attempts.
	OnQuotaExhausted func() bool

	// Sleep is replaceable in tests; nil means time.Sleep with context
	// cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs op under the policy and returns the last error when every
// allowed attempt failed. Validation, parse and permanent failures are
// never retried.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	quotaAttempts := p.QuotaAttempts
	if quotaAttempts < 1 {
		quotaAttempts = 1
	}

	var (
		err          error
		attempts     int
		quotaUsed    int
		rotationUsed bool
	)

	for {
		if err = ctx.Err(); err != nil {
			return err
		}

		err = op(ctx)
		if err == nil {
			return nil
		}

		switch faults.KindOf(err) {
		case faults.KindTransient:
			attempts++
			if attempts >= maxAttempts {
				return err
			}
			if sleepErr := p.sleep(ctx, p.Backoff); sleepErr != nil {
				return err
			}

		case faults.KindQuota:
			quotaUsed++
			if quotaUsed >= quotaAttempts {
				if rotationUsed || p.OnQuotaExhausted == nil || !p.OnQuotaExhausted() {
					return err
				}
				rotationUsed = true
				quotaUsed = 0
				continue
			}
			if sleepErr := p.sleep(ctx, p.QuotaWait); sleepErr != nil {
				return err
			}

		default:
			return err
		}
	}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
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
