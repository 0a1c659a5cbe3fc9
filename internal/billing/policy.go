package billing

import "time"

// MaxAttempts is the number of failed charges tolerated before a
// subscription is canceled.
const MaxAttempts = 3

// RetryPolicy decides whether and when a failed charge is retried.
// It is a pure function of the attempt count, with attempts counted after
// the failing charge has been recorded: the first failure (attempts=1)
// schedules a retry 2 days out, the second 4 days, the third 8 days.
type RetryPolicy struct {
	MaxAttempts int
}

// DefaultRetryPolicy returns the production dunning policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: MaxAttempts}
}

// RetryDelay returns the backoff delay for the given attempt count:
// 2^attempts days.
func (p RetryPolicy) RetryDelay(attempts int) time.Duration {
	return time.Duration(1<<uint(attempts)) * 24 * time.Hour
}

// Exhausted reports whether a subscription with the given attempt count
// (after increment) has used up its retries and must be canceled instead of
// rescheduled.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// NextRetryAt returns the retry timestamp for a failure at the given
// attempt count, or nil when the policy says to give up.
func (p RetryPolicy) NextRetryAt(now time.Time, attempts int) *time.Time {
	if p.Exhausted(attempts) {
		return nil
	}
	at := now.Add(p.RetryDelay(attempts))
	return &at
}
