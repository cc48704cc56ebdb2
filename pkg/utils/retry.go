package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryTransient runs op, retrying with exponential backoff while it returns
// a non-nil error, up to maxElapsed total. It is the shared retry policy for
// TransientRpc errors (spec.md §7) across L1View, L2View and TxMonitor.
func RetryTransient(ctx context.Context, maxElapsed time.Duration, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
