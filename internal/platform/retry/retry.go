// Package retry provides a shared jittered exponential backoff helper for
// the storage clients (VOS, ROS) and upstream fallback calls, all of which
// must retry idempotent operations against a flaky network per §7's
// transient-vs-final retry classification.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultMaxElapsed is the total retry budget storage clients use for
// idempotent calls when the caller has no tighter deadline of its own.
const DefaultMaxElapsed = 30 * time.Second

// Classifier decides whether err is worth retrying. Returning false stops
// the retry loop immediately and surfaces err as final.
type Classifier func(err error) bool

// Do runs op, retrying with jittered exponential backoff while classify
// reports the error as transient, up to maxElapsed total wall time. It
// returns the first error classify reports as final, or the last transient
// error once maxElapsed is exceeded.
func Do(ctx context.Context, maxElapsed time.Duration, classify Classifier, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxElapsed

	withCtx := backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}

		if !classify(err) {
			return backoff.Permanent(err)
		}

		return err
	}, withCtx)
}

// AlwaysRetry treats every error as transient; suitable for network-level
// client wrappers where the caller has already filtered out 4xx responses.
func AlwaysRetry(error) bool { return true }
