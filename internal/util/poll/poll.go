// Package poll waits for a condition at a fixed interval with a bounded total timeout.
//
// Every readiness wait in oxide (node Ready, node cordoned, cluster API up,
// Cilium pods Ready) goes through [Until] so that a wait that runs out of time
// always surfaces as a [*TimeoutError] naming what was awaited.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Condition reports whether the awaited state has been reached.
// A non-nil error aborts polling immediately.
type Condition func(ctx context.Context) (done bool, err error)

// Spec describes one bounded wait.
type Spec struct {
	// What names the awaited condition, e.g. "node demo-worker-3 Ready".
	What     string
	Interval time.Duration
	Timeout  time.Duration
}

// TimeoutError is returned when the condition did not hold within Timeout.
// It is distinct from a failure: the awaited state may still be reached later.
type TimeoutError struct {
	What    string
	Timeout time.Duration
	// Attempts is the number of times the condition was evaluated.
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s (%d checks)", e.Timeout, e.What, e.Attempts)
}

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Until evaluates cond immediately and then every s.Interval until it returns
// true, returns an error, s.Timeout elapses or ctx is cancelled.
// Cancellation of ctx is returned as ctx.Err(), not as a timeout.
func Until(ctx context.Context, s Spec, cond Condition) error {
	attempts := 0
	err := wait.PollUntilContextTimeout(ctx, s.Interval, s.Timeout, true, func(ctx context.Context) (bool, error) {
		attempts++
		return cond(ctx)
	})
	if err == nil {
		return nil
	}
	if wait.Interrupted(err) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TimeoutError{What: s.What, Timeout: s.Timeout, Attempts: attempts}
	}
	return err
}

// UntilValue is Until for conditions that produce a value once satisfied.
func UntilValue[T any](ctx context.Context, s Spec, fn func(ctx context.Context) (T, bool, error)) (T, error) {
	var result T
	err := Until(ctx, s, func(ctx context.Context) (bool, error) {
		v, ok, err := fn(ctx)
		if err != nil || !ok {
			return false, err
		}
		result = v
		return true, nil
	})
	return result, err
}
