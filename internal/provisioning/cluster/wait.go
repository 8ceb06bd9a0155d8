package cluster

import (
	"context"
	"time"

	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/util/poll"
)

// waitFor polls ok until it returns true.
func waitFor(ctx *provisioning.Context, what string, interval, timeout time.Duration, ok func() bool) error {
	return poll.Until(ctx, poll.Spec{What: what, Interval: interval, Timeout: timeout}, func(context.Context) (bool, error) {
		return ok(), nil
	})
}

// pollValue polls fn until it yields a value. An error from fn stops polling.
func pollValue[T any](ctx *provisioning.Context, what string, interval, timeout time.Duration, fn func() (T, bool, error)) (T, error) {
	return poll.UntilValue(ctx, poll.Spec{What: what, Interval: interval, Timeout: timeout}, func(context.Context) (T, bool, error) {
		return fn()
	})
}
