// Package retry retries operations with exponential backoff.
//
// [WithExponentialBackoff] is used around Hetzner Cloud calls that can fail
// with transient conflicts (locked resources, rate limits). Errors wrapped
// with [Fatal] stop the loop immediately, and [WithRetryIf] narrows which
// errors are retried at all.
package retry
