package talos

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirewallHint is attached to connectivity failures against the management API.
const FirewallHint = "check firewall allow-list for your current address"

// ErrAlreadyBootstrapped means etcd was bootstrapped on the node before.
var ErrAlreadyBootstrapped = errors.New("etcd is already bootstrapped")

// UnreachableError means the management API of a node could not be reached.
type UnreachableError struct {
	Node    string
	Address string
	Err     error
	Hint    string
}

func (e *UnreachableError) Error() string {
	msg := fmt.Sprintf("talos API of %s (%s) unreachable: %v", e.Node, e.Address, e.Err)
	if e.Hint != "" {
		msg += "; " + e.Hint
	}
	return msg
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// isConnectivityError reports whether err means no answer came back from the
// node, as opposed to the node answering with an error.
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}

// resetOutcome maps the version check sent ahead of a reset and the reset
// call itself to an outcome. A dropped connection after the check answered
// is a node leaving the cluster.
func resetOutcome(versionErr, resetErr error) ResetOutcome {
	switch {
	case versionErr != nil && isConnectivityError(versionErr):
		return ResetUnreachable
	case versionErr != nil:
		return ResetRejected
	case resetErr == nil, isConnectivityError(resetErr):
		return ResetAcknowledged
	default:
		return ResetRejected
	}
}

func bootstrapError(err error) error {
	if err != nil && status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("%w: %v", ErrAlreadyBootstrapped, err)
	}
	return err
}
