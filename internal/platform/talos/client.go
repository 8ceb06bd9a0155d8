package talos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/siderolabs/talos/pkg/machinery/api/common"
	"github.com/siderolabs/talos/pkg/machinery/api/machine"
	"github.com/siderolabs/talos/pkg/machinery/client"
	clientconfig "github.com/siderolabs/talos/pkg/machinery/client/config"
	"github.com/siderolabs/talos/pkg/machinery/constants"
)

// ResetOutcome classifies a graceful reset request.
type ResetOutcome int

const (
	// ResetRejected means the node answered and refused the reset.
	ResetRejected ResetOutcome = iota
	// ResetAcknowledged means the node accepted the reset, or dropped the
	// connection after it was reached, which a node leaving the cluster does.
	ResetAcknowledged
	// ResetUnreachable means no connection to the node could be made.
	ResetUnreachable
)

func (o ResetOutcome) String() string {
	switch o {
	case ResetAcknowledged:
		return "acknowledged"
	case ResetUnreachable:
		return "unreachable"
	default:
		return "rejected"
	}
}

// Target identifies a node by name and management API address.
type Target struct {
	Name    string
	Address string
}

func (t Target) String() string {
	return fmt.Sprintf("%s (%s)", t.Name, t.Address)
}

// NodeAPI is the subset of the Talos management API oxide uses.
type NodeAPI interface {
	// Version is the health probe. Connectivity failures return *UnreachableError.
	Version(ctx context.Context, node Target) (string, error)
	// Bootstrap starts etcd on the first control plane node.
	Bootstrap(ctx context.Context, node Target) error
	// Reset asks the node to leave the cluster gracefully without rebooting.
	Reset(ctx context.Context, node Target) (ResetOutcome, error)
	// Kubeconfig returns admin credentials for the cluster API.
	Kubeconfig(ctx context.Context, node Target) ([]byte, error)
	// Logs copies service logs of the node to w.
	Logs(ctx context.Context, node Target, service string, tailLines int32, w io.Writer) error
}

// Client implements NodeAPI with mutual TLS credentials from a talosconfig.
type Client struct {
	config      *clientconfig.Config
	callTimeout time.Duration
}

var _ NodeAPI = (*Client)(nil)

// NewClient parses talosconfig and returns a Client whose unary calls are
// bounded by callTimeout.
func NewClient(talosconfig []byte, callTimeout time.Duration) (*Client, error) {
	cfg, err := clientconfig.FromBytes(talosconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse talosconfig: %w", err)
	}
	return &Client{config: cfg, callTimeout: callTimeout}, nil
}

func (c *Client) connect(ctx context.Context, node Target) (*client.Client, error) {
	tc, err := client.New(ctx,
		client.WithConfig(c.config),
		client.WithEndpoints(node.Address),
	)
	if err != nil {
		return nil, &UnreachableError{Node: node.Name, Address: node.Address, Err: err, Hint: FirewallHint}
	}
	return tc, nil
}

func (c *Client) withClient(ctx context.Context, node Target, fn func(ctx context.Context, tc *client.Client) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	tc, err := c.connect(ctx, node)
	if err != nil {
		return err
	}
	defer func() {
		_ = tc.Close()
	}()
	return fn(ctx, tc)
}

// Version returns the Talos version tag of node.
func (c *Client) Version(ctx context.Context, node Target) (string, error) {
	var tag string
	err := c.withClient(ctx, node, func(ctx context.Context, tc *client.Client) error {
		resp, err := tc.Version(ctx)
		if err != nil {
			return err
		}
		if len(resp.GetMessages()) > 0 {
			tag = resp.GetMessages()[0].GetVersion().GetTag()
		}
		return nil
	})
	if err != nil {
		return "", c.classify(node, "version", err)
	}
	return tag, nil
}

// Bootstrap issues the one-time etcd bootstrap on node. A node that was
// bootstrapped before returns an error wrapping ErrAlreadyBootstrapped.
func (c *Client) Bootstrap(ctx context.Context, node Target) error {
	err := c.withClient(ctx, node, func(ctx context.Context, tc *client.Client) error {
		return tc.Bootstrap(ctx, &machine.BootstrapRequest{})
	})
	return c.classify(node, "bootstrap", bootstrapError(err))
}

// Reset requests a graceful, non-rebooting reset of node. A node that cannot
// be reached before the request is sent yields ResetUnreachable.
func (c *Client) Reset(ctx context.Context, node Target) (ResetOutcome, error) {
	var versionErr, resetErr error
	err := c.withClient(ctx, node, func(ctx context.Context, tc *client.Client) error {
		if _, versionErr = tc.Version(ctx); versionErr != nil {
			return nil
		}
		resetErr = tc.ResetGeneric(ctx, &machine.ResetRequest{
			Graceful: true,
			Reboot:   false,
		})
		return nil
	})
	if err != nil {
		return ResetUnreachable, c.classify(node, "reset", err)
	}

	outcome := resetOutcome(versionErr, resetErr)
	switch outcome {
	case ResetAcknowledged:
		return outcome, nil
	case ResetUnreachable:
		return outcome, &UnreachableError{Node: node.Name, Address: node.Address, Err: versionErr, Hint: FirewallHint}
	default:
		cause := resetErr
		if cause == nil {
			cause = versionErr
		}
		return outcome, fmt.Errorf("reset of %s rejected: %w", node, cause)
	}
}

// Kubeconfig fetches the admin kubeconfig from a control plane node.
func (c *Client) Kubeconfig(ctx context.Context, node Target) ([]byte, error) {
	var data []byte
	err := c.withClient(ctx, node, func(ctx context.Context, tc *client.Client) error {
		var err error
		data, err = tc.Kubeconfig(ctx)
		return err
	})
	if err != nil {
		return nil, c.classify(node, "kubeconfig", err)
	}
	return data, nil
}

// Logs streams the last tailLines lines of a system service. Streams are not
// bounded by the call timeout.
func (c *Client) Logs(ctx context.Context, node Target, service string, tailLines int32, w io.Writer) error {
	tc, err := c.connect(ctx, node)
	if err != nil {
		return err
	}
	defer func() {
		_ = tc.Close()
	}()

	stream, err := tc.Logs(ctx, constants.SystemContainerdNamespace, common.ContainerDriver_CONTAINERD, service, false, tailLines)
	if err != nil {
		return c.classify(node, "logs", err)
	}
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return c.classify(node, "logs", err)
		}
		if _, err := w.Write(msg.GetBytes()); err != nil {
			return err
		}
	}
}

func (c *Client) classify(node Target, op string, err error) error {
	if err == nil {
		return nil
	}
	var unreachable *UnreachableError
	if errors.As(err, &unreachable) {
		return err
	}
	if isConnectivityError(err) {
		return &UnreachableError{Node: node.Name, Address: node.Address, Err: err, Hint: FirewallHint}
	}
	return fmt.Errorf("talos %s on %s: %w", op, node, err)
}
