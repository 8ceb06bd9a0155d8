package hcloud

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/imamik/oxide/internal/metrics"
	"github.com/imamik/oxide/internal/util/retry"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// CreateServer creates a node server. The server is created stopped, attached
// to the cluster network and then powered on, so the node boots with its
// private address already present.
func (c *RealClient) CreateServer(ctx context.Context, opts ServerCreateOpts) (*Server, error) {
	if opts.NetworkID == 0 {
		return nil, fmt.Errorf("server %s: network id is required", opts.Name)
	}
	if opts.PrivateIP != "" && net.ParseIP(opts.PrivateIP) == nil {
		return nil, fmt.Errorf("server %s: invalid private ip %q", opts.Name, opts.PrivateIP)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.ServerCreate)
	defer cancel()

	start := time.Now()
	srv, err := c.createServer(ctx, opts)
	metrics.ObserveHCloudCall("server.create", start, err)
	if err != nil {
		return nil, providerError("create server", opts.Name, err)
	}
	return srv, nil
}

func (c *RealClient) createServer(ctx context.Context, opts ServerCreateOpts) (*Server, error) {
	createOpts, err := c.buildServerCreateOpts(ctx, opts)
	if err != nil {
		return nil, err
	}

	var result hcloud.ServerCreateResult
	err = c.withLockRetry(ctx, func() error {
		res, _, err := c.client.Server.Create(ctx, createOpts)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := waitForActions(ctx, c.client, result.Action); err != nil {
		return nil, fmt.Errorf("failed to wait for server creation: %w", err)
	}

	if err := c.attachServerToNetwork(ctx, result.Server, opts.NetworkID, opts.PrivateIP); err != nil {
		return nil, err
	}
	if err := c.powerOn(ctx, result.Server); err != nil {
		return nil, err
	}

	server, _, err := c.client.Server.GetByID(ctx, result.Server.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read back server: %w", err)
	}
	if server == nil {
		return nil, fmt.Errorf("server %s disappeared after creation", opts.Name)
	}
	return toServer(server, opts.NetworkID), nil
}

// CompleteServer attaches the named server to the network and powers it on
// when an earlier CreateServer stopped before doing so.
func (c *RealClient) CompleteServer(ctx context.Context, name string, networkID int64, privateIP string) (*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.ServerCreate)
	defer cancel()

	start := time.Now()
	srv, err := c.completeServer(ctx, name, networkID, privateIP)
	metrics.ObserveHCloudCall("server.complete", start, err)
	if err != nil {
		return nil, providerError("complete server", name, err)
	}
	return srv, nil
}

func (c *RealClient) completeServer(ctx context.Context, name string, networkID int64, privateIP string) (*Server, error) {
	server, _, err := c.client.Server.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if server == nil {
		return nil, fmt.Errorf("server %s not found", name)
	}

	attach, powerOn := pendingSteps(server, networkID)
	if attach {
		if err := c.attachServerToNetwork(ctx, server, networkID, privateIP); err != nil {
			return nil, err
		}
	}
	if powerOn {
		if err := c.powerOn(ctx, server); err != nil {
			return nil, err
		}
	}
	if !attach && !powerOn {
		return toServer(server, networkID), nil
	}

	server, _, err = c.client.Server.GetByID(ctx, server.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read back server: %w", err)
	}
	if server == nil {
		return nil, fmt.Errorf("server %s disappeared while completing it", name)
	}
	return toServer(server, networkID), nil
}

// GetServer returns the server with the given name, or nil if it does not exist.
func (c *RealClient) GetServer(ctx context.Context, name string) (*Server, error) {
	server, _, err := c.client.Server.Get(ctx, name)
	if err != nil {
		return nil, providerError("get server", name, err)
	}
	if server == nil {
		return nil, nil
	}
	return toServer(server, 0), nil
}

// ListServers returns the servers matching a Hetzner label selector, sorted by name.
func (c *RealClient) ListServers(ctx context.Context, selector string) ([]*Server, error) {
	start := time.Now()
	servers, err := c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
	})
	metrics.ObserveHCloudCall("server.list", start, err)
	if err != nil {
		return nil, providerError("list servers", selector, err)
	}

	out := make([]*Server, 0, len(servers))
	for _, s := range servers {
		out = append(out, toServer(s, 0))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteServer deletes the server with the given name.
func (c *RealClient) DeleteServer(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Server]{
		Name:         name,
		ResourceType: "server",
		Get:          c.client.Server.Get,
		Delete: func(ctx context.Context, server *hcloud.Server) (*hcloud.Response, error) {
			result, resp, err := c.client.Server.DeleteWithResult(ctx, server)
			if err != nil {
				return resp, err
			}
			return resp, waitForActions(ctx, c.client, result.Action)
		},
	}).Execute(ctx, c)
}

// withLockRetry retries op while Hetzner reports the resource as locked.
// Every other error ends the retry loop.
func (c *RealClient) withLockRetry(ctx context.Context, op func() error) error {
	return retry.WithExponentialBackoff(ctx, op,
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay),
		retry.WithRetryIf(isResourceLocked))
}
