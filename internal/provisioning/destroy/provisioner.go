package destroy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/util/labels"
	"github.com/imamik/oxide/internal/util/naming"
)

const phase = "destroy"

// Provisioner handles cluster destruction.
type Provisioner struct{}

// NewProvisioner creates a new destroy provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name returns the phase name used in logs.
func (p *Provisioner) Name() string {
	return phase
}

// Provision destroys every server of the cluster and the cluster-wide
// resources. Missing resources are not an error, so it can be repeated.
// Cluster-wide resources are kept when any server could not be deleted,
// since the network cannot be removed while servers are attached.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	start := time.Now()
	provisioning.LogPhaseStart(ctx.Observer, phase)

	if err := p.provision(ctx); err != nil {
		provisioning.LogPhaseFailed(ctx.Observer, phase, err)
		return err
	}
	provisioning.LogPhaseComplete(ctx.Observer, phase, time.Since(start))
	return nil
}

func (p *Provisioner) provision(ctx *provisioning.Context) error {
	cluster := ctx.Config.ClusterName
	if err := p.DeleteServers(ctx); err != nil {
		return err
	}

	steps := []struct {
		kind string
		name string
		fn   func() error
	}{
		{"firewall", naming.Firewall(cluster), func() error { return ctx.Infra.DeleteFirewall(ctx, naming.Firewall(cluster)) }},
		{"network", naming.Network(cluster), func() error { return ctx.Infra.DeleteNetwork(ctx, naming.Network(cluster)) }},
		{"ssh key", naming.SSHKey(cluster), func() error { return ctx.Infra.DeleteSSHKey(ctx, naming.SSHKey(cluster)) }},
	}
	for _, s := range steps {
		provisioning.LogResourceDeleting(ctx.Observer, phase, s.kind, s.name)
		if err := s.fn(); err != nil {
			return fmt.Errorf("failed to delete %s %s: %w", s.kind, s.name, err)
		}
		provisioning.LogResourceDeleted(ctx.Observer, phase, s.kind, s.name)
	}
	return nil
}

// DeleteServers deletes every server labelled with the cluster name with
// bounded concurrency. All deletions are attempted; failures are joined.
func (p *Provisioner) DeleteServers(ctx *provisioning.Context) error {
	servers, err := ctx.Infra.ListServers(ctx, labels.SelectorForCluster(ctx.Config.ClusterName))
	if err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}
	if len(servers) == 0 {
		ctx.Observer.Printf("[%s] No servers found", phase)
		return nil
	}
	ctx.Observer.Printf("[%s] Deleting %d servers", phase, len(servers))

	var g errgroup.Group
	g.SetLimit(max(ctx.Timeouts.ScaleConcurrency, 1))

	var mu sync.Mutex
	var errs []error
	for _, srv := range servers {
		g.Go(func() error {
			provisioning.LogResourceDeleting(ctx.Observer, phase, "server", srv.Name)
			if err := ctx.Infra.DeleteServer(ctx, srv.Name); err != nil {
				provisioning.LogResourceFailed(ctx.Observer, phase, "server", srv.Name, err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("failed to delete server %s: %w", srv.Name, err))
				mu.Unlock()
				return nil
			}
			provisioning.LogResourceDeleted(ctx.Observer, phase, "server", srv.Name)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
