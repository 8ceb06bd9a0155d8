package infrastructure

import (
	"fmt"
	"strconv"
	"time"

	"github.com/imamik/oxide/internal/platform/hcloud"
	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/util/keygen"
	"github.com/imamik/oxide/internal/util/labels"
	"github.com/imamik/oxide/internal/util/naming"
)

const phase = "infrastructure"

// Resources are the cluster-wide resources servers are attached to.
type Resources struct {
	NetworkID  int64
	FirewallID int64
	SSHKeyID   int64
	// ServerIDs maps server name to id. Filled by whoever creates servers.
	ServerIDs map[string]int64
}

// Provisioner ensures network, subnet, firewall and SSH key, in that order.
type Provisioner struct {
	// generateKey is swapped in tests.
	generateKey func(comment string) (*keygen.KeyPair, error)
}

// NewProvisioner creates a new infrastructure provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{generateKey: keygen.GenerateEd25519KeyPair}
}

// Name returns the phase name used in logs.
func (p *Provisioner) Name() string {
	return phase
}

// Provision ensures every cluster-wide resource and returns their ids.
// Existing resources are reused, so running it again is safe.
func (p *Provisioner) Provision(ctx *provisioning.Context) (*Resources, error) {
	start := time.Now()
	provisioning.LogPhaseStart(ctx.Observer, phase)

	res, err := p.provision(ctx)
	if err != nil {
		provisioning.LogPhaseFailed(ctx.Observer, phase, err)
		return nil, err
	}

	provisioning.LogPhaseComplete(ctx.Observer, phase, time.Since(start))
	return res, nil
}

func (p *Provisioner) provision(ctx *provisioning.Context) (*Resources, error) {
	res := &Resources{ServerIDs: map[string]int64{}}

	networkID, err := p.ProvisionNetwork(ctx)
	if err != nil {
		return nil, err
	}
	res.NetworkID = networkID

	if res.FirewallID, err = p.ProvisionFirewall(ctx); err != nil {
		return nil, err
	}

	if res.SSHKeyID, err = p.ProvisionSSHKey(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func clusterLabels(ctx *provisioning.Context) map[string]string {
	return labels.NewLabelBuilder(ctx.Config.ClusterName).Build()
}

// ProvisionNetwork ensures the private network and the node subnet.
func (p *Provisioner) ProvisionNetwork(ctx *provisioning.Context) (int64, error) {
	name := naming.Network(ctx.Config.ClusterName)
	netCfg := ctx.Config.HCloud.Network
	provisioning.LogResourceCreating(ctx.Observer, phase, "network", name)

	network, err := ctx.Infra.EnsureNetwork(ctx, name, netCfg.CIDR, clusterLabels(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to ensure network: %w", err)
	}
	if err := ctx.Infra.EnsureSubnet(ctx, network, netCfg.SubnetCIDR, netCfg.Zone); err != nil {
		return 0, fmt.Errorf("failed to ensure subnet %s: %w", netCfg.SubnetCIDR, err)
	}

	provisioning.LogResourceCreated(ctx.Observer, phase, "network", name, strconv.FormatInt(network.ID, 10))
	return network.ID, nil
}

// FirewallSources returns the configured allow-list, or the caller's current
// public IPv4 as a /32 when none is configured.
func FirewallSources(ctx *provisioning.Context) ([]string, error) {
	if sources := ctx.Config.Firewall.AllowedSources; len(sources) > 0 {
		return sources, nil
	}
	ip, err := ctx.Infra.GetPublicIP(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to determine current public IP for the firewall allow-list: %w", err)
	}
	ctx.Observer.Printf("[%s] Allowing API access from current public IP %s", phase, ip)
	return []string{ip + "/32"}, nil
}

// ProvisionFirewall ensures the cluster firewall. It is applied by label
// selector, so servers created later are covered without another call.
func (p *Provisioner) ProvisionFirewall(ctx *provisioning.Context) (int64, error) {
	name := naming.Firewall(ctx.Config.ClusterName)

	sources, err := FirewallSources(ctx)
	if err != nil {
		return 0, err
	}
	rules, err := hcloud.ClusterFirewallRules(sources)
	if err != nil {
		return 0, err
	}

	provisioning.LogResourceCreating(ctx.Observer, phase, "firewall", name)
	fw, err := ctx.Infra.EnsureFirewall(ctx, name, rules, clusterLabels(ctx), labels.SelectorForCluster(ctx.Config.ClusterName))
	if err != nil {
		return 0, fmt.Errorf("failed to ensure firewall: %w", err)
	}
	provisioning.LogResourceCreated(ctx.Observer, phase, "firewall", name, strconv.FormatInt(fw.ID, 10))
	return fw.ID, nil
}

// ProvisionSSHKey uploads a throwaway public key so Hetzner does not set
// and email a root password. Talos never uses it.
func (p *Provisioner) ProvisionSSHKey(ctx *provisioning.Context) (int64, error) {
	name := naming.SSHKey(ctx.Config.ClusterName)

	pair, err := p.generateKey(name)
	if err != nil {
		return 0, fmt.Errorf("failed to generate ssh key: %w", err)
	}

	key, err := ctx.Infra.EnsureSSHKey(ctx, name, string(pair.PublicKey), clusterLabels(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to ensure ssh key: %w", err)
	}
	provisioning.LogResourceCreated(ctx.Observer, phase, "ssh key", name, strconv.FormatInt(key.ID, 10))
	return key.ID, nil
}
