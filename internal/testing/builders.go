package testing

import (
	"maps"

	"github.com/stretchr/testify/require"

	"github.com/imamik/oxide/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder starts from the example configuration with a single
// control plane, no workers and a test token.
func NewConfigBuilder() *ConfigBuilder {
	opts := config.DefaultExampleOptions()
	opts.ClusterName = "test-cluster"
	opts.ControlPlanes = 1
	opts.Workers = 0
	cfg := config.Example(opts)
	cfg.HCloud.Token = "test-token"
	cfg.Cilium.EnableHubble = false
	return &ConfigBuilder{cfg: *cfg}
}

// WithClusterName sets the cluster name.
func (b *ConfigBuilder) WithClusterName(name string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.ClusterName = name
	return nb
}

// WithLocation sets the location and its network zone.
func (b *ConfigBuilder) WithLocation(location string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.HCloud.Location = location
	if zone, ok := config.ZoneForLocation(location); ok {
		nb.cfg.HCloud.Network.Zone = zone
	}
	return nb
}

// WithPool adds a pool, or replaces the count and role of an existing one.
func (b *ConfigBuilder) WithPool(name string, role config.Role, count int) *ConfigBuilder {
	nb := b.clone()
	if p, ok := nb.cfg.Pool(name); ok {
		p.Role = role
		p.Count = count
		return nb
	}
	nb.cfg.NodePools = append(nb.cfg.NodePools, config.NodePool{
		Name:       name,
		Role:       role,
		ServerType: config.DefaultServerType,
		Count:      count,
	})
	return nb
}

// WithControlPlanes sets the size of the default control-plane pool.
func (b *ConfigBuilder) WithControlPlanes(count int) *ConfigBuilder {
	return b.WithPool("control-plane", config.RoleControlPlane, count)
}

// WithAllowedSources sets the firewall allow-list.
func (b *ConfigBuilder) WithAllowedSources(sources ...string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Firewall.AllowedSources = append([]string(nil), sources...)
	return nb
}

// WithStateDir sets the state directory.
func (b *ConfigBuilder) WithStateDir(dir string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.State.Dir = dir
	return nb
}

// Raw returns the configuration without validating it.
func (b *ConfigBuilder) Raw() *config.Config {
	return &b.clone().cfg
}

// Build validates the configuration and fails the test if it is invalid.
func (b *ConfigBuilder) Build(t TB) *config.Config {
	t.Helper()
	res, err := config.Validate(b.Raw())
	require.NoError(t, err)
	return res.Config
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	c := b.cfg
	c.NodePools = make([]config.NodePool, len(b.cfg.NodePools))
	for i, p := range b.cfg.NodePools {
		p.Labels = maps.Clone(p.Labels)
		c.NodePools[i] = p
	}
	c.Firewall.AllowedSources = append([]string(nil), b.cfg.Firewall.AllowedSources...)
	return &ConfigBuilder{cfg: c}
}
