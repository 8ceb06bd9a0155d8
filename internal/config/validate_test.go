package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Example(DefaultExampleOptions())
	cfg.HCloud.Token = "test-token"
	return cfg
}

func TestValidate_AcceptsExample(t *testing.T) {
	t.Parallel()
	res, err := Validate(validConfig())
	require.NoError(t, err)
	assert.Equal(t, "oxide", res.Config.ClusterName)
	assert.Empty(t, res.Warnings)
}

func TestValidate_AppliesDefaultsToCopy(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		ClusterName: "demo",
		HCloud:      HCloudConfig{Token: "t", Location: "hel1"},
		NodePools:   []NodePool{{Name: "cp", Role: RoleControlPlane, Count: 1}},
	}
	res, err := Validate(cfg)
	require.NoError(t, err)

	assert.Equal(t, "eu-central", res.Config.HCloud.Network.Zone)
	assert.Equal(t, DefaultPodCIDR, res.Config.Kubernetes.PodCIDR)
	assert.Equal(t, DefaultServerType, res.Config.NodePools[0].ServerType)
	assert.Empty(t, cfg.Kubernetes.PodCIDR, "input must not be mutated")
	assert.Empty(t, cfg.NodePools[0].ServerType, "input pools must not be mutated")
}

func TestValidate_CIDRPairs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
		wantMsg   string
	}{
		{
			name:      "pod overlaps network",
			mutate:    func(c *Config) { c.Kubernetes.PodCIDR = "10.0.128.0/17" },
			wantField: "kubernetes.pod_cidr",
			wantMsg:   "hcloud.network.cidr",
		},
		{
			name:      "service overlaps network",
			mutate:    func(c *Config) { c.Kubernetes.ServiceCIDR = "10.0.0.0/8" },
			wantField: "kubernetes.service_cidr",
			wantMsg:   "hcloud.network.cidr",
		},
		{
			name:      "pod overlaps service",
			mutate:    func(c *Config) { c.Kubernetes.PodCIDR = "10.100.0.0/16" },
			wantField: "kubernetes.service_cidr",
			wantMsg:   "kubernetes.pod_cidr",
		},
		{
			name:      "subnet outside network",
			mutate:    func(c *Config) { c.HCloud.Network.SubnetCIDR = "192.168.0.0/24" },
			wantField: "hcloud.network.subnet_cidr",
			wantMsg:   "not contained",
		},
		{
			name:      "subnet larger than network",
			mutate:    func(c *Config) { c.HCloud.Network.SubnetCIDR = "10.0.0.0/8" },
			wantField: "hcloud.network.subnet_cidr",
			wantMsg:   "not contained",
		},
		{
			name:      "unparsable",
			mutate:    func(c *Config) { c.Kubernetes.PodCIDR = "10.244.0.0/33" },
			wantField: "kubernetes.pod_cidr",
			wantMsg:   "not a valid CIDR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			require.True(t, ve.Has(tt.wantField), "violations: %v", ve.Violations)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_DisjointRangesAccepted(t *testing.T) {
	t.Parallel()
	tests := []struct{ network, subnet, pod, service string }{
		{"10.0.0.0/16", "10.0.1.0/24", "10.244.0.0/16", "10.96.0.0/12"},
		{"172.16.0.0/12", "172.16.0.0/16", "10.0.0.0/16", "192.168.0.0/16"},
		{"10.10.0.0/16", "10.10.10.0/24", "10.20.0.0/16", "10.30.0.0/16"},
	}
	for _, tt := range tests {
		cfg := validConfig()
		cfg.HCloud.Network.CIDR = tt.network
		cfg.HCloud.Network.SubnetCIDR = tt.subnet
		cfg.Kubernetes.PodCIDR = tt.pod
		cfg.Kubernetes.ServiceCIDR = tt.service
		_, err := Validate(cfg)
		assert.NoError(t, err, "%+v", tt)
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	cfg := &Config{
		HCloud: HCloudConfig{Location: "mars1", Network: NetworkConfig{Zone: "eu-central"}},
		Kubernetes: KubernetesConfig{
			PodCIDR: "10.0.0.0/8",
		},
		NodePools: []NodePool{
			{Name: "workers", Role: RoleWorker, Count: 0},
			{Name: "workers", Role: "gpu", Count: 1},
		},
	}
	t.Setenv("HCLOUD_TOKEN", "")

	_, err := Validate(cfg)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	for _, field := range []string{
		"cluster_name",
		"hcloud.token",
		"hcloud.location",
		"kubernetes.pod_cidr",
		"node_pools[0].count",
		"node_pools[1].name",
		"node_pools[1].role",
		"node_pools",
	} {
		assert.True(t, ve.Has(field), "expected violation for %s, got %v", field, ve.Violations)
	}
}

func TestValidate_LocationZonePairing(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.HCloud.Location = "ash"
	cfg.HCloud.Network.Zone = "eu-central"

	_, err := Validate(cfg)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("hcloud.network.zone"))
	assert.Contains(t, err.Error(), "us-east")
}

func TestValidate_EvenControlPlaneWarns(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.NodePools[0].Count = 2

	res, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "even")
}

func TestValidate_BackupRequiresBucket(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.State.Backup = &BackupConfig{}

	_, err := Validate(cfg)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("state.backup.bucket"))
	assert.True(t, ve.Has("state.backup.endpoint"))
}

func TestValidate_FirewallSources(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Firewall.AllowedSources = []string{"203.0.113.7/32", "not-a-cidr"}

	_, err := Validate(cfg)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("firewall.allowed_sources"))
}
