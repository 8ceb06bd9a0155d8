package infrastructure

import (
	"context"
	"errors"
	"net"
	"testing"

	hcloudapi "github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/platform/hcloud"
	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/util/keygen"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	opts := config.DefaultExampleOptions()
	opts.ClusterName = "demo"
	cfg := config.Example(opts)
	cfg.HCloud.Token = "test-token"
	res, err := config.Validate(cfg)
	require.NoError(t, err)
	return res.Config
}

func createTestContext(t *testing.T, infra *hcloud.MockClient, cfg *config.Config) (*provisioning.Context, *provisioning.RecordingObserver) {
	t.Helper()
	rec := provisioning.NewRecordingObserver()
	ctx := provisioning.NewContext(context.Background(), cfg, infra, rec)
	ctx.Timeouts = config.TestTimeouts()
	return ctx, rec
}

func TestProvision(t *testing.T) {
	t.Parallel()

	var calls []string
	var gotSubnet, gotZone, gotApplyTo, gotKey string
	var gotRules []hcloudapi.FirewallRule
	infra := &hcloud.MockClient{
		EnsureNetworkFunc: func(_ context.Context, name, ipRange string, labels map[string]string) (*hcloudapi.Network, error) {
			calls = append(calls, "network")
			assert.Equal(t, "demo", name)
			assert.Equal(t, "10.0.0.0/16", ipRange)
			assert.Equal(t, "demo", labels["oxide.io/cluster"])
			assert.Equal(t, "oxide", labels["oxide.io/managed-by"])
			return &hcloudapi.Network{ID: 11, Name: name}, nil
		},
		EnsureSubnetFunc: func(_ context.Context, network *hcloudapi.Network, ipRange, zone string) error {
			calls = append(calls, "subnet")
			assert.Equal(t, int64(11), network.ID)
			gotSubnet, gotZone = ipRange, zone
			return nil
		},
		GetPublicIPFunc: func(context.Context) (string, error) {
			calls = append(calls, "public-ip")
			return "198.51.100.7", nil
		},
		EnsureFirewallFunc: func(_ context.Context, name string, rules []hcloudapi.FirewallRule, _ map[string]string, applyTo string) (*hcloudapi.Firewall, error) {
			calls = append(calls, "firewall")
			gotRules, gotApplyTo = rules, applyTo
			return &hcloudapi.Firewall{ID: 22, Name: name}, nil
		},
		EnsureSSHKeyFunc: func(_ context.Context, name, publicKey string, _ map[string]string) (*hcloudapi.SSHKey, error) {
			calls = append(calls, "ssh-key")
			assert.Equal(t, "demo-key", name)
			gotKey = publicKey
			return &hcloudapi.SSHKey{ID: 33, Name: name}, nil
		},
	}

	ctx, rec := createTestContext(t, infra, testConfig(t))
	res, err := NewProvisioner().Provision(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"network", "subnet", "public-ip", "firewall", "ssh-key"}, calls)
	assert.Equal(t, int64(11), res.NetworkID)
	assert.Equal(t, int64(22), res.FirewallID)
	assert.Equal(t, int64(33), res.SSHKeyID)
	assert.NotNil(t, res.ServerIDs)

	assert.Equal(t, "10.0.1.0/24", gotSubnet)
	assert.Equal(t, "eu-central", gotZone)
	assert.Equal(t, "oxide.io/cluster=demo", gotApplyTo)
	assert.Contains(t, gotKey, "ssh-ed25519 ")

	require.Len(t, gotRules, 3)
	_, want, _ := net.ParseCIDR("198.51.100.7/32")
	assert.Equal(t, []net.IPNet{*want}, gotRules[0].SourceIPs)

	assert.Len(t, rec.EventsOfType(provisioning.EventPhaseCompleted), 1)
}

func TestProvision_ConfiguredSourcesSkipPublicIPLookup(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Firewall.AllowedSources = []string{"203.0.113.0/24", "2001:db8::/32"}

	infra := &hcloud.MockClient{
		GetPublicIPFunc: func(context.Context) (string, error) {
			t.Fatal("public IP must not be looked up when sources are configured")
			return "", nil
		},
	}
	ctx, _ := createTestContext(t, infra, cfg)

	sources, err := FirewallSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg.Firewall.AllowedSources, sources)

	_, err = NewProvisioner().Provision(ctx)
	require.NoError(t, err)
}

func TestProvision_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		infra     func(calls *[]string) *hcloud.MockClient
		wantErr   string
		wantCalls []string
	}{
		{
			name: "network",
			infra: func(calls *[]string) *hcloud.MockClient {
				return &hcloud.MockClient{
					EnsureNetworkFunc: func(context.Context, string, string, map[string]string) (*hcloudapi.Network, error) {
						*calls = append(*calls, "network")
						return nil, errors.New("invalid_input")
					},
					EnsureFirewallFunc: func(context.Context, string, []hcloudapi.FirewallRule, map[string]string, string) (*hcloudapi.Firewall, error) {
						*calls = append(*calls, "firewall")
						return &hcloudapi.Firewall{ID: 1}, nil
					},
				}
			},
			wantErr:   "failed to ensure network",
			wantCalls: []string{"network"},
		},
		{
			name: "public ip",
			infra: func(calls *[]string) *hcloud.MockClient {
				return &hcloud.MockClient{
					GetPublicIPFunc: func(context.Context) (string, error) {
						*calls = append(*calls, "public-ip")
						return "", errors.New("timeout")
					},
					EnsureFirewallFunc: func(context.Context, string, []hcloudapi.FirewallRule, map[string]string, string) (*hcloudapi.Firewall, error) {
						*calls = append(*calls, "firewall")
						return &hcloudapi.Firewall{ID: 1}, nil
					},
				}
			},
			wantErr:   "current public IP",
			wantCalls: []string{"public-ip"},
		},
		{
			name: "ssh key",
			infra: func(calls *[]string) *hcloud.MockClient {
				return &hcloud.MockClient{
					EnsureSSHKeyFunc: func(context.Context, string, string, map[string]string) (*hcloudapi.SSHKey, error) {
						*calls = append(*calls, "ssh-key")
						return nil, errors.New("uniqueness_error")
					},
				}
			},
			wantErr:   "failed to ensure ssh key",
			wantCalls: []string{"ssh-key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var calls []string
			ctx, rec := createTestContext(t, tt.infra(&calls), testConfig(t))

			_, err := NewProvisioner().Provision(ctx)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.wantCalls, calls)
			assert.Len(t, rec.EventsOfType(provisioning.EventPhaseFailed), 1)
		})
	}
}

func TestProvisionSSHKey_GenerationError(t *testing.T) {
	t.Parallel()

	p := NewProvisioner()
	p.generateKey = func(string) (*keygen.KeyPair, error) { return nil, errors.New("entropy") }

	ctx, _ := createTestContext(t, &hcloud.MockClient{}, testConfig(t))
	_, err := p.ProvisionSSHKey(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy")
}

func TestProvisionFirewall_InvalidSource(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Firewall.AllowedSources = []string{"not-a-cidr"}
	ctx, _ := createTestContext(t, &hcloud.MockClient{}, cfg)

	_, err := NewProvisioner().ProvisionFirewall(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-cidr")
}
