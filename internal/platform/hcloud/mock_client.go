package hcloud

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// MockClient is an InfrastructureManager for tests. Each method calls the
// matching Func field when set and otherwise returns a benign default.
type MockClient struct {
	EnsureNetworkFunc  func(ctx context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error)
	EnsureSubnetFunc   func(ctx context.Context, network *hcloud.Network, ipRange, zone string) error
	GetNetworkFunc     func(ctx context.Context, name string) (*hcloud.Network, error)
	DeleteNetworkFunc  func(ctx context.Context, name string) error
	EnsureFirewallFunc func(ctx context.Context, name string, rules []hcloud.FirewallRule, labels map[string]string, applyTo string) (*hcloud.Firewall, error)
	DeleteFirewallFunc func(ctx context.Context, name string) error
	EnsureSSHKeyFunc   func(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error)
	DeleteSSHKeyFunc   func(ctx context.Context, name string) error
	CreateServerFunc   func(ctx context.Context, opts ServerCreateOpts) (*Server, error)
	GetServerFunc      func(ctx context.Context, name string) (*Server, error)
	CompleteServerFunc func(ctx context.Context, name string, networkID int64, privateIP string) (*Server, error)
	ListServersFunc    func(ctx context.Context, selector string) ([]*Server, error)
	DeleteServerFunc   func(ctx context.Context, name string) error
	GetPublicIPFunc    func(ctx context.Context) (string, error)
}

var _ InfrastructureManager = (*MockClient)(nil)

// EnsureNetwork calls EnsureNetworkFunc or returns network 1.
func (m *MockClient) EnsureNetwork(ctx context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error) {
	if m.EnsureNetworkFunc != nil {
		return m.EnsureNetworkFunc(ctx, name, ipRange, labels)
	}
	return &hcloud.Network{ID: 1, Name: name}, nil
}

// EnsureSubnet calls EnsureSubnetFunc or succeeds.
func (m *MockClient) EnsureSubnet(ctx context.Context, network *hcloud.Network, ipRange, zone string) error {
	if m.EnsureSubnetFunc != nil {
		return m.EnsureSubnetFunc(ctx, network, ipRange, zone)
	}
	return nil
}

// GetNetwork calls GetNetworkFunc or returns nil.
func (m *MockClient) GetNetwork(ctx context.Context, name string) (*hcloud.Network, error) {
	if m.GetNetworkFunc != nil {
		return m.GetNetworkFunc(ctx, name)
	}
	return nil, nil
}

// DeleteNetwork calls DeleteNetworkFunc or succeeds.
func (m *MockClient) DeleteNetwork(ctx context.Context, name string) error {
	if m.DeleteNetworkFunc != nil {
		return m.DeleteNetworkFunc(ctx, name)
	}
	return nil
}

// EnsureFirewall calls EnsureFirewallFunc or returns firewall 2.
func (m *MockClient) EnsureFirewall(ctx context.Context, name string, rules []hcloud.FirewallRule, labels map[string]string, applyTo string) (*hcloud.Firewall, error) {
	if m.EnsureFirewallFunc != nil {
		return m.EnsureFirewallFunc(ctx, name, rules, labels, applyTo)
	}
	return &hcloud.Firewall{ID: 2, Name: name}, nil
}

// DeleteFirewall calls DeleteFirewallFunc or succeeds.
func (m *MockClient) DeleteFirewall(ctx context.Context, name string) error {
	if m.DeleteFirewallFunc != nil {
		return m.DeleteFirewallFunc(ctx, name)
	}
	return nil
}

// EnsureSSHKey calls EnsureSSHKeyFunc or returns key 3.
func (m *MockClient) EnsureSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error) {
	if m.EnsureSSHKeyFunc != nil {
		return m.EnsureSSHKeyFunc(ctx, name, publicKey, labels)
	}
	return &hcloud.SSHKey{ID: 3, Name: name}, nil
}

// DeleteSSHKey calls DeleteSSHKeyFunc or succeeds.
func (m *MockClient) DeleteSSHKey(ctx context.Context, name string) error {
	if m.DeleteSSHKeyFunc != nil {
		return m.DeleteSSHKeyFunc(ctx, name)
	}
	return nil
}

// CreateServer calls CreateServerFunc or returns a server named after opts.
func (m *MockClient) CreateServer(ctx context.Context, opts ServerCreateOpts) (*Server, error) {
	if m.CreateServerFunc != nil {
		return m.CreateServerFunc(ctx, opts)
	}
	return &Server{ID: 100, Name: opts.Name, Status: "running", PrivateIP: opts.PrivateIP, PublicIP: "203.0.113.10", Labels: opts.Labels}, nil
}

// CompleteServer calls CompleteServerFunc or returns a running server.
func (m *MockClient) CompleteServer(ctx context.Context, name string, networkID int64, privateIP string) (*Server, error) {
	if m.CompleteServerFunc != nil {
		return m.CompleteServerFunc(ctx, name, networkID, privateIP)
	}
	return &Server{ID: 100, Name: name, Status: "running", PrivateIP: privateIP, PublicIP: "203.0.113.10"}, nil
}

// GetServer calls GetServerFunc or returns nil.
func (m *MockClient) GetServer(ctx context.Context, name string) (*Server, error) {
	if m.GetServerFunc != nil {
		return m.GetServerFunc(ctx, name)
	}
	return nil, nil
}

// ListServers calls ListServersFunc or returns no servers.
func (m *MockClient) ListServers(ctx context.Context, selector string) ([]*Server, error) {
	if m.ListServersFunc != nil {
		return m.ListServersFunc(ctx, selector)
	}
	return nil, nil
}

// DeleteServer calls DeleteServerFunc or succeeds.
func (m *MockClient) DeleteServer(ctx context.Context, name string) error {
	if m.DeleteServerFunc != nil {
		return m.DeleteServerFunc(ctx, name)
	}
	return nil
}

// GetPublicIP calls GetPublicIPFunc or returns 198.51.100.1.
func (m *MockClient) GetPublicIP(ctx context.Context) (string, error) {
	if m.GetPublicIPFunc != nil {
		return m.GetPublicIPFunc(ctx)
	}
	return "198.51.100.1", nil
}
