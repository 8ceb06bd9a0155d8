package hcloud

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// Server is the provider view of a cluster node.
type Server struct {
	ID        int64
	Name      string
	Status    string
	PrivateIP string
	PublicIP  string
	Labels    map[string]string
}

// ServerCreateOpts describes a node server. NetworkID is required; an empty
// PrivateIP lets Hetzner assign one from the subnet.
type ServerCreateOpts struct {
	Name       string
	ServerType string
	Location   string
	Image      string
	UserData   string
	SSHKeyID   int64
	NetworkID  int64
	PrivateIP  string
	Labels     map[string]string
}

// NetworkManager manages the cluster network and its node subnet.
type NetworkManager interface {
	EnsureNetwork(ctx context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error)
	EnsureSubnet(ctx context.Context, network *hcloud.Network, ipRange, zone string) error
	GetNetwork(ctx context.Context, name string) (*hcloud.Network, error)
	DeleteNetwork(ctx context.Context, name string) error
}

// FirewallManager manages the cluster firewall.
type FirewallManager interface {
	EnsureFirewall(ctx context.Context, name string, rules []hcloud.FirewallRule, labels map[string]string, applyTo string) (*hcloud.Firewall, error)
	DeleteFirewall(ctx context.Context, name string) error
}

// SSHKeyManager manages the cluster SSH key.
type SSHKeyManager interface {
	EnsureSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error)
	DeleteSSHKey(ctx context.Context, name string) error
}

// ServerProvisioner manages node servers.
type ServerProvisioner interface {
	CreateServer(ctx context.Context, opts ServerCreateOpts) (*Server, error)
	// CompleteServer finishes a server left behind by an interrupted
	// CreateServer: it attaches it to the network and powers it on as needed.
	CompleteServer(ctx context.Context, name string, networkID int64, privateIP string) (*Server, error)
	GetServer(ctx context.Context, name string) (*Server, error)
	ListServers(ctx context.Context, selector string) ([]*Server, error)
	DeleteServer(ctx context.Context, name string) error
}

// PublicIPResolver reports the public IPv4 address of the machine running oxide.
type PublicIPResolver interface {
	GetPublicIP(ctx context.Context) (string, error)
}

// InfrastructureManager is everything oxide needs from Hetzner Cloud.
type InfrastructureManager interface {
	NetworkManager
	FirewallManager
	SSHKeyManager
	ServerProvisioner
	PublicIPResolver
}

var _ InfrastructureManager = (*RealClient)(nil)
