package config

import "fmt"

// Role is the Kubernetes role of a node pool.
type Role string

const (
	// RoleControlPlane pools run etcd and the Kubernetes control plane.
	RoleControlPlane Role = "control-plane"
	// RoleWorker pools run workloads only.
	RoleWorker Role = "worker"
)

// ParseRole parses a role name as written on the command line.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleControlPlane, RoleWorker:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q, expected %s or %s", s, RoleControlPlane, RoleWorker)
}

// Config is the cluster specification.
type Config struct {
	ClusterName string `yaml:"cluster_name"`

	HCloud     HCloudConfig     `yaml:"hcloud"`
	Talos      TalosConfig      `yaml:"talos"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Cilium     CiliumConfig     `yaml:"cilium"`
	Firewall   FirewallConfig   `yaml:"firewall"`
	State      StateConfig      `yaml:"state"`

	// NodePools is ordered; the first control-plane pool hosts the bootstrap node.
	NodePools []NodePool `yaml:"node_pools"`
}

// HCloudConfig holds Hetzner Cloud settings.
type HCloudConfig struct {
	// Token falls back to the HCLOUD_TOKEN environment variable.
	Token    string        `yaml:"token,omitempty"`
	Location string        `yaml:"location"`
	Network  NetworkConfig `yaml:"network"`
	// Image is the Talos image or snapshot. Empty selects the newest snapshot labelled os=talos.
	Image string `yaml:"image,omitempty"`
}

// NetworkConfig describes the private network.
type NetworkConfig struct {
	CIDR       string `yaml:"cidr"`
	SubnetCIDR string `yaml:"subnet_cidr"`
	Zone       string `yaml:"zone"`
}

// TalosConfig holds Talos Linux settings.
type TalosConfig struct {
	Version           string `yaml:"version"`
	KubernetesVersion string `yaml:"kubernetes_version"`
	// ClusterEndpoint overrides the derived https://<first control plane private IP>:6443.
	ClusterEndpoint string `yaml:"cluster_endpoint,omitempty"`
	// ConfigPatches are merged into both role configurations.
	ConfigPatches []map[string]any `yaml:"config_patches,omitempty"`
}

// KubernetesConfig holds cluster-internal addressing.
type KubernetesConfig struct {
	PodCIDR     string `yaml:"pod_cidr"`
	ServiceCIDR string `yaml:"service_cidr"`
	Domain      string `yaml:"domain,omitempty"`
}

// CiliumConfig controls the network overlay installation.
type CiliumConfig struct {
	Version           string         `yaml:"version"`
	EnableHubble      bool           `yaml:"enable_hubble"`
	EnableIPv6        bool           `yaml:"enable_ipv6"`
	GatewayAPI        *bool          `yaml:"gateway_api,omitempty"`
	GatewayAPIVersion string         `yaml:"gateway_api_version,omitempty"`
	HelmValues        map[string]any `yaml:"helm_values,omitempty"`
}

// GatewayAPIEnabled reports whether Gateway API CRDs are installed before Cilium.
func (c CiliumConfig) GatewayAPIEnabled() bool {
	return c.GatewayAPI == nil || *c.GatewayAPI
}

// FirewallConfig lists sources allowed to reach the Talos and Kubernetes APIs.
type FirewallConfig struct {
	// AllowedSources are CIDRs. Empty means the caller's current public IPv4 /32.
	AllowedSources []string `yaml:"allowed_sources,omitempty"`
}

// StateConfig locates the persisted configuration bundle.
type StateConfig struct {
	Dir    string        `yaml:"dir"`
	Backup *BackupConfig `yaml:"backup,omitempty"`
}

// BackupConfig is an S3-compatible bucket that receives a copy of the bundle.
type BackupConfig struct {
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
}

// NodePool is a named group of identical nodes.
type NodePool struct {
	Name       string            `yaml:"name"`
	Role       Role              `yaml:"role"`
	ServerType string            `yaml:"server_type"`
	Count      int               `yaml:"count"`
	Labels     map[string]string `yaml:"labels,omitempty"`
}

// IsControlPlane reports whether the pool runs the control plane.
func (p NodePool) IsControlPlane() bool {
	return p.Role == RoleControlPlane
}

// Pool returns the pool with the given name.
func (c *Config) Pool(name string) (*NodePool, bool) {
	for i := range c.NodePools {
		if c.NodePools[i].Name == name {
			return &c.NodePools[i], true
		}
	}
	return nil, false
}

// PoolsByRole returns the pools with the given role in declaration order.
func (c *Config) PoolsByRole(role Role) []NodePool {
	var pools []NodePool
	for _, p := range c.NodePools {
		if p.Role == role {
			pools = append(pools, p)
		}
	}
	return pools
}

// ResolvePool returns the pool named name, which must have role. An empty
// name selects the first pool of role.
func (c *Config) ResolvePool(role Role, name string) (*NodePool, error) {
	if name == "" {
		for i := range c.NodePools {
			if c.NodePools[i].Role == role {
				return &c.NodePools[i], nil
			}
		}
		return nil, fmt.Errorf("no %s pool configured", role)
	}
	p, ok := c.Pool(name)
	if !ok {
		return nil, fmt.Errorf("%s pool %q not found", role, name)
	}
	if p.Role != role {
		return nil, fmt.Errorf("pool %q is a %s pool, not %s", name, p.Role, role)
	}
	return p, nil
}

// FirstControlPlanePool returns the pool that hosts the bootstrap node.
func (c *Config) FirstControlPlanePool() (*NodePool, bool) {
	for i := range c.NodePools {
		if c.NodePools[i].IsControlPlane() {
			return &c.NodePools[i], true
		}
	}
	return nil, false
}

// ControlPlaneCount sums the target counts of all control-plane pools.
func (c *Config) ControlPlaneCount() int {
	total := 0
	for _, p := range c.PoolsByRole(RoleControlPlane) {
		total += p.Count
	}
	return total
}

// WorkerCount sums the target counts of all worker pools.
func (c *Config) WorkerCount() int {
	total := 0
	for _, p := range c.PoolsByRole(RoleWorker) {
		total += p.Count
	}
	return total
}
