package config

import (
	"os"
)

// Pinned defaults. These versions are tested together.
const (
	DefaultTalosVersion      = "v1.12.4"
	DefaultKubernetesVersion = "1.34.1"
	DefaultCiliumVersion     = "1.18.5"
	DefaultGatewayAPIVersion = "v1.3.0"

	DefaultLocation    = "nbg1"
	DefaultNetworkCIDR = "10.0.0.0/16"
	DefaultSubnetCIDR  = "10.0.1.0/24"
	DefaultPodCIDR     = "10.244.0.0/16"
	DefaultServiceCIDR = "10.96.0.0/12"
	DefaultDomain      = "cluster.local"
	DefaultStateDir    = "_out"

	DefaultServerType = "cpx22"
)

// ApplyDefaults fills unset optional fields in place.
func ApplyDefaults(cfg *Config) {
	if cfg.HCloud.Token == "" {
		cfg.HCloud.Token = os.Getenv("HCLOUD_TOKEN")
	}
	if cfg.HCloud.Location == "" {
		cfg.HCloud.Location = DefaultLocation
	}

	n := &cfg.HCloud.Network
	if n.CIDR == "" {
		n.CIDR = DefaultNetworkCIDR
	}
	if n.SubnetCIDR == "" {
		n.SubnetCIDR = DefaultSubnetCIDR
	}
	if n.Zone == "" {
		if zone, ok := ZoneForLocation(cfg.HCloud.Location); ok {
			n.Zone = zone
		}
	}

	if cfg.Talos.Version == "" {
		cfg.Talos.Version = DefaultTalosVersion
	}
	if cfg.Talos.KubernetesVersion == "" {
		cfg.Talos.KubernetesVersion = DefaultKubernetesVersion
	}

	k := &cfg.Kubernetes
	if k.PodCIDR == "" {
		k.PodCIDR = DefaultPodCIDR
	}
	if k.ServiceCIDR == "" {
		k.ServiceCIDR = DefaultServiceCIDR
	}
	if k.Domain == "" {
		k.Domain = DefaultDomain
	}

	if cfg.Cilium.Version == "" {
		cfg.Cilium.Version = DefaultCiliumVersion
	}
	if cfg.Cilium.GatewayAPIVersion == "" {
		cfg.Cilium.GatewayAPIVersion = DefaultGatewayAPIVersion
	}

	if cfg.State.Dir == "" {
		cfg.State.Dir = DefaultStateDir
	}
	if b := cfg.State.Backup; b != nil {
		if b.AccessKey == "" {
			b.AccessKey = os.Getenv("OXIDE_BACKUP_ACCESS_KEY")
		}
		if b.SecretKey == "" {
			b.SecretKey = os.Getenv("OXIDE_BACKUP_SECRET_KEY")
		}
		if b.Region == "" {
			b.Region = cfg.HCloud.Location
		}
	}

	for i := range cfg.NodePools {
		p := &cfg.NodePools[i]
		if p.ServerType == "" {
			p.ServerType = DefaultServerType
		}
		if p.Role == "" {
			p.Role = RoleWorker
		}
	}
}
