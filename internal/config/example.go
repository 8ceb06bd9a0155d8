package config

// ExampleOptions parameterize the configuration written by `oxide init`.
type ExampleOptions struct {
	ClusterName      string
	Location         string
	ControlPlanes    int
	Workers          int
	ControlPlaneType string
	WorkerType       string
}

// DefaultExampleOptions returns a small highly available cluster.
func DefaultExampleOptions() ExampleOptions {
	return ExampleOptions{
		ClusterName:      "oxide",
		Location:         DefaultLocation,
		ControlPlanes:    3,
		Workers:          2,
		ControlPlaneType: DefaultServerType,
		WorkerType:       DefaultServerType,
	}
}

// Example builds a complete configuration from opts. The token is left empty
// so it is read from HCLOUD_TOKEN.
func Example(opts ExampleOptions) *Config {
	zone, _ := ZoneForLocation(opts.Location)
	pools := []NodePool{
		{Name: "control-plane", Role: RoleControlPlane, ServerType: opts.ControlPlaneType, Count: opts.ControlPlanes},
	}
	if opts.Workers > 0 {
		pools = append(pools, NodePool{Name: "worker", Role: RoleWorker, ServerType: opts.WorkerType, Count: opts.Workers})
	}
	return &Config{
		ClusterName: opts.ClusterName,
		HCloud: HCloudConfig{
			Location: opts.Location,
			Network: NetworkConfig{
				CIDR:       DefaultNetworkCIDR,
				SubnetCIDR: DefaultSubnetCIDR,
				Zone:       zone,
			},
		},
		Talos: TalosConfig{
			Version:           DefaultTalosVersion,
			KubernetesVersion: DefaultKubernetesVersion,
		},
		Kubernetes: KubernetesConfig{
			PodCIDR:     DefaultPodCIDR,
			ServiceCIDR: DefaultServiceCIDR,
		},
		Cilium: CiliumConfig{
			Version:      DefaultCiliumVersion,
			EnableHubble: true,
		},
		State:     StateConfig{Dir: DefaultStateDir},
		NodePools: pools,
	}
}
