package config

import (
	"fmt"
	"net"
)

// BootstrapHostNum is the subnet host number reserved for the first
// control-plane node. Its address backs the default cluster endpoint.
const BootstrapHostNum = 10

// KubernetesAPIPort is the port the Kubernetes API server listens on.
const KubernetesAPIPort = 6443

// BootstrapNodeIP returns the fixed private address of the first control-plane node.
func (c *Config) BootstrapNodeIP() (string, error) {
	return CIDRHost(c.HCloud.Network.SubnetCIDR, BootstrapHostNum)
}

// ClusterEndpoint returns the Kubernetes API URL written into every machine
// configuration.
func (c *Config) ClusterEndpoint() (string, error) {
	if c.Talos.ClusterEndpoint != "" {
		return c.Talos.ClusterEndpoint, nil
	}
	ip, err := c.BootstrapNodeIP()
	if err != nil {
		return "", fmt.Errorf("failed to derive cluster endpoint: %w", err)
	}
	return "https://" + net.JoinHostPort(ip, fmt.Sprint(KubernetesAPIPort)), nil
}
