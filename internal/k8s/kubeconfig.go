package k8s

import (
	"fmt"

	"k8s.io/client-go/tools/clientcmd"
)

// RewriteServer points every cluster entry of kubeconfig at server.
// Talos issues kubeconfigs for the cluster endpoint, which is a private
// address; oxide talks to the API through the first control plane's public one.
func RewriteServer(kubeconfig []byte, server string) ([]byte, error) {
	cfg, err := clientcmd.Load(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kubeconfig: %w", err)
	}
	if len(cfg.Clusters) == 0 {
		return nil, fmt.Errorf("kubeconfig has no clusters")
	}
	for _, cluster := range cfg.Clusters {
		cluster.Server = server
	}
	out, err := clientcmd.Write(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize kubeconfig: %w", err)
	}
	return out, nil
}
