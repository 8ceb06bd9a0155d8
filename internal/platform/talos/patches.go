package talos

import (
	oxideconfig "github.com/imamik/oxide/internal/config"
)

// KubePrismPort is the node-local API server load balancer port Cilium uses
// to reach the control plane.
const KubePrismPort = 7445

// buildPatch returns the cluster-wide settings merged over the generated
// configuration: node addressing on the private subnet, pod and service
// ranges, no bundled CNI and no kube-proxy.
func buildPatch(cfg *oxideconfig.Config, isControlPlane bool, installerImage string) map[string]any {
	subnet := cfg.HCloud.Network.SubnetCIDR

	machinePatch := map[string]any{
		"install": map[string]any{
			"disk":  InstallDisk,
			"image": installerImage,
		},
		"kubelet": map[string]any{
			"nodeIP": map[string]any{
				"validSubnets": []any{subnet},
			},
		},
		"features": map[string]any{
			"kubePrism": map[string]any{
				"enabled": true,
				"port":    KubePrismPort,
			},
		},
	}

	clusterPatch := map[string]any{
		"network": map[string]any{
			"dnsDomain":      cfg.Kubernetes.Domain,
			"podSubnets":     []any{cfg.Kubernetes.PodCIDR},
			"serviceSubnets": []any{cfg.Kubernetes.ServiceCIDR},
			"cni": map[string]any{
				"name": "none",
			},
		},
		"proxy": map[string]any{
			"disabled": true,
		},
	}

	if isControlPlane {
		clusterPatch["etcd"] = map[string]any{
			"advertisedSubnets": []any{subnet},
		}
	}

	return map[string]any{
		"machine": machinePatch,
		"cluster": clusterPatch,
	}
}
