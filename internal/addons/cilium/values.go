package cilium

import (
	"github.com/imamik/oxide/internal/addons/helm"
	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/platform/talos"
)

// Values computes the chart values for cfg. User supplied helm_values are
// merged last and win over computed ones.
func Values(cfg *config.Config) helm.Values {
	operatorReplicas := 1
	if cfg.ControlPlaneCount() > 1 {
		operatorReplicas = 2
	}

	values := helm.Values{
		"ipam":                 helm.Values{"mode": "kubernetes"},
		"kubeProxyReplacement": true,
		// KubePrism on every Talos node; the service VIP does not exist before Cilium runs.
		"k8sServiceHost": "localhost",
		"k8sServicePort": talos.KubePrismPort,
		"securityContext": helm.Values{
			"capabilities": helm.Values{
				"ciliumAgent": []string{
					"CHOWN", "KILL", "NET_ADMIN", "NET_RAW", "IPC_LOCK", "SYS_ADMIN",
					"SYS_RESOURCE", "DAC_OVERRIDE", "FOWNER", "SETGID", "SETUID",
				},
				"cleanCiliumState": []string{"NET_ADMIN", "SYS_ADMIN", "SYS_RESOURCE"},
			},
		},
		"cgroup": helm.Values{
			"autoMount": helm.Values{"enabled": false},
			"hostRoot":  "/sys/fs/cgroup",
		},
		"operator": helm.Values{
			"replicas":   operatorReplicas,
			"prometheus": helm.Values{"enabled": true},
		},
		"prometheus": helm.Values{"enabled": true},
		// Hetzner private networks route through a gateway, so pod traffic is tunnelled.
		"routingMode":          "tunnel",
		"tunnelProtocol":       "vxlan",
		"autoDirectNodeRoutes": false,
		"bpf":                  helm.Values{"masquerade": true},
		"nodeIPAM":             helm.Values{"enabled": true},
		"defaultLBServiceIPAM": "nodeipam",
		"loadBalancer":         helm.Values{"acceleration": "native"},
		"ipv6":                 helm.Values{"enabled": cfg.Cilium.EnableIPv6},
		"gatewayAPI":           helm.Values{"enabled": cfg.Cilium.GatewayAPIEnabled()},
		"hubble":               hubbleValues(cfg.Cilium.EnableHubble),
	}

	return helm.Merge(values, helm.Values(cfg.Cilium.HelmValues))
}

func hubbleValues(enabled bool) helm.Values {
	if !enabled {
		return helm.Values{"enabled": false}
	}
	return helm.Values{
		"enabled": true,
		"relay":   helm.Values{"enabled": true},
		"ui":      helm.Values{"enabled": true},
		"metrics": helm.Values{
			"enabled": []string{
				"dns", "drop", "tcp", "flow", "port-distribution", "icmp",
				"httpV2:exemplars=true;labelsContext=source_ip,source_namespace,source_workload,destination_ip,destination_namespace,destination_workload,traffic_direction",
			},
		},
	}
}
