// Package cilium installs the Cilium network overlay on a freshly
// bootstrapped Talos cluster.
//
// Installation has three parts run in order by the bootstrap sequencer:
// the Gateway API CRDs, the Helm chart with values computed from the
// cluster configuration, and a bounded wait for the agent pods.
package cilium
