// Package provisioning holds what the provisioning subpackages share: the
// Context carrying configuration and the cloud client, and the Observer
// through which all progress is logged.
//
// The work itself lives in focused subpackages:
//   - infrastructure/ creates the network, firewall and SSH key
//   - lifecycle/ adds and removes single nodes
//   - cluster/ runs the initial bootstrap sequence
//   - scale/ reconciles a node pool to a target size
//   - destroy/ tears everything down
package provisioning
