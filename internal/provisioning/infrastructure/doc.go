// Package infrastructure provisions the cluster-wide Hetzner resources that
// exist before any node: the private network with its node subnet, the
// firewall and the SSH key.
package infrastructure
