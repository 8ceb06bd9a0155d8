// Package hcloud wraps the Hetzner Cloud API for the resources an oxide
// cluster owns: one private network with a node subnet, one firewall, one SSH
// key and the node servers.
//
// Ensure operations look resources up by name before creating them, so every
// call is safe to repeat. Delete operations succeed when the resource is
// already gone. Failures surface as *ProviderError.
package hcloud
