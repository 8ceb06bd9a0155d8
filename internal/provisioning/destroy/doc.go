// Package destroy tears a cluster down.
//
// Servers carrying the cluster label are deleted concurrently first, then the
// firewall, the network and the SSH key. The local state directory is left to
// the caller.
package destroy
