// Package talos generates Talos Linux machine configurations and talks to the
// Talos management API of individual nodes.
//
// The generator produces one control plane and one worker configuration per
// cluster. Both are derived from the cluster secrets bundle, so the same
// bundle always yields the same configurations and nodes added months later
// join the existing cluster.
package talos
