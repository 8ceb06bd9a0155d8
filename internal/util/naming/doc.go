// Package naming derives Hetzner Cloud resource names from the cluster name.
//
// Nodes are named {cluster}-{pool}-{index}. The index is the node's identity
// inside its pool, so [ParseServer] is the inverse used when re-deriving pool
// membership from live servers.
package naming
