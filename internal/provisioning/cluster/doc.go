// Package cluster creates a cluster from nothing.
//
// The Sequencer runs seven steps in order and stops at the first failure,
// reporting the furthest completed step. Every step tolerates work left
// behind by an earlier run, so `oxide create` can simply be repeated; the
// etcd bootstrap call is guarded by a persisted marker and is issued at most
// once per cluster lifetime.
package cluster
