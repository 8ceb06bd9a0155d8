package state

import "time"

// ClusterState is the persisted bookkeeping of a cluster.
type ClusterState struct {
	Bootstrap *BootstrapMarker     `yaml:"bootstrap,omitempty"`
	Pools     map[string]PoolState `yaml:"pools,omitempty"`
}

// BootstrapMarker records the one bootstrap call of a cluster lifetime.
type BootstrapMarker struct {
	Node     string    `yaml:"node"`
	ServerID int64     `yaml:"server_id"`
	Time     time.Time `yaml:"time"`
	// Pending is written before the call and cleared once it returned.
	Pending bool `yaml:"pending,omitempty"`
}

// PoolState tracks index assignment of one pool.
type PoolState struct {
	// MaxIndex is the highest index ever assigned. Indices are never reused.
	MaxIndex int `yaml:"max_index"`
}

// Bootstrapped reports whether a bootstrap call has been confirmed.
func (s *ClusterState) Bootstrapped() bool {
	return s.Bootstrap != nil && !s.Bootstrap.Pending
}

// BootstrappedOn reports whether the confirmed bootstrap ran on the server
// with the given id. A marker left by a destroyed server does not count.
func (s *ClusterState) BootstrappedOn(serverID int64) bool {
	return s.Bootstrapped() && s.Bootstrap.ServerID == serverID
}

// MarkBootstrapPending records that bootstrap is about to be issued on node.
func (s *ClusterState) MarkBootstrapPending(node string, serverID int64, at time.Time) {
	s.Bootstrap = &BootstrapMarker{Node: node, ServerID: serverID, Time: at.UTC(), Pending: true}
}

// MarkBootstrapped records the bootstrap of node.
func (s *ClusterState) MarkBootstrapped(node string, serverID int64, at time.Time) {
	s.Bootstrap = &BootstrapMarker{Node: node, ServerID: serverID, Time: at.UTC()}
}

// MaxIndex returns the highest index recorded for pool, 0 if none.
func (s *ClusterState) MaxIndex(pool string) int {
	return s.Pools[pool].MaxIndex
}

// RecordIndex raises the high-water mark of pool to index.
func (s *ClusterState) RecordIndex(pool string, index int) {
	if s.Pools == nil {
		s.Pools = make(map[string]PoolState)
	}
	if index > s.Pools[pool].MaxIndex {
		s.Pools[pool] = PoolState{MaxIndex: index}
	}
}
