package labels

import (
	"sort"
	"strings"
)

const (
	KeyCluster   = "oxide.io/cluster"
	KeyRole      = "oxide.io/role"
	KeyPool      = "oxide.io/pool"
	KeyManagedBy = "oxide.io/managed-by"

	ManagedByOxide = "oxide"
)

// LabelBuilder provides a fluent interface for building resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a builder with the cluster and manager labels set.
func NewLabelBuilder(clusterName string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyCluster:   clusterName,
			KeyManagedBy: ManagedByOxide,
		},
	}
}

// WithRole adds the role label ("control-plane" or "worker").
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// WithPool adds the pool label.
func (lb *LabelBuilder) WithPool(pool string) *LabelBuilder {
	lb.labels[KeyPool] = pool
	return lb
}

// Merge adds user labels. Reserved oxide.io keys are not overwritten.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		if _, reserved := lb.labels[k]; reserved && strings.HasPrefix(k, "oxide.io/") {
			continue
		}
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// Selector renders the labels as a Hetzner label selector, keys sorted.
func (lb *LabelBuilder) Selector() string {
	keys := make([]string, 0, len(lb.labels))
	for k := range lb.labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+lb.labels[k])
	}
	return strings.Join(parts, ",")
}

// SelectorForCluster selects every resource of a cluster.
func SelectorForCluster(clusterName string) string {
	return KeyCluster + "=" + clusterName
}

// SelectorForPool selects the servers of one pool.
func SelectorForPool(clusterName, pool string) string {
	return SelectorForCluster(clusterName) + "," + KeyPool + "=" + pool
}
