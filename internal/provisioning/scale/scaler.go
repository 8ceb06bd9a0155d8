package scale

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/k8s"
	"github.com/imamik/oxide/internal/metrics"
	"github.com/imamik/oxide/internal/platform/talos"
	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/provisioning/infrastructure"
	"github.com/imamik/oxide/internal/provisioning/lifecycle"
	"github.com/imamik/oxide/internal/state"
	"github.com/imamik/oxide/internal/util/labels"
)

const phase = "scale"

// Result summarizes one scale operation.
type Result struct {
	Pool     string
	Before   int
	Target   int
	Added    []lifecycle.Node
	Removed  []lifecycle.Node
	Warnings []string
}

// Scaler changes the size of node pools using the persisted bundle.
type Scaler struct {
	store *state.Store
	infra *infrastructure.Provisioner

	newNodeAPI func(talosconfig []byte, callTimeout time.Duration) (talos.NodeAPI, error)
	newKube    func(kubeconfig []byte) (k8s.Client, error)
}

// NewScaler returns a Scaler reading the bundle from store.
func NewScaler(store *state.Store) *Scaler {
	return &Scaler{
		store: store,
		infra: infrastructure.NewProvisioner(),
		newNodeAPI: func(talosconfig []byte, callTimeout time.Duration) (talos.NodeAPI, error) {
			return talos.NewClient(talosconfig, callTimeout)
		},
		newKube: k8s.NewFromKubeconfig,
	}
}

// Scale brings pool to target live nodes. The cluster must have been created:
// without a persisted bundle it fails before calling any provider API.
func (s *Scaler) Scale(ctx *provisioning.Context, pool string, target int) (*Result, error) {
	p, ok := ctx.Config.Pool(pool)
	if !ok {
		return nil, fmt.Errorf("unknown node pool %q", pool)
	}
	switch {
	case target < 0:
		return nil, fmt.Errorf("pool %s: target count must not be negative, got %d", pool, target)
	case target == 0 && p.IsControlPlane():
		return nil, fmt.Errorf("pool %s: a control-plane pool needs at least one node", pool)
	}

	bundle, err := s.loadBundle(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	provisioning.LogPhaseStart(ctx.Observer, phase)

	nodes, err := s.liveNodes(ctx, pool)
	if err != nil {
		provisioning.LogPhaseFailed(ctx.Observer, phase, err)
		return nil, err
	}

	res := &Result{Pool: pool, Before: len(nodes), Target: target}
	delta := target - len(nodes)
	if p.IsControlPlane() {
		res.Warnings = QuorumWarnings(ctx.Config.ControlPlaneCount()-p.Count+len(nodes), delta)
		for _, w := range res.Warnings {
			provisioning.LogWarning(ctx.Observer, phase, w)
		}
	}

	switch {
	case delta == 0:
		ctx.Observer.Printf("[%s] Pool %s already has %d nodes, nothing to do", phase, pool, target)
		metrics.RecordPoolSize(ctx.Config.ClusterName, pool, len(nodes))
		provisioning.LogPhaseComplete(ctx.Observer, phase, time.Since(start))
		return res, nil
	case delta > 0:
		err = s.scaleUp(ctx, *p, bundle, nodes, delta, res)
	default:
		err = s.scaleDown(ctx, bundle, nodes, -delta, res)
	}

	metrics.RecordPoolSize(ctx.Config.ClusterName, pool, len(nodes)+len(res.Added)-len(res.Removed))
	if err != nil {
		provisioning.LogPhaseFailed(ctx.Observer, phase, err)
		return res, err
	}
	provisioning.LogPhaseComplete(ctx.Observer, phase, time.Since(start))
	return res, nil
}

// loadBundle reads the persisted bundle, restoring missing files from the
// backup bucket first when one is configured.
func (s *Scaler) loadBundle(ctx *provisioning.Context) (*state.Bundle, error) {
	if !s.store.HasBundle() && s.store.HasBackup() {
		restored, err := s.store.RestoreMissing(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to restore state from backup: %w", err)
		}
		if len(restored) > 0 {
			ctx.Observer.Printf("[%s] Restored %v from backup", phase, restored)
		}
	}
	bundle, err := s.store.Bundle()
	if err != nil {
		return nil, err
	}
	if len(bundle.Kubeconfig) == 0 {
		return nil, errors.New("cluster creation did not finish (no kubeconfig in state), run 'oxide create' again")
	}
	return bundle, nil
}

// liveNodes lists the servers of pool sorted by index.
func (s *Scaler) liveNodes(ctx *provisioning.Context, pool string) ([]lifecycle.Node, error) {
	servers, err := ctx.Infra.ListServers(ctx, labels.SelectorForPool(ctx.Config.ClusterName, pool))
	if err != nil {
		return nil, fmt.Errorf("failed to list servers of pool %s: %w", pool, err)
	}
	nodes := make([]lifecycle.Node, 0, len(servers))
	for _, srv := range servers {
		node, ok := lifecycle.NodeFromServer(ctx.Config.ClusterName, srv)
		if !ok {
			provisioning.LogWarning(ctx.Observer, phase, fmt.Sprintf("ignoring server %s: name does not match pool %s", srv.Name, pool))
			continue
		}
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Index < nodes[j].Index })
	return nodes, nil
}

func (s *Scaler) clients(ctx *provisioning.Context, bundle *state.Bundle) (talos.NodeAPI, k8s.Client, error) {
	nodeAPI, err := s.newNodeAPI(bundle.Talosconfig, ctx.Timeouts.TalosCall)
	if err != nil {
		return nil, nil, err
	}
	kube, err := s.newKube(bundle.Kubeconfig)
	if err != nil {
		return nil, nil, err
	}
	return nodeAPI, kube, nil
}

func (s *Scaler) scaleUp(ctx *provisioning.Context, pool config.NodePool, bundle *state.Bundle, nodes []lifecycle.Node, count int, res *Result) error {
	st, err := s.store.LoadState()
	if err != nil {
		return err
	}
	next := NextIndex(nodes, st.MaxIndex(pool.Name))
	last := next + count - 1
	if err := s.store.UpdateState(func(st *state.ClusterState) { st.RecordIndex(pool.Name, last) }); err != nil {
		return err
	}

	// Re-ensuring refreshes the firewall allow-list to the current address.
	resources, err := s.infra.Provision(ctx)
	if err != nil {
		return err
	}
	nodeAPI, kube, err := s.clients(ctx, bundle)
	if err != nil {
		return err
	}
	wf := lifecycle.NewWorkflows(lifecycle.Deps{Talos: nodeAPI, Kube: kube, Bundle: bundle, Resources: resources})

	reqs := make([]lifecycle.AddRequest, 0, count)
	for i := next; i <= last; i++ {
		reqs = append(reqs, lifecycle.AddRequest{Pool: pool, Index: i})
	}
	ctx.Observer.Printf("[%s] Adding %d nodes to pool %s (indices %d..%d)", phase, count, pool.Name, next, last)

	results, err := wf.AddAll(ctx, pool.Name, reqs)
	for _, r := range results {
		if r.Err == nil {
			res.Added = append(res.Added, r.Node)
		}
	}
	return err
}

func (s *Scaler) scaleDown(ctx *provisioning.Context, bundle *state.Bundle, nodes []lifecycle.Node, count int, res *Result) error {
	victims := RemovalOrder(nodes, count)
	nodeAPI, kube, err := s.clients(ctx, bundle)
	if err != nil {
		return err
	}
	wf := lifecycle.NewWorkflows(lifecycle.Deps{Talos: nodeAPI, Kube: kube})

	names := make([]string, len(victims))
	for i, n := range victims {
		names[i] = n.Name
	}
	ctx.Observer.Printf("[%s] Removing %d nodes from pool %s: %v", phase, count, res.Pool, names)

	removed, err := wf.RemoveAll(ctx, victims)
	res.Removed = removed
	return err
}

// NextIndex returns the first index above both the live nodes and the
// highest index ever recorded, so indices are never reused.
func NextIndex(nodes []lifecycle.Node, recorded int) int {
	highest := recorded
	for _, n := range nodes {
		highest = max(highest, n.Index)
	}
	return highest + 1
}

// RemovalOrder returns the count nodes with the highest indices, highest first.
func RemovalOrder(nodes []lifecycle.Node, count int) []lifecycle.Node {
	sorted := append([]lifecycle.Node(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index > sorted[j].Index })
	if count > len(sorted) {
		count = len(sorted)
	}
	return sorted[:count]
}

// QuorumWarnings returns advice for changing a control plane of current
// members by delta. They never block the operation.
func QuorumWarnings(current, delta int) []string {
	target := current + delta
	var out []string
	if target%2 == 0 {
		out = append(out, fmt.Sprintf("control plane will have %d members; an even count tolerates no more failures than %d", target, target-1))
	}
	if quorum := current/2 + 1; delta < 0 && target < quorum {
		out = append(out, fmt.Sprintf("removing %d of %d control plane members drops below the current etcd quorum of %d", -delta, current, quorum))
	}
	return out
}
