package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/k8s"
	"github.com/imamik/oxide/internal/metrics"
	"github.com/imamik/oxide/internal/platform/hcloud"
	"github.com/imamik/oxide/internal/platform/talos"
	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/provisioning/infrastructure"
	"github.com/imamik/oxide/internal/state"
	"github.com/imamik/oxide/internal/util/labels"
	"github.com/imamik/oxide/internal/util/naming"
	"github.com/imamik/oxide/internal/util/poll"
)

const phase = "lifecycle"

// Deps are the clients and persisted artifacts the workflows act with.
type Deps struct {
	Talos     talos.NodeAPI
	Kube      k8s.Client
	Bundle    *state.Bundle
	Resources *infrastructure.Resources
}

// Workflows runs add and remove workflows for the nodes of one cluster.
type Workflows struct {
	deps Deps
	// mu guards deps.Resources.ServerIDs.
	mu sync.Mutex
}

// NewWorkflows returns Workflows acting with deps. Bundle and Resources are
// required for adding nodes; removing needs only the clients.
func NewWorkflows(deps Deps) *Workflows {
	if deps.Resources != nil && deps.Resources.ServerIDs == nil {
		deps.Resources.ServerIDs = make(map[string]int64)
	}
	return &Workflows{deps: deps}
}

// AddRequest describes one node to add.
type AddRequest struct {
	Pool  config.NodePool
	Index int
	// PrivateIP pins the node address; empty lets Hetzner assign one.
	PrivateIP string
}

func setStatus(ctx *provisioning.Context, node *Node, s Status) {
	node.Status = s
	provisioning.LogNodeState(ctx.Observer, phase, node.Name, string(s))
}

// Add creates the server of one node and waits until the node reports Ready.
// An existing server with the same name is reused. The returned node carries
// its identity even on failure.
func (w *Workflows) Add(ctx *provisioning.Context, req AddRequest) (Node, error) {
	start := time.Now()
	node := Node{
		Name:      naming.Server(ctx.Config.ClusterName, req.Pool.Name, req.Index),
		Pool:      req.Pool.Name,
		Index:     req.Index,
		Role:      req.Pool.Role,
		PrivateIP: req.PrivateIP,
	}

	err := w.add(ctx, &node, req)
	if err != nil {
		setStatus(ctx, &node, StatusFailed)
	}
	metrics.RecordNodeAddition(ctx.Config.ClusterName, node.Pool, time.Since(start), err)
	return node, err
}

func (w *Workflows) add(ctx *provisioning.Context, node *Node, req AddRequest) error {
	setStatus(ctx, node, StatusProvisioning)
	srv, err := w.Provision(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to provision %s: %w", node.Name, err)
	}
	node.ServerID = srv.ID
	node.PrivateIP = srv.PrivateIP
	node.PublicIP = srv.PublicIP

	setStatus(ctx, node, StatusJoining)
	if err := w.WaitReady(ctx, node.Name); err != nil {
		return err
	}
	setStatus(ctx, node, StatusReady)
	return nil
}

// Provision returns the server of the requested node, creating it with the
// role machine configuration as user data when it does not exist yet.
// The cluster firewall reaches the server through its labels.
func (w *Workflows) Provision(ctx *provisioning.Context, req AddRequest) (*hcloud.Server, error) {
	if w.deps.Bundle == nil || w.deps.Resources == nil {
		return nil, errors.New("machine configuration and cluster resources are required to create servers")
	}
	name := naming.Server(ctx.Config.ClusterName, req.Pool.Name, req.Index)

	existing, err := ctx.Infra.GetServer(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		provisioning.LogResourceExists(ctx.Observer, phase, "server", name, strconv.FormatInt(existing.ID, 10))
		if existing.Incomplete() {
			ctx.Observer.Printf("[%s] Server %s was not started, attaching and powering it on", phase, name)
			if existing, err = ctx.Infra.CompleteServer(ctx, name, w.deps.Resources.NetworkID, req.PrivateIP); err != nil {
				return nil, err
			}
		}
		w.recordServer(name, existing.ID)
		return existing, nil
	}

	userData := w.deps.Bundle.Worker
	if req.Pool.IsControlPlane() {
		userData = w.deps.Bundle.ControlPlane
	}
	if len(userData) == 0 {
		return nil, fmt.Errorf("no %s machine configuration in the state bundle", req.Pool.Role)
	}

	serverLabels := labels.NewLabelBuilder(ctx.Config.ClusterName).
		WithRole(string(req.Pool.Role)).
		WithPool(req.Pool.Name).
		Merge(req.Pool.Labels).
		Build()

	provisioning.LogResourceCreating(ctx.Observer, phase, "server", name)
	srv, err := ctx.Infra.CreateServer(ctx, hcloud.ServerCreateOpts{
		Name:       name,
		ServerType: req.Pool.ServerType,
		Location:   ctx.Config.HCloud.Location,
		Image:      ctx.Config.HCloud.Image,
		UserData:   string(userData),
		SSHKeyID:   w.deps.Resources.SSHKeyID,
		NetworkID:  w.deps.Resources.NetworkID,
		PrivateIP:  req.PrivateIP,
		Labels:     serverLabels,
	})
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, "server", name, err)
		return nil, err
	}
	provisioning.LogResourceCreated(ctx.Observer, phase, "server", name, strconv.FormatInt(srv.ID, 10))
	w.recordServer(name, srv.ID)
	return srv, nil
}

func (w *Workflows) recordServer(name string, id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deps.Resources.ServerIDs[name] = id
}

func (w *Workflows) forgetServer(name string) {
	if w.deps.Resources == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.deps.Resources.ServerIDs, name)
}

// WaitReady polls the cluster API at a fixed interval until the node reports
// Ready. Errors reading the node are retried until the timeout, which
// surfaces as *poll.TimeoutError.
func (w *Workflows) WaitReady(ctx *provisioning.Context, name string) error {
	return poll.Until(ctx, poll.Spec{
		What:     fmt.Sprintf("node %s Ready", name),
		Interval: ctx.Timeouts.NodeReadyPoll,
		Timeout:  ctx.Timeouts.NodeReady,
	}, func(pctx context.Context) (bool, error) {
		st, err := w.deps.Kube.Node(pctx, name)
		if err != nil {
			ctx.Observer.Printf("[%s] Reading node %s: %v", phase, name, err)
			return false, nil
		}
		return st.Exists && st.Ready, nil
	})
}

// AddAll runs the add workflow for every request with bounded concurrency.
// A failing node does not stop the others. When any node failed the error is
// a *PartialScaleFailure holding every result.
func (w *Workflows) AddAll(ctx *provisioning.Context, pool string, reqs []AddRequest) ([]AddResult, error) {
	return w.fanOut(ctx, pool, reqs, w.Add)
}

// ProvisionAll creates the servers of every request like AddAll but does not
// wait for the nodes to become Ready. Nodes that were created end in Joining.
// It serves initial creation, where nodes cannot become Ready before the
// network overlay is installed.
func (w *Workflows) ProvisionAll(ctx *provisioning.Context, pool string, reqs []AddRequest) ([]AddResult, error) {
	return w.fanOut(ctx, pool, reqs, func(ctx *provisioning.Context, req AddRequest) (Node, error) {
		node := Node{
			Name:      naming.Server(ctx.Config.ClusterName, req.Pool.Name, req.Index),
			Pool:      req.Pool.Name,
			Index:     req.Index,
			Role:      req.Pool.Role,
			PrivateIP: req.PrivateIP,
		}
		setStatus(ctx, &node, StatusProvisioning)
		srv, err := w.Provision(ctx, req)
		if err != nil {
			setStatus(ctx, &node, StatusFailed)
			return node, fmt.Errorf("failed to provision %s: %w", node.Name, err)
		}
		node.ServerID = srv.ID
		node.PrivateIP = srv.PrivateIP
		node.PublicIP = srv.PublicIP
		setStatus(ctx, &node, StatusJoining)
		return node, nil
	})
}

func (w *Workflows) fanOut(ctx *provisioning.Context, pool string, reqs []AddRequest, fn func(*provisioning.Context, AddRequest) (Node, error)) ([]AddResult, error) {
	results := make([]AddResult, len(reqs))
	if len(reqs) == 0 {
		return results, nil
	}

	limit := ctx.Timeouts.ScaleConcurrency
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	var done int
	var mu sync.Mutex
	for i, req := range reqs {
		g.Go(func() error {
			node, err := fn(ctx, req)
			results[i] = AddResult{Node: node, Err: err}

			mu.Lock()
			done++
			ctx.Observer.Progress(phase, done, len(reqs))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Err != nil {
			return results, &PartialScaleFailure{Pool: pool, Results: results}
		}
	}
	return results, nil
}
