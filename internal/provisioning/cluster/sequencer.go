package cluster

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/imamik/oxide/internal/addons/cilium"
	"github.com/imamik/oxide/internal/addons/helm"
	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/k8s"
	"github.com/imamik/oxide/internal/metrics"
	"github.com/imamik/oxide/internal/platform/talos"
	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/provisioning/infrastructure"
	"github.com/imamik/oxide/internal/provisioning/lifecycle"
	"github.com/imamik/oxide/internal/state"
)

const phase = "cluster"

// Sequencer creates a cluster and brings every initial node to Ready.
type Sequencer struct {
	store *state.Store
	infra *infrastructure.Provisioner
	now   func() time.Time

	newNodeAPI   func(talosconfig []byte, callTimeout time.Duration) (talos.NodeAPI, error)
	newKube      func(kubeconfig []byte) (k8s.Client, error)
	newInstaller func(cfg *config.Config, kubeconfig []byte, kube k8s.Client, timeouts *config.Timeouts) (cilium.Installer, error)
	newSecrets   func(talosVersion string) (*talos.SecretsBundle, error)
}

// NewSequencer returns a Sequencer persisting into store.
func NewSequencer(store *state.Store) *Sequencer {
	return &Sequencer{
		store: store,
		infra: infrastructure.NewProvisioner(),
		now:   time.Now,
		newNodeAPI: func(talosconfig []byte, callTimeout time.Duration) (talos.NodeAPI, error) {
			return talos.NewClient(talosconfig, callTimeout)
		},
		newKube:      k8s.NewFromKubeconfig,
		newInstaller: newCiliumInstaller,
		newSecrets:   talos.NewSecrets,
	}
}

func newCiliumInstaller(cfg *config.Config, kubeconfig []byte, kube k8s.Client, timeouts *config.Timeouts) (cilium.Installer, error) {
	charts, err := helm.NewClient(kubeconfig, cilium.Namespace, helm.WithTimeout(timeouts.Cilium))
	if err != nil {
		return nil, err
	}
	return cilium.NewHelmInstaller(cfg, kube, charts, cilium.WithTimeouts(timeouts)), nil
}

// Name returns the phase name used in logs.
func (s *Sequencer) Name() string {
	return phase
}

// run carries what earlier steps produced to later ones.
type run struct {
	ctx        *provisioning.Context
	bundle     *state.Bundle
	resources  *infrastructure.Resources
	nodeAPI    talos.NodeAPI
	kube       k8s.Client
	kubeconfig []byte
	workflows  *lifecycle.Workflows
	first      lifecycle.Node
	nodes      []lifecycle.Node
}

// Run executes all steps. A failure is returned as *StepError; nothing that
// was created is rolled back.
func (s *Sequencer) Run(ctx *provisioning.Context) error {
	start := time.Now()
	provisioning.LogPhaseStart(ctx.Observer, phase)

	steps := []struct {
		step Step
		fn   func(*run) error
	}{
		{StepInfrastructure, s.provisionFirstNode},
		{StepBootstrap, s.bootstrap},
		{StepClusterAPI, s.waitClusterAPI},
		{StepKubeconfig, s.persistCredentials},
		{StepNodes, s.provisionRemainingNodes},
		{StepCilium, s.installCilium},
		{StepNodesReady, s.waitNodesReady},
	}

	r := &run{ctx: ctx}
	completed := StepNone
	for _, st := range steps {
		ctx.Observer.Printf("[%s] Step %d/%d: %s", phase, int(st.step), len(steps), st.step)
		if err := st.fn(r); err != nil {
			stepErr := &StepError{Step: st.step, Completed: completed, Err: err}
			provisioning.LogPhaseFailed(ctx.Observer, phase, stepErr)
			return stepErr
		}
		completed = st.step
	}

	for _, pool := range ctx.Config.NodePools {
		metrics.RecordPoolSize(ctx.Config.ClusterName, pool.Name, pool.Count)
	}
	provisioning.LogPhaseComplete(ctx.Observer, phase, time.Since(start))
	return nil
}

// ensureBundle loads the persisted bundle, generating and saving it on the
// first run only.
func (s *Sequencer) ensureBundle(ctx *provisioning.Context) (*state.Bundle, error) {
	if s.store.HasBundle() {
		ctx.Observer.Printf("[%s] Using existing machine configuration from %s", phase, s.store.Dir())
		return s.store.Bundle()
	}

	ctx.Observer.Printf("[%s] Generating cluster secrets and machine configuration", phase)
	sb, err := s.newSecrets(ctx.Config.Talos.Version)
	if err != nil {
		return nil, err
	}
	gen, err := talos.NewGenerator(ctx.Config, sb)
	if err != nil {
		return nil, err
	}
	configs, err := gen.Generate()
	if err != nil {
		return nil, err
	}
	secrets, err := talos.MarshalSecrets(sb)
	if err != nil {
		return nil, err
	}

	bundle := &state.Bundle{
		Secrets:      secrets,
		ControlPlane: configs.ControlPlane,
		Worker:       configs.Worker,
		Talosconfig:  configs.Talosconfig,
	}
	if err := s.store.SaveBundle(bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (s *Sequencer) recordIndex(pool string, index int) error {
	return s.store.UpdateState(func(st *state.ClusterState) {
		st.RecordIndex(pool, index)
	})
}

// provisionFirstNode ensures cluster resources and the bootstrap node, which
// gets the fixed address the cluster endpoint points at.
func (s *Sequencer) provisionFirstNode(r *run) error {
	ctx := r.ctx
	bundle, err := s.ensureBundle(ctx)
	if err != nil {
		return err
	}
	r.bundle = bundle

	if r.resources, err = s.infra.Provision(ctx); err != nil {
		return err
	}

	if r.nodeAPI, err = s.newNodeAPI(bundle.Talosconfig, ctx.Timeouts.TalosCall); err != nil {
		return err
	}
	r.workflows = lifecycle.NewWorkflows(lifecycle.Deps{
		Talos:     r.nodeAPI,
		Bundle:    r.bundle,
		Resources: r.resources,
	})

	pool, ok := ctx.Config.FirstControlPlanePool()
	if !ok {
		return errors.New("no control-plane pool configured")
	}
	ip, err := ctx.Config.BootstrapNodeIP()
	if err != nil {
		return err
	}
	if err := s.recordIndex(pool.Name, 1); err != nil {
		return err
	}

	results, err := r.workflows.ProvisionAll(ctx, pool.Name, []lifecycle.AddRequest{{Pool: *pool, Index: 1, PrivateIP: ip}})
	if err != nil {
		return err
	}
	r.first = results[0].Node
	r.nodes = append(r.nodes, r.first)
	return nil
}

// bootstrap starts etcd on the first node unless the marker says it already
// happened on that server. An intent marker is written before the call and
// confirmed after it, so a lost response is retried and an AlreadyExists
// answer confirms it.
func (s *Sequencer) bootstrap(r *run) error {
	ctx := r.ctx
	st, err := s.store.LoadState()
	if err != nil {
		return err
	}
	target := r.first.Target()
	serverID := r.first.ServerID

	switch m := st.Bootstrap; {
	case m == nil:
	case st.BootstrappedOn(serverID):
		ctx.Observer.Printf("[%s] Cluster was bootstrapped on %s at %s, skipping",
			phase, m.Node, m.Time.Format(time.RFC3339))
		return nil
	case m.ServerID != serverID:
		provisioning.LogWarning(ctx.Observer, phase, fmt.Sprintf(
			"bootstrap record of %s belongs to server %d, which was replaced by server %d", m.Node, m.ServerID, serverID))
	default:
		ctx.Observer.Printf("[%s] An earlier bootstrap of %s was not confirmed, issuing it again", phase, m.Node)
	}

	err = waitFor(ctx, "talos API of "+target.Name, ctx.Timeouts.APIPoll, ctx.Timeouts.TalosAPI, func() bool {
		_, err := r.nodeAPI.Version(ctx, target)
		return err == nil
	})
	if err != nil {
		return err
	}

	if err := s.store.UpdateState(func(st *state.ClusterState) {
		st.MarkBootstrapPending(target.Name, serverID, s.now())
	}); err != nil {
		return err
	}

	ctx.Observer.Printf("[%s] Bootstrapping etcd on %s", phase, target)
	if err := r.nodeAPI.Bootstrap(ctx, target); err != nil {
		if !errors.Is(err, talos.ErrAlreadyBootstrapped) {
			return fmt.Errorf("failed to bootstrap %s: %w", target.Name, err)
		}
		ctx.Observer.Printf("[%s] etcd on %s was already bootstrapped", phase, target.Name)
	}
	return s.store.UpdateState(func(st *state.ClusterState) {
		st.MarkBootstrapped(target.Name, serverID, s.now())
	})
}

// apiServerURL is the Kubernetes API of node as reached from outside.
func apiServerURL(node lifecycle.Node) string {
	return "https://" + net.JoinHostPort(node.PublicIP, strconv.Itoa(config.KubernetesAPIPort))
}

// waitClusterAPI polls until admin credentials can be fetched from the first
// node and the cluster API answers /version with them.
func (s *Sequencer) waitClusterAPI(r *run) error {
	ctx := r.ctx
	target := r.first.Target()
	server := apiServerURL(r.first)

	type access struct {
		kubeconfig []byte
		kube       k8s.Client
	}
	a, err := pollValue(ctx, "cluster API at "+server, ctx.Timeouts.APIPoll, ctx.Timeouts.APIServer, func() (access, bool, error) {
		raw, err := r.nodeAPI.Kubeconfig(ctx, target)
		if err != nil {
			return access{}, false, nil
		}
		kubeconfig, err := k8s.RewriteServer(raw, server)
		if err != nil {
			return access{}, false, err
		}
		kube, err := s.newKube(kubeconfig)
		if err != nil {
			return access{}, false, err
		}
		if _, err := kube.ServerVersion(ctx); err != nil {
			return access{}, false, nil
		}
		return access{kubeconfig: kubeconfig, kube: kube}, true, nil
	})
	if err != nil {
		return err
	}

	r.kubeconfig, r.kube = a.kubeconfig, a.kube
	r.workflows = lifecycle.NewWorkflows(lifecycle.Deps{
		Talos:     r.nodeAPI,
		Kube:      r.kube,
		Bundle:    r.bundle,
		Resources: r.resources,
	})
	return nil
}

// persistCredentials saves the kubeconfig and a talosconfig pointing at the
// first node, then copies the state to the backup bucket if configured.
func (s *Sequencer) persistCredentials(r *run) error {
	ctx := r.ctx
	if err := s.store.SaveKubeconfig(r.kubeconfig); err != nil {
		return err
	}
	talosconfig, err := talos.SetEndpoints(r.bundle.Talosconfig, []string{r.first.PublicIP})
	if err != nil {
		return err
	}
	if err := s.store.SaveTalosconfig(talosconfig); err != nil {
		return err
	}
	ctx.Observer.Printf("[%s] Credentials written to %s", phase, s.store.Dir())

	if !s.store.HasBackup() {
		return nil
	}
	keys, err := s.store.BackupFiles(ctx)
	if err != nil {
		provisioning.LogWarning(ctx.Observer, phase, fmt.Sprintf("state backup failed: %v", err))
		return nil
	}
	ctx.Observer.Printf("[%s] Backed up %d state files", phase, len(keys))
	return nil
}

// provisionRemainingNodes creates every other initial server. The nodes join
// on their own from the boot payload.
func (s *Sequencer) provisionRemainingNodes(r *run) error {
	ctx := r.ctx
	for _, pool := range ctx.Config.NodePools {
		startIndex := 1
		if pool.Name == r.first.Pool {
			startIndex = 2
		}
		if startIndex > pool.Count {
			continue
		}
		if err := s.recordIndex(pool.Name, pool.Count); err != nil {
			return err
		}

		var reqs []lifecycle.AddRequest
		for i := startIndex; i <= pool.Count; i++ {
			reqs = append(reqs, lifecycle.AddRequest{Pool: pool, Index: i})
		}
		ctx.Observer.Printf("[%s] Creating %d servers for pool %s", phase, len(reqs), pool.Name)
		results, err := r.workflows.ProvisionAll(ctx, pool.Name, reqs)
		if err != nil {
			return err
		}
		for _, res := range results {
			r.nodes = append(r.nodes, res.Node)
		}
	}
	return nil
}

func (s *Sequencer) installCilium(r *run) error {
	ctx := r.ctx
	installer, err := s.newInstaller(ctx.Config, r.kubeconfig, r.kube, ctx.Timeouts)
	if err != nil {
		return fmt.Errorf("failed to create cilium installer: %w", err)
	}
	if err := installer.InstallGatewayAPI(ctx); err != nil {
		return err
	}
	ctx.Observer.Printf("[%s] Installing cilium %s", phase, ctx.Config.Cilium.Version)
	if err := installer.Install(ctx); err != nil {
		return err
	}
	return installer.WaitReady(ctx)
}

func (s *Sequencer) waitNodesReady(r *run) error {
	ctx := r.ctx
	for i, node := range r.nodes {
		if err := r.workflows.WaitReady(ctx, node.Name); err != nil {
			return err
		}
		provisioning.LogNodeState(ctx.Observer, phase, node.Name, string(lifecycle.StatusReady))
		ctx.Observer.Progress(phase, i+1, len(r.nodes))
	}
	ctx.Observer.Printf("[%s] All %d nodes are Ready", phase, len(r.nodes))
	return nil
}
