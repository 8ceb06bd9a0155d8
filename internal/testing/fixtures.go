package testing

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	hcloudapi "github.com/hetznercloud/hcloud-go/v2/hcloud"
	k8slabels "k8s.io/apimachinery/pkg/labels"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/k8s"
	"github.com/imamik/oxide/internal/platform/hcloud"
	"github.com/imamik/oxide/internal/platform/talos"
	"github.com/imamik/oxide/internal/util/labels"
	"github.com/imamik/oxide/internal/util/naming"
)

// Kubeconfig is a syntactically valid admin kubeconfig returned by the fake
// Talos API.
const Kubeconfig = `apiVersion: v1
kind: Config
clusters:
- name: test
  cluster:
    server: https://10.0.1.10:6443
    insecure-skip-tls-verify: true
contexts:
- name: admin@test
  context:
    cluster: test
    user: admin
current-context: admin@test
users:
- name: admin
  user:
    token: test
`

// FakeCluster simulates one Hetzner project together with the cluster API
// and the Talos API of its nodes. Created servers join as Ready nodes, an
// acknowledged reset makes a node NotReady and unschedulable. Every mutation
// is recorded as "<op> <name>" in order.
type FakeCluster struct {
	Cluster string
	Infra   *hcloud.MockClient
	Kube    *k8s.MockClient
	Talos   *talos.MockClient

	mu          sync.Mutex
	servers     map[string]*hcloud.Server
	nodes       map[string]k8s.NodeStatus
	ops         []string
	nextID      int64
	createErr   map[string]error
	versionErr  map[string]error
	resetResult map[string]talos.ResetOutcome
	neverReady  map[string]bool
	neverCordon map[string]bool
}

// NewFakeCluster returns an empty project for cluster.
func NewFakeCluster(cluster string) *FakeCluster {
	f := &FakeCluster{
		Cluster:     cluster,
		servers:     make(map[string]*hcloud.Server),
		nodes:       make(map[string]k8s.NodeStatus),
		createErr:   make(map[string]error),
		versionErr:  make(map[string]error),
		resetResult: make(map[string]talos.ResetOutcome),
		neverReady:  make(map[string]bool),
		neverCordon: make(map[string]bool),
	}
	f.Infra = &hcloud.MockClient{
		EnsureNetworkFunc:  f.ensureNetwork,
		EnsureFirewallFunc: f.ensureFirewall,
		EnsureSSHKeyFunc:   f.ensureSSHKey,
		CreateServerFunc:   f.createServer,
		GetServerFunc:      f.getServer,
		CompleteServerFunc: f.completeServer,
		ListServersFunc:    f.listServers,
		DeleteServerFunc:   f.deleteServer,
		DeleteNetworkFunc:  f.recordFunc("delete-network"),
		DeleteFirewallFunc: f.recordFunc("delete-firewall"),
		DeleteSSHKeyFunc:   f.recordFunc("delete-ssh-key"),
	}
	f.Kube = &k8s.MockClient{
		NodeFunc:       f.node,
		ListNodesFunc:  f.listNodes,
		DeleteNodeFunc: f.deleteNode,
	}
	f.Talos = &talos.MockClient{
		VersionFunc:    f.version,
		BootstrapFunc:  f.bootstrap,
		ResetFunc:      f.reset,
		KubeconfigFunc: func(context.Context, talos.Target) ([]byte, error) { return []byte(Kubeconfig), nil },
	}
	return f
}

func (f *FakeCluster) record(op, name string) {
	f.ops = append(f.ops, op+" "+name)
}

func (f *FakeCluster) recordFunc(op string) func(context.Context, string) error {
	return func(_ context.Context, name string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(op, name)
		return nil
	}
}

// Ops returns every recorded mutation in order.
func (f *FakeCluster) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// OpsOf returns the recorded mutations of kind op, e.g. "create".
func (f *FakeCluster) OpsOf(op string) []string {
	var out []string
	for _, o := range f.Ops() {
		if strings.HasPrefix(o, op+" ") {
			out = append(out, strings.TrimPrefix(o, op+" "))
		}
	}
	return out
}

// ResetOps forgets recorded mutations, typically after seeding.
func (f *FakeCluster) ResetOps() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = nil
}

// ServerNames returns the names of all live servers, sorted.
func (f *FakeCluster) ServerNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.servers))
	for n := range f.servers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NodeStatus returns the cluster API view of a node.
func (f *FakeCluster) NodeStatus(name string) k8s.NodeStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.nodes[name]; ok {
		return st
	}
	return k8s.NodeStatus{Name: name}
}

// SeedPool adds count Ready nodes with indices 1..count to pool.
func (f *FakeCluster) SeedPool(pool string, role config.Role, count int) {
	for i := 1; i <= count; i++ {
		f.SeedNode(pool, role, i)
	}
}

// SeedNode adds one Ready node without recording a mutation.
func (f *FakeCluster) SeedNode(pool string, role config.Role, index int) *hcloud.Server {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := naming.Server(f.Cluster, pool, index)
	srv := f.newServer(name, "", labels.NewLabelBuilder(f.Cluster).WithRole(string(role)).WithPool(pool).Build())
	f.nodes[name] = k8s.NodeStatus{Name: name, Exists: true, Ready: true, Schedulable: true, InternalIP: srv.PrivateIP}
	return srv
}

// SeedUnstarted adds a server as an interrupted creation leaves it: powered
// off, without a private address and not yet a node.
func (f *FakeCluster) SeedUnstarted(pool string, role config.Role, index int) *hcloud.Server {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := naming.Server(f.Cluster, pool, index)
	srv := f.newServer(name, "", labels.NewLabelBuilder(f.Cluster).WithRole(string(role)).WithPool(pool).Build())
	srv.Status = "off"
	srv.PrivateIP = ""
	cp := *srv
	return &cp
}

// FailCreate makes creation of the named server fail with err.
func (f *FakeCluster) FailCreate(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr[name] = err
}

// FailVersion makes the Talos health probe of the named node fail with err.
func (f *FakeCluster) FailVersion(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versionErr[name] = err
}

// SetResetOutcome overrides the reset outcome of the named node.
func (f *FakeCluster) SetResetOutcome(name string, outcome talos.ResetOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetResult[name] = outcome
}

// NeverReady keeps the named node from reporting Ready after creation.
func (f *FakeCluster) NeverReady(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.neverReady[name] = true
}

// NeverCordon keeps the named node Ready and schedulable after a reset.
func (f *FakeCluster) NeverCordon(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.neverCordon[name] = true
}

func (f *FakeCluster) newServer(name, privateIP string, lbls map[string]string) *hcloud.Server {
	f.nextID++
	if privateIP == "" {
		privateIP = fmt.Sprintf("10.0.1.%d", 100+f.nextID)
	}
	srv := &hcloud.Server{
		ID:        f.nextID,
		Name:      name,
		Status:    "running",
		PrivateIP: privateIP,
		PublicIP:  fmt.Sprintf("203.0.113.%d", f.nextID),
		Labels:    maps.Clone(lbls),
	}
	f.servers[name] = srv
	return srv
}

func (f *FakeCluster) ensureNetwork(_ context.Context, name, _ string, _ map[string]string) (*hcloudapi.Network, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ensure-network", name)
	return &hcloudapi.Network{ID: 1, Name: name}, nil
}

func (f *FakeCluster) ensureFirewall(_ context.Context, name string, _ []hcloudapi.FirewallRule, _ map[string]string, _ string) (*hcloudapi.Firewall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ensure-firewall", name)
	return &hcloudapi.Firewall{ID: 2, Name: name}, nil
}

func (f *FakeCluster) ensureSSHKey(_ context.Context, name, _ string, _ map[string]string) (*hcloudapi.SSHKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ensure-ssh-key", name)
	return &hcloudapi.SSHKey{ID: 3, Name: name}, nil
}

func (f *FakeCluster) createServer(_ context.Context, opts hcloud.ServerCreateOpts) (*hcloud.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create", opts.Name)
	if err := f.createErr[opts.Name]; err != nil {
		return nil, err
	}
	if _, exists := f.servers[opts.Name]; exists {
		return nil, &hcloud.ProviderError{Op: "create server", Resource: opts.Name, Code: hcloudapi.ErrorCodeUniquenessError, Message: "server name is already used"}
	}
	srv := f.newServer(opts.Name, opts.PrivateIP, opts.Labels)
	f.nodes[opts.Name] = k8s.NodeStatus{
		Name:        opts.Name,
		Exists:      true,
		Ready:       !f.neverReady[opts.Name],
		Schedulable: true,
		InternalIP:  srv.PrivateIP,
	}
	cp := *srv
	return &cp, nil
}

func (f *FakeCluster) completeServer(_ context.Context, name string, _ int64, privateIP string) (*hcloud.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	srv, ok := f.servers[name]
	if !ok {
		return nil, fmt.Errorf("server %s not found", name)
	}
	f.record("complete", name)
	if srv.PrivateIP == "" {
		srv.PrivateIP = privateIP
		if srv.PrivateIP == "" {
			srv.PrivateIP = fmt.Sprintf("10.0.1.%d", 100+srv.ID)
		}
	}
	srv.Status = "running"
	f.nodes[name] = k8s.NodeStatus{
		Name:        name,
		Exists:      true,
		Ready:       !f.neverReady[name],
		Schedulable: true,
		InternalIP:  srv.PrivateIP,
	}
	cp := *srv
	return &cp, nil
}

func (f *FakeCluster) getServer(_ context.Context, name string) (*hcloud.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	srv, ok := f.servers[name]
	if !ok {
		return nil, nil
	}
	cp := *srv
	return &cp, nil
}

func (f *FakeCluster) listServers(_ context.Context, selector string) ([]*hcloud.Server, error) {
	sel, err := k8slabels.Parse(selector)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*hcloud.Server
	for _, srv := range f.servers {
		if sel.Matches(k8slabels.Set(srv.Labels)) {
			cp := *srv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *FakeCluster) deleteServer(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete-server", name)
	delete(f.servers, name)
	return nil
}

func (f *FakeCluster) node(_ context.Context, name string) (k8s.NodeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.nodes[name]; ok {
		return st, nil
	}
	return k8s.NodeStatus{Name: name}, nil
}

func (f *FakeCluster) listNodes(context.Context) ([]k8s.NodeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]k8s.NodeStatus, 0, len(f.nodes))
	for _, st := range f.nodes {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *FakeCluster) deleteNode(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete-node", name)
	delete(f.nodes, name)
	return nil
}

func (f *FakeCluster) version(_ context.Context, node talos.Target) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.versionErr[node.Name]; err != nil {
		return "", err
	}
	return "v1.12.4", nil
}

func (f *FakeCluster) bootstrap(_ context.Context, node talos.Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("bootstrap", node.Name)
	return nil
}

func (f *FakeCluster) reset(_ context.Context, node talos.Target) (talos.ResetOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("reset", node.Name)
	if outcome, ok := f.resetResult[node.Name]; ok && outcome != talos.ResetAcknowledged {
		return outcome, fmt.Errorf("reset of %s: %s", node.Name, outcome)
	}
	if st, ok := f.nodes[node.Name]; ok && !f.neverCordon[node.Name] {
		st.Ready = false
		st.Schedulable = false
		f.nodes[node.Name] = st
	}
	return talos.ResetAcknowledged, nil
}
