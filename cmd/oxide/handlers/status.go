package handlers

import (
	"context"
	"fmt"
	"sort"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/k8s"
	"github.com/imamik/oxide/internal/platform/hcloud"
	"github.com/imamik/oxide/internal/provisioning/lifecycle"
	"github.com/imamik/oxide/internal/util/labels"
)

// statusRow is one server of the status table.
type statusRow struct {
	Name      string
	Pool      string
	Role      string
	Server    string
	PublicIP  string
	PrivateIP string
	Node      string
}

// Status handles the status command. It lists the servers of the cluster
// and, once a kubeconfig exists, the readiness of their nodes.
func Status(ctx context.Context, opts Options) (err error) {
	defer func() { err = finish(opts, err) }()

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	infra := newInfraClient(cfg.HCloud.Token, config.LoadTimeouts())
	servers, err := infra.ListServers(ctx, labels.SelectorForCluster(cfg.ClusterName))
	if err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}

	nodes, kubeErr := readNodes(ctx, cfg)
	rows := buildStatusRows(cfg.ClusterName, servers, nodes)
	fmt.Fprint(stdout, renderStatus(cfg.ClusterName, rows, kubeErr))
	return nil
}

// readNodes returns the cluster API nodes by name. A nil map means the
// cluster API was not queried because no kubeconfig exists yet.
func readNodes(ctx context.Context, cfg *config.Config) (map[string]k8s.NodeStatus, error) {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if !store.HasBundle() {
		return nil, nil
	}
	bundle, err := store.Bundle()
	if err != nil {
		return nil, err
	}
	if len(bundle.Kubeconfig) == 0 {
		return nil, nil
	}

	kube, err := newKubeClient(bundle.Kubeconfig)
	if err != nil {
		return nil, err
	}
	list, err := kube.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("cluster API unreachable: %w", err)
	}
	nodes := make(map[string]k8s.NodeStatus, len(list))
	for _, n := range list {
		nodes[n.Name] = n
	}
	return nodes, nil
}

// buildStatusRows orders servers by role, pool and index. Servers outside
// the naming scheme are listed last.
func buildStatusRows(cluster string, servers []*hcloud.Server, nodes map[string]k8s.NodeStatus) []statusRow {
	type keyed struct {
		node lifecycle.Node
		ok   bool
		srv  *hcloud.Server
	}
	items := make([]keyed, 0, len(servers))
	for _, srv := range servers {
		n, ok := lifecycle.NodeFromServer(cluster, srv)
		items = append(items, keyed{node: n, ok: ok, srv: srv})
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.ok != b.ok {
			return a.ok
		}
		if a.node.Role != b.node.Role {
			return a.node.Role == config.RoleControlPlane
		}
		if a.node.Pool != b.node.Pool {
			return a.node.Pool < b.node.Pool
		}
		if a.node.Index != b.node.Index {
			return a.node.Index < b.node.Index
		}
		return a.srv.Name < b.srv.Name
	})

	rows := make([]statusRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, statusRow{
			Name:      it.srv.Name,
			Pool:      orDash(it.node.Pool),
			Role:      orDash(it.srv.Labels[labels.KeyRole]),
			Server:    orDash(it.srv.Status),
			PublicIP:  orDash(it.srv.PublicIP),
			PrivateIP: orDash(it.srv.PrivateIP),
			Node:      nodeState(nodes, it.srv.Name),
		})
	}
	return rows
}

func nodeState(nodes map[string]k8s.NodeStatus, name string) string {
	if nodes == nil {
		return "-"
	}
	n, ok := nodes[name]
	if !ok {
		return "NotJoined"
	}
	s := "NotReady"
	if n.Ready {
		s = "Ready"
	}
	if !n.Schedulable {
		s += ",SchedulingDisabled"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
