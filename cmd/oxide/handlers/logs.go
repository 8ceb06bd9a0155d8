package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/platform/hcloud"
	"github.com/imamik/oxide/internal/provisioning/lifecycle"
)

// DefaultLogService is the service whose logs are shown by default.
const DefaultLogService = "kubelet"

// Logs handles the logs command. It prints the last tail lines of a node
// service through the Talos API. node is the server name, with or without
// the cluster prefix.
func Logs(ctx context.Context, opts Options, node, service string, tail int) (err error) {
	defer func() { err = finish(opts, err) }()

	if tail < 0 {
		return fmt.Errorf("--tail must not be negative, got %d", tail)
	}
	if service == "" {
		service = DefaultLogService
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	bundle, err := store.Bundle()
	if err != nil {
		return err
	}

	timeouts := config.LoadTimeouts()
	srv, err := findServer(ctx, newInfraClient(cfg.HCloud.Token, timeouts), cfg.ClusterName, node)
	if err != nil {
		return err
	}
	n, ok := lifecycle.NodeFromServer(cfg.ClusterName, srv)
	if !ok {
		return fmt.Errorf("server %s is not a node of cluster %s", srv.Name, cfg.ClusterName)
	}

	api, err := newNodeAPI(bundle.Talosconfig, timeouts.TalosCall)
	if err != nil {
		return err
	}
	if err := api.Logs(ctx, n.Target(), service, int32(tail), stdout); err != nil {
		return fmt.Errorf("failed to read %s logs of %s: %w", service, n.Name, err)
	}
	return nil
}

func findServer(ctx context.Context, infra hcloud.ServerProvisioner, cluster, node string) (*hcloud.Server, error) {
	names := []string{node}
	if !strings.HasPrefix(node, cluster+"-") {
		names = append(names, cluster+"-"+node)
	}
	for _, name := range names {
		srv, err := infra.GetServer(ctx, name)
		if err != nil {
			return nil, err
		}
		if srv != nil {
			return srv, nil
		}
	}
	return nil, fmt.Errorf("node %s not found in cluster %s", node, cluster)
}
