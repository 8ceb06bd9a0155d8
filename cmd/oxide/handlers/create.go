package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/provisioning/cluster"
	"github.com/imamik/oxide/internal/state"
)

// ClusterCreator matches cluster.Sequencer.
type ClusterCreator interface {
	Run(ctx *provisioning.Context) error
}

// newClusterCreator creates the bootstrap sequencer - can be replaced in tests.
var newClusterCreator = func(store *state.Store) ClusterCreator {
	return cluster.NewSequencer(store)
}

// Create handles the create command.
//
// It provisions the infrastructure, bootstraps the first control plane,
// joins the remaining nodes, installs Cilium and waits until every node is
// Ready. Running it again on a partially created cluster resumes: existing
// servers are reused and bootstrap is never repeated.
func Create(ctx context.Context, opts Options) (err error) {
	defer func() { err = finish(opts, err) }()

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	log.Printf("Creating cluster: %s", cfg.ClusterName)

	if b := cfg.State.Backup; b != nil {
		if err := ensureBackupBucket(ctx, b); err != nil {
			return fmt.Errorf("failed to prepare backup bucket %s: %w", b.Bucket, err)
		}
	}

	s, err := openSession(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer s.close()

	if err := newClusterCreator(s.store).Run(s.pctx); err != nil {
		return fmt.Errorf("create failed: %w", err)
	}

	printCreateSuccess(cfg, s.store)
	return nil
}

func printCreateSuccess(cfg *config.Config, store *state.Store) {
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Cluster %s is ready.\n", cfg.ClusterName)
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Control planes: %d\n", cfg.ControlPlaneCount())
	fmt.Fprintf(stdout, "  Workers:        %d\n", cfg.WorkerCount())
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Access the cluster:")
	fmt.Fprintf(stdout, "  export KUBECONFIG=%s\n", store.Path(state.KubeconfigFile))
	fmt.Fprintf(stdout, "  export TALOSCONFIG=%s\n", store.Path(state.TalosconfigFile))
	fmt.Fprintln(stdout, "  kubectl get nodes")
}
