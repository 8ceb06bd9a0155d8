package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/charmbracelet/huh"

	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/provisioning/destroy"
)

// Provisioner interface for testing - matches provisioning.Phase.
type Provisioner interface {
	Provision(ctx *provisioning.Context) error
}

// DestroyOptions are the flags of the destroy command.
type DestroyOptions struct {
	// Purge removes the state directory contents after the resources are gone.
	Purge bool
	// Yes skips the confirmation prompt.
	Yes bool
}

// errNotConfirmed is returned when no terminal is available to confirm.
var errNotConfirmed = errors.New("refusing to destroy without confirmation, pass --yes")

// Factory function variables for destroy - can be replaced in tests.
var (
	// newDestroyProvisioner creates a new destroy provisioner.
	newDestroyProvisioner = func() Provisioner {
		return destroy.NewProvisioner()
	}

	// confirmDestroy asks the user to confirm the deletion of cluster.
	confirmDestroy = func(cluster string) (bool, error) {
		if !isTerminal() {
			return false, errNotConfirmed
		}
		var ok bool
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Destroy cluster %s?", cluster)).
			Description("Every server, the firewall, the network and the SSH key are deleted.").
			Affirmative("Destroy").
			Negative("Cancel").
			Value(&ok).
			Run()
		return ok, err
	}
)

// Destroy handles the destroy command.
//
// It deletes every server of the cluster, then the firewall, the network and
// the SSH key. The state directory is kept unless Purge is set so a failed
// teardown can be inspected and repeated.
func Destroy(ctx context.Context, opts Options, dopts DestroyOptions) (err error) {
	defer func() { err = finish(opts, err) }()

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	if !dopts.Yes {
		ok, err := confirmDestroy(cfg.ClusterName)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	log.Printf("Destroying cluster: %s", cfg.ClusterName)

	s, err := openSession(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer s.close()

	if err := newDestroyProvisioner().Provision(s.pctx); err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	if dopts.Purge {
		if err := s.store.Purge(ctx); err != nil {
			return fmt.Errorf("cluster destroyed but state could not be purged: %w", err)
		}
		log.Printf("Purged state directory %s", s.store.Dir())
	} else {
		if err := s.store.ForgetCluster(ctx); err != nil {
			return fmt.Errorf("cluster destroyed but its kubeconfig and state.yaml could not be removed: %w", err)
		}
		log.Printf("Machine configuration kept in %s, pass --purge to remove it", s.store.Dir())
	}

	log.Printf("Cluster %s destroyed successfully", cfg.ClusterName)
	return nil
}
