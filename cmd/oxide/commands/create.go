package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/oxide/cmd/oxide/handlers"
)

// Create returns the create command.
func Create(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a Kubernetes cluster",
		Long: `Create provisions a complete cluster from the configuration file.

Steps:
  1. Network, firewall, SSH key and the first control plane server
  2. etcd bootstrap on the first control plane (once per cluster)
  3. Wait for the Kubernetes API
  4. Save kubeconfig and talosconfig to the state directory
  5. Remaining control plane and worker servers
  6. Cilium with Gateway API support
  7. Wait until every node is Ready

Running create again after a failure resumes from the existing resources.

Example:
  oxide create -c oxide.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Create(cmd.Context(), *opts)
		},
	}
}
