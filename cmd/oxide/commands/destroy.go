package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/oxide/cmd/oxide/handlers"
)

// Destroy returns the destroy command.
func Destroy(opts *handlers.Options) *cobra.Command {
	var dopts handlers.DestroyOptions

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy a Kubernetes cluster and all associated resources",
		Long: `Destroy removes all cluster resources from Hetzner Cloud.

Servers are deleted first, then the firewall, the network and the SSH key.
If a server cannot be deleted the cluster-wide resources are kept and
destroy can be run again.

The state directory is kept unless --purge is given.

Example:
  oxide destroy -c oxide.yaml --yes

WARNING: This operation is irreversible. All cluster data will be lost.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), *opts, dopts)
		},
	}

	cmd.Flags().BoolVar(&dopts.Purge, "purge", false, "Also remove the state directory contents and their backup")
	cmd.Flags().BoolVarP(&dopts.Yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
