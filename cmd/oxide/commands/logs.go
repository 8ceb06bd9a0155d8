package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/oxide/cmd/oxide/handlers"
)

// Logs returns the logs command.
func Logs(opts *handlers.Options) *cobra.Command {
	var (
		service string
		tail    int
	)

	cmd := &cobra.Command{
		Use:   "logs <node>",
		Short: "Print service logs of a node",
		Long: `Logs prints the last lines of a node service through the Talos API.

The node is the server name, with or without the cluster name prefix.

Example:
  oxide logs worker-3 --service kubelet --tail 200`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Logs(cmd.Context(), *opts, args[0], service, tail)
		},
	}

	cmd.Flags().StringVarP(&service, "service", "s", handlers.DefaultLogService, "Talos service name")
	cmd.Flags().IntVarP(&tail, "tail", "n", 100, "Number of lines to show")

	return cmd
}
