package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/oxide/cmd/oxide/handlers"
)

// Init returns the command that writes an example configuration.
//
// Flags:
//
//	--output, -o: Path to output file (default "oxide.yaml")
//	--defaults: Write the defaults without asking
func Init() *cobra.Command {
	var (
		outputPath  string
		useDefaults bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a cluster configuration file",
		Long: `Init writes a cluster configuration file.

On a terminal it asks for the cluster name, location and node pool sizes.
Otherwise, or with --defaults, it writes a three control plane, two worker
cluster in nbg1. The Hetzner Cloud token is read from HCLOUD_TOKEN and is
never written to the file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath, useDefaults)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", handlers.DefaultConfigPath, "Path to output file")
	cmd.Flags().BoolVar(&useDefaults, "defaults", false, "Write the defaults without asking")

	return cmd
}
