// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/oxide/cmd/oxide/handlers"
)

// Root returns the root command for the oxide CLI. The flags shared by every
// command are bound once here and handed to the subcommands.
func Root() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:           "oxide",
		Short:         "Provision Kubernetes on Hetzner Cloud using Talos",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", handlers.DefaultConfigPath, "Path to cluster configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", handlers.LogFormatText, "Log format: text or json")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file when the command ends")

	cmd.AddCommand(Init())
	cmd.AddCommand(Create(opts))
	cmd.AddCommand(Scale(opts))
	cmd.AddCommand(Status(opts))
	cmd.AddCommand(Logs(opts))
	cmd.AddCommand(Destroy(opts))
	cmd.AddCommand(Version())

	return cmd
}
