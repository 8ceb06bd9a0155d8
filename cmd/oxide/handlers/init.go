package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/imamik/oxide/internal/config"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// runWizard asks for the example options.
	runWizard = config.RunWizard

	// writeFile writes data to a file.
	writeFile = os.WriteFile
)

// Init writes an example configuration to outputPath. On a terminal the
// values are asked interactively unless useDefaults is set.
func Init(ctx context.Context, outputPath string, useDefaults bool) error {
	if fileExists(outputPath) {
		fmt.Fprintf(stdout, "Warning: %s already exists and will be overwritten.\n\n", outputPath)
	}

	opts := config.DefaultExampleOptions()
	if !useDefaults && isTerminal() {
		var err error
		if opts, err = runWizard(ctx); err != nil {
			return err
		}
	}

	cfg := config.Example(opts)
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := writeFile(outputPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath, cfg)
	return nil
}

func printInitSuccess(outputPath string, cfg *config.Config) {
	fmt.Fprintln(stdout, "Configuration saved!")
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  File:           %s\n", outputPath)
	fmt.Fprintf(stdout, "  Cluster:        %s\n", cfg.ClusterName)
	fmt.Fprintf(stdout, "  Location:       %s\n", cfg.HCloud.Location)
	for _, p := range cfg.NodePools {
		fmt.Fprintf(stdout, "  Pool %-10s %d x %s (%s)\n", p.Name+":", p.Count, p.ServerType, p.Role)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Next Steps")
	fmt.Fprintln(stdout, "----------")
	fmt.Fprintln(stdout, "  1. Set your Hetzner Cloud API token:")
	fmt.Fprintln(stdout, "     export HCLOUD_TOKEN=<your-token>")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "  2. Create your cluster:")
	fmt.Fprintf(stdout, "     oxide create -c %s\n", outputPath)
}
