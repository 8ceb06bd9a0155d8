// Package main is the entry point for the oxide CLI.
//
// oxide provisions Kubernetes clusters on Hetzner Cloud using Talos Linux
// and Cilium, and scales their node pools one node at a time.
//
// Commands: init, create, scale, status, logs, destroy, version.
//
// For detailed usage information, run:
//
//	oxide --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/oxide/cmd/oxide/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
