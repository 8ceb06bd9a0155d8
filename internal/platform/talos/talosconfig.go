package talos

import (
	"fmt"

	clientconfig "github.com/siderolabs/talos/pkg/machinery/client/config"
)

// SetEndpoints replaces the endpoints and nodes of the current talosconfig
// context so talosctl reaches the cluster over the public addresses.
func SetEndpoints(talosconfig []byte, endpoints []string) ([]byte, error) {
	cfg, err := clientconfig.FromBytes(talosconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse talosconfig: %w", err)
	}
	ctx, ok := cfg.Contexts[cfg.Context]
	if !ok || ctx == nil {
		return nil, fmt.Errorf("talosconfig has no context %q", cfg.Context)
	}
	ctx.Endpoints = append([]string(nil), endpoints...)
	if len(endpoints) > 0 {
		ctx.Nodes = []string{endpoints[0]}
	}
	return cfg.Bytes()
}
