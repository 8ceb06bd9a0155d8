package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/oxide/cmd/oxide/handlers"
)

// Scale returns the scale command.
func Scale(opts *handlers.Options) *cobra.Command {
	var (
		count int
		pool  string
	)

	cmd := &cobra.Command{
		Use:   "scale <control-plane|worker>",
		Short: "Change the number of nodes of a role",
		Long: `Scale adds or removes nodes until the pool has the requested size.
The pool is the first one of the given role unless --pool names another.

New nodes get indices above any index the pool ever used. Nodes are
removed highest index first, one at a time: each node is reset through
the Talos API, waits until it is NotReady and cordoned, is deleted from
Kubernetes and finally its server is deleted. A failure stops the
removal and leaves the remaining nodes untouched.

Examples:
  oxide scale worker --count 5
  oxide scale worker --count 2 --pool gpu
  oxide scale control-plane --count 3`,
		ValidArgs: []string{"control-plane", "worker"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Scale(cmd.Context(), *opts, args[0], pool, count)
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Target number of nodes (required)")
	cmd.Flags().StringVar(&pool, "pool", "", "Node pool to scale (default: first pool of the role)")
	_ = cmd.MarkFlagRequired("count")

	return cmd
}
