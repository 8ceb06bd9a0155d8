package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/provisioning/lifecycle"
	"github.com/imamik/oxide/internal/provisioning/scale"
	"github.com/imamik/oxide/internal/state"
)

// PoolScaler matches scale.Scaler.
type PoolScaler interface {
	Scale(ctx *provisioning.Context, pool string, target int) (*scale.Result, error)
}

// newPoolScaler creates the pool scaler - can be replaced in tests.
var newPoolScaler = func(store *state.Store) PoolScaler {
	return scale.NewScaler(store)
}

// Scale handles the scale command. It adds or removes nodes until the pool
// of role has count live nodes. An empty pool selects the first pool of role.
func Scale(ctx context.Context, opts Options, role, pool string, count int) (err error) {
	defer func() { err = finish(opts, err) }()

	r, err := config.ParseRole(role)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	p, err := cfg.ResolvePool(r, pool)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer s.close()

	res, err := newPoolScaler(s.store).Scale(s.pctx, p.Name, count)
	if res != nil {
		printScaleResult(res)
	}
	if err != nil {
		var partial *lifecycle.PartialScaleFailure
		if errors.As(err, &partial) {
			printPartialFailure(partial)
		}
		return fmt.Errorf("scale failed: %w", err)
	}
	return nil
}

func printScaleResult(res *scale.Result) {
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Pool %s: %d -> %d nodes\n", res.Pool, res.Before, res.Target)
	if len(res.Added) > 0 {
		fmt.Fprintf(stdout, "  Added:   %s\n", nodeNames(res.Added))
	}
	if len(res.Removed) > 0 {
		fmt.Fprintf(stdout, "  Removed: %s\n", nodeNames(res.Removed))
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(stdout, "  Warning: %s\n", w)
	}
}

func printPartialFailure(f *lifecycle.PartialScaleFailure) {
	fmt.Fprintln(stdout, "  Failed:")
	for _, r := range f.Failed() {
		fmt.Fprintf(stdout, "    %s (%s): %v\n", r.Node.Name, r.Node.Status, r.Err)
	}
}

func nodeNames(nodes []lifecycle.Node) string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return strings.Join(names, ", ")
}
