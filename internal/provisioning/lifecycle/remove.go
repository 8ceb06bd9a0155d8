package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/oxide/internal/metrics"
	"github.com/imamik/oxide/internal/platform/talos"
	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/util/poll"
)

// Remove takes one node out of the cluster and deletes its server. Each step
// must be confirmed before the next one starts; the first unconfirmed step
// leaves the node Blocked and returns a *RemovalBlockedError.
func (w *Workflows) Remove(ctx *provisioning.Context, node *Node) error {
	start := time.Now()
	err := w.remove(ctx, node)
	if err != nil {
		setStatus(ctx, node, StatusBlocked)
	}
	metrics.RecordNodeRemoval(ctx.Config.ClusterName, node.Pool, string(node.Status), time.Since(start))
	return err
}

func (w *Workflows) remove(ctx *provisioning.Context, node *Node) error {
	target := node.Target()
	blocked := func(reached Status, err error) error {
		return &RemovalBlockedError{Node: node.Name, State: reached, Err: err}
	}

	if _, err := w.deps.Talos.Version(ctx, target); err != nil {
		if !w.alreadyLeft(ctx, node.Name) {
			return blocked(node.Status, withFirewallHint(target, err))
		}
		// An earlier run got the reset acknowledged; the node is powered down.
		ctx.Observer.Printf("[%s] %s no longer answers but has already left the cluster, resuming removal", phase, node.Name)
		setStatus(ctx, node, StatusPrecheckOK)
		setStatus(ctx, node, StatusResetIssued)
		setStatus(ctx, node, StatusCordoned)
	} else if err := w.leave(ctx, node, target, blocked); err != nil {
		return err
	}

	setStatus(ctx, node, StatusRemoving)
	provisioning.LogResourceDeleting(ctx.Observer, phase, "node", node.Name)
	if err := w.deps.Kube.DeleteNode(ctx, node.Name); err != nil {
		return blocked(StatusCordoned, fmt.Errorf("failed to delete node object: %w", err))
	}

	provisioning.LogResourceDeleting(ctx.Observer, phase, "server", node.Name)
	if err := ctx.Infra.DeleteServer(ctx, node.Name); err != nil {
		return blocked(StatusRemoving, fmt.Errorf("failed to delete server: %w", err))
	}
	provisioning.LogResourceDeleted(ctx.Observer, phase, "server", node.Name)
	w.forgetServer(node.Name)

	setStatus(ctx, node, StatusRemoved)
	return nil
}

// leave resets a reachable node and waits until the cluster API shows it
// cordoned.
func (w *Workflows) leave(ctx *provisioning.Context, node *Node, target talos.Target, blocked func(Status, error) error) error {
	setStatus(ctx, node, StatusPrecheckOK)

	outcome, err := w.deps.Talos.Reset(ctx, target)
	switch outcome {
	case talos.ResetAcknowledged:
	case talos.ResetUnreachable:
		if err == nil {
			err = errors.New("no connection could be made")
		}
		return blocked(StatusPrecheckOK, withFirewallHint(target, err))
	default:
		if err == nil {
			err = errors.New("reset refused")
		}
		return blocked(StatusPrecheckOK, fmt.Errorf("node %s rejected the reset: %w", node.Name, err))
	}
	setStatus(ctx, node, StatusResetIssued)

	setStatus(ctx, node, StatusDraining)
	if err := w.waitCordoned(ctx, node.Name); err != nil {
		return blocked(StatusResetIssued, err)
	}
	setStatus(ctx, node, StatusCordoned)
	return nil
}

// alreadyLeft reports whether the cluster API shows the node cordoned, which
// after an unanswered precheck means an earlier reset went through.
func (w *Workflows) alreadyLeft(ctx *provisioning.Context, name string) bool {
	if w.deps.Kube == nil {
		return false
	}
	st, err := w.deps.Kube.Node(ctx, name)
	return err == nil && st.Cordoned()
}

// waitCordoned polls until the node is NotReady and unschedulable. A node
// object that is already gone stands in for that state: the only way it
// disappears mid-removal is an earlier run that got past this step.
func (w *Workflows) waitCordoned(ctx *provisioning.Context, name string) error {
	return poll.Until(ctx, poll.Spec{
		What:     fmt.Sprintf("node %s NotReady and SchedulingDisabled", name),
		Interval: ctx.Timeouts.CordonPoll,
		Timeout:  ctx.Timeouts.Cordon,
	}, func(pctx context.Context) (bool, error) {
		st, err := w.deps.Kube.Node(pctx, name)
		if err != nil {
			return false, nil
		}
		return st.Cordoned(), nil
	})
}

func withFirewallHint(target talos.Target, err error) error {
	var unreachable *talos.UnreachableError
	if errors.As(err, &unreachable) {
		if unreachable.Hint == "" {
			unreachable.Hint = talos.FirewallHint
		}
		return err
	}
	return &talos.UnreachableError{
		Node:    target.Name,
		Address: target.Address,
		Err:     err,
		Hint:    talos.FirewallHint,
	}
}

// RemoveAll removes nodes one at a time in the given order and stops at the
// first blocked node. The error names the nodes that were not attempted.
func (w *Workflows) RemoveAll(ctx *provisioning.Context, nodes []Node) ([]Node, error) {
	var removed []Node
	for i := range nodes {
		node := nodes[i]
		ctx.Observer.Progress(phase, i+1, len(nodes))
		if err := w.Remove(ctx, &node); err != nil {
			var blocked *RemovalBlockedError
			if errors.As(err, &blocked) {
				for _, rest := range nodes[i+1:] {
					blocked.Abandoned = append(blocked.Abandoned, rest.Name)
				}
			}
			return removed, err
		}
		removed = append(removed, node)
	}
	return removed, nil
}
