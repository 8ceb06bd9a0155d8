package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/k8s"
	"github.com/imamik/oxide/internal/platform/talos"
	"github.com/imamik/oxide/internal/util/poll"
)

func TestRemove_StepOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	node := f.seeded(t, "worker", config.RoleWorker, 2)

	require.NoError(t, f.wf.Remove(f.ctx, &node))

	assert.Equal(t, StatusRemoved, node.Status)
	assert.Equal(t, []string{
		"reset demo-worker-2",
		"delete-node demo-worker-2",
		"delete-server demo-worker-2",
	}, f.fc.Ops())
	assert.Equal(t, []Status{
		StatusPrecheckOK, StatusResetIssued, StatusDraining, StatusCordoned, StatusRemoving, StatusRemoved,
	}, states(f.rec, "demo-worker-2"))
	assert.Empty(t, f.fc.ServerNames())
}

func TestRemove_Blocked(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		setup       func(f *fixture)
		wantState   Status
		wantOps     []string
		unreachable bool
		timeout     bool
	}{
		{
			name: "precheck unreachable",
			setup: func(f *fixture) {
				f.fc.FailVersion("demo-worker-2", status.Error(codes.Unavailable, "connection refused"))
			},
			wantState:   StatusReady,
			unreachable: true,
		},
		{
			name: "reset rejected",
			setup: func(f *fixture) {
				f.fc.SetResetOutcome("demo-worker-2", talos.ResetRejected)
			},
			wantState: StatusPrecheckOK,
			wantOps:   []string{"reset demo-worker-2"},
		},
		{
			name: "reset unreachable",
			setup: func(f *fixture) {
				f.fc.SetResetOutcome("demo-worker-2", talos.ResetUnreachable)
			},
			wantState:   StatusPrecheckOK,
			wantOps:     []string{"reset demo-worker-2"},
			unreachable: true,
		},
		{
			name: "never cordoned",
			setup: func(f *fixture) {
				f.fc.NeverCordon("demo-worker-2")
				f.ctx.Timeouts.Cordon = 50 * time.Millisecond
			},
			wantState: StatusResetIssued,
			wantOps:   []string{"reset demo-worker-2"},
			timeout:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			node := f.seeded(t, "worker", config.RoleWorker, 2)
			tt.setup(f)

			err := f.wf.Remove(f.ctx, &node)
			require.Error(t, err)

			var blocked *RemovalBlockedError
			require.ErrorAs(t, err, &blocked)
			assert.Equal(t, "demo-worker-2", blocked.Node)
			assert.Equal(t, tt.wantState, blocked.State)
			assert.Equal(t, StatusBlocked, node.Status)
			assert.Equal(t, tt.wantOps, f.fc.Ops())
			assert.Equal(t, []string{"demo-worker-2"}, f.fc.ServerNames())

			var ue *talos.UnreachableError
			assert.Equal(t, tt.unreachable, errors.As(err, &ue))
			if tt.unreachable {
				assert.Equal(t, talos.FirewallHint, ue.Hint)
				assert.Contains(t, err.Error(), "check firewall allow-list for your current address")
			}
			assert.Equal(t, tt.timeout, poll.IsTimeout(err))
		})
	}
}

func TestRemove_ResumesAfterAcknowledgedReset(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	node := f.seeded(t, "worker", config.RoleWorker, 2)

	// An interrupted run got the reset through, then the node powered down.
	outcome, err := f.fc.Talos.Reset(context.Background(), node.Target())
	require.NoError(t, err)
	require.Equal(t, talos.ResetAcknowledged, outcome)
	f.fc.FailVersion("demo-worker-2", status.Error(codes.Unavailable, "connection refused"))
	f.fc.ResetOps()

	require.NoError(t, f.wf.Remove(f.ctx, &node))

	assert.Equal(t, StatusRemoved, node.Status)
	assert.Equal(t, []string{
		"delete-node demo-worker-2",
		"delete-server demo-worker-2",
	}, f.fc.Ops())
	assert.Equal(t, []Status{
		StatusPrecheckOK, StatusResetIssued, StatusCordoned, StatusRemoving, StatusRemoved,
	}, states(f.rec, "demo-worker-2"))
	assert.Empty(t, f.fc.ServerNames())
}

func TestRemove_ResumesAfterNodeObjectDeleted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	node := f.seeded(t, "worker", config.RoleWorker, 2)

	require.NoError(t, f.fc.Kube.DeleteNode(context.Background(), "demo-worker-2"))
	f.fc.FailVersion("demo-worker-2", status.Error(codes.Unavailable, "connection refused"))
	f.fc.ResetOps()

	require.NoError(t, f.wf.Remove(f.ctx, &node))
	assert.Empty(t, f.fc.OpsOf("reset"))
	assert.Equal(t, []string{"demo-worker-2"}, f.fc.OpsOf("delete-server"))
}

func TestRemove_NodeObjectAlreadyGone(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	node := f.seeded(t, "worker", config.RoleWorker, 1)
	f.fc.Kube.NodeFunc = func(_ context.Context, name string) (k8s.NodeStatus, error) {
		return k8s.NodeStatus{Name: name}, nil
	}

	require.NoError(t, f.wf.Remove(f.ctx, &node))
	assert.Equal(t, StatusRemoved, node.Status)
}

func TestRemove_DeleteNodeFailureKeepsServer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	node := f.seeded(t, "worker", config.RoleWorker, 1)
	f.fc.Kube.DeleteNodeFunc = func(context.Context, string) error {
		return errors.New("forbidden")
	}

	err := f.wf.Remove(f.ctx, &node)
	var blocked *RemovalBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, StatusCordoned, blocked.State)
	assert.Empty(t, f.fc.OpsOf("delete-server"))
}

func TestRemoveAll_StopsAtFirstBlockedNode(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var nodes []Node
	for _, i := range []int{5, 4, 3} {
		nodes = append(nodes, f.seeded(t, "worker", config.RoleWorker, i))
	}
	f.fc.FailVersion("demo-worker-4", context.DeadlineExceeded)

	removed, err := f.wf.RemoveAll(f.ctx, nodes)
	require.Error(t, err)

	require.Len(t, removed, 1)
	assert.Equal(t, "demo-worker-5", removed[0].Name)

	var blocked *RemovalBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "demo-worker-4", blocked.Node)
	assert.Equal(t, []string{"demo-worker-3"}, blocked.Abandoned)
	assert.Contains(t, err.Error(), "demo-worker-4")
	assert.Contains(t, err.Error(), talos.FirewallHint)
	assert.Contains(t, err.Error(), "not attempted: demo-worker-3")

	assert.Equal(t, []string{"demo-worker-3", "demo-worker-4"}, f.fc.ServerNames())
	assert.Equal(t, []string{"demo-worker-5"}, f.fc.OpsOf("delete-server"))
}

func TestRemovalBlockedError(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	err := &RemovalBlockedError{Node: "demo-worker-4", State: StatusPrecheckOK, Err: inner}
	assert.Equal(t, "removal of demo-worker-4 blocked in state PrecheckOK: boom", err.Error())
	assert.ErrorIs(t, err, inner)
}
