package lifecycle_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/platform/talos"
	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/provisioning/infrastructure"
	"github.com/imamik/oxide/internal/provisioning/lifecycle"
	"github.com/imamik/oxide/internal/state"
	testutil "github.com/imamik/oxide/internal/testing"
	"github.com/imamik/oxide/internal/util/poll"
)

func nodeStates(rec *provisioning.RecordingObserver, name string) []lifecycle.Status {
	var out []lifecycle.Status
	for _, e := range rec.EventsOfType(provisioning.EventNodeState) {
		if e.Resource == name {
			out = append(out, lifecycle.Status(e.Fields["state"]))
		}
	}
	return out
}

var _ = Describe("Node lifecycle", func() {
	var (
		fc  *testutil.FakeCluster
		ctx *provisioning.Context
		rec *provisioning.RecordingObserver
		wf  *lifecycle.Workflows
		cfg *config.Config
	)

	BeforeEach(func() {
		cfg = testutil.NewConfigBuilder().
			WithClusterName("demo").
			WithPool("worker", config.RoleWorker, 2).
			Build(GinkgoT())
		fc = testutil.NewFakeCluster("demo")
		ctx, rec = testutil.NewProvisioningContext(GinkgoT(), cfg, fc.Infra)
		wf = lifecycle.NewWorkflows(lifecycle.Deps{
			Talos:     fc.Talos,
			Kube:      fc.Kube,
			Bundle:    &state.Bundle{ControlPlane: []byte("cp"), Worker: []byte("worker")},
			Resources: &infrastructure.Resources{NetworkID: 1, SSHKeyID: 3},
		})
	})

	workerPool := func() config.NodePool {
		p, ok := cfg.Pool("worker")
		Expect(ok).To(BeTrue())
		return *p
	}

	Describe("adding a node", func() {
		It("goes through Provisioning and Joining to Ready", func() {
			node, err := wf.Add(ctx, lifecycle.AddRequest{Pool: workerPool(), Index: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(node.Status).To(Equal(lifecycle.StatusReady))
			Expect(nodeStates(rec, "demo-worker-3")).To(Equal([]lifecycle.Status{
				lifecycle.StatusProvisioning, lifecycle.StatusJoining, lifecycle.StatusReady,
			}))
		})

		It("ends Failed with a timeout when the node never becomes Ready", func() {
			fc.NeverReady("demo-worker-3")
			ctx.Timeouts.NodeReady = 30 * time.Millisecond

			node, err := wf.Add(ctx, lifecycle.AddRequest{Pool: workerPool(), Index: 3})
			Expect(poll.IsTimeout(err)).To(BeTrue())
			Expect(node.Status).To(Equal(lifecycle.StatusFailed))
			Expect(fc.ServerNames()).To(ContainElement("demo-worker-3"))
		})
	})

	Describe("removing a node", func() {
		var node lifecycle.Node

		BeforeEach(func() {
			srv := fc.SeedNode("worker", config.RoleWorker, 2)
			var ok bool
			node, ok = lifecycle.NodeFromServer("demo", srv)
			Expect(ok).To(BeTrue())
		})

		It("deletes the server only after the node object", func() {
			Expect(wf.Remove(ctx, &node)).To(Succeed())
			Expect(fc.Ops()).To(Equal([]string{
				"reset demo-worker-2",
				"delete-node demo-worker-2",
				"delete-server demo-worker-2",
			}))
			Expect(node.Status).To(Equal(lifecycle.StatusRemoved))
		})

		It("waits for the node to be cordoned before deleting anything", func() {
			fc.NeverCordon("demo-worker-2")
			ctx.Timeouts.Cordon = 30 * time.Millisecond

			err := wf.Remove(ctx, &node)
			var blocked *lifecycle.RemovalBlockedError
			Expect(err).To(BeAssignableToTypeOf(blocked))
			Expect(fc.OpsOf("delete-node")).To(BeEmpty())
			Expect(fc.OpsOf("delete-server")).To(BeEmpty())
			Expect(fc.NodeStatus("demo-worker-2").Ready).To(BeTrue())
		})

		It("never resets a node that fails the precheck", func() {
			fc.FailVersion("demo-worker-2", status.Error(codes.Unavailable, "no route to host"))

			err := wf.Remove(ctx, &node)
			Expect(err).To(MatchError(ContainSubstring(talos.FirewallHint)))
			Expect(fc.Ops()).To(BeEmpty())
			Expect(node.Status).To(Equal(lifecycle.StatusBlocked))
		})

		DescribeTable("reset outcomes",
			func(outcome talos.ResetOutcome, wantErr bool) {
				fc.SetResetOutcome("demo-worker-2", outcome)
				err := wf.Remove(ctx, &node)
				if wantErr {
					Expect(err).To(HaveOccurred())
					Expect(fc.OpsOf("delete-server")).To(BeEmpty())
				} else {
					Expect(err).NotTo(HaveOccurred())
					Expect(fc.OpsOf("delete-server")).To(ConsistOf("demo-worker-2"))
				}
			},
			Entry("acknowledged continues", talos.ResetAcknowledged, false),
			Entry("rejected blocks", talos.ResetRejected, true),
			Entry("unreachable blocks", talos.ResetUnreachable, true),
		)
	})
})
