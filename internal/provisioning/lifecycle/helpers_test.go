package lifecycle

import (
	"testing"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/provisioning/infrastructure"
	"github.com/imamik/oxide/internal/state"
	testutil "github.com/imamik/oxide/internal/testing"
)

type fixture struct {
	fc  *testutil.FakeCluster
	ctx *provisioning.Context
	rec *provisioning.RecordingObserver
	wf  *Workflows
	cfg *config.Config
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	cfg := testutil.NewConfigBuilder().
		WithClusterName("demo").
		WithPool("worker", config.RoleWorker, 2).
		Build(t)
	fc := testutil.NewFakeCluster("demo")
	ctx, rec := testutil.NewProvisioningContext(t, cfg, fc.Infra)
	wf := NewWorkflows(Deps{
		Talos:     fc.Talos,
		Kube:      fc.Kube,
		Bundle:    testBundle(),
		Resources: &infrastructure.Resources{NetworkID: 1, FirewallID: 2, SSHKeyID: 3},
	})
	return &fixture{fc: fc, ctx: ctx, rec: rec, wf: wf, cfg: cfg}
}

func testBundle() *state.Bundle {
	return &state.Bundle{
		Secrets:      []byte("secrets"),
		ControlPlane: []byte("controlplane-config"),
		Worker:       []byte("worker-config"),
		Talosconfig:  []byte("talosconfig"),
	}
}

func (f *fixture) pool(name string) config.NodePool {
	p, ok := f.cfg.Pool(name)
	if !ok {
		panic("unknown pool " + name)
	}
	return *p
}

// states returns the node states reported for node, in order.
func states(rec *provisioning.RecordingObserver, node string) []Status {
	var out []Status
	for _, e := range rec.EventsOfType(provisioning.EventNodeState) {
		if e.Resource == node {
			out = append(out, Status(e.Fields["state"]))
		}
	}
	return out
}

// seeded returns the live node of pool at index as the scaler would see it.
func (f *fixture) seeded(t testing.TB, pool string, role config.Role, index int) Node {
	t.Helper()
	srv := f.fc.SeedNode(pool, role, index)
	node, ok := NodeFromServer("demo", srv)
	if !ok {
		t.Fatalf("seeded server %s not recognised", srv.Name)
	}
	return node
}
