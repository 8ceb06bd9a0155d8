package testing

import (
	"context"
	"time"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/platform/hcloud"
	"github.com/imamik/oxide/internal/provisioning"
)

// TB is the part of testing.TB the helpers use. Both *testing.T and
// GinkgoT() satisfy it.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
	Cleanup(func())
}

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// NewProvisioningContext returns a provisioning context with short test
// timeouts and an observer that records every event.
func NewProvisioningContext(t TB, cfg *config.Config, infra hcloud.InfrastructureManager) (*provisioning.Context, *provisioning.RecordingObserver) {
	t.Helper()
	rec := provisioning.NewRecordingObserver()
	ctx := provisioning.NewContext(TestContext(t), cfg, infra, rec)
	ctx.Timeouts = config.TestTimeouts()
	return ctx, rec
}
