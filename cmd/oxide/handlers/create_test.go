package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/state"
)

type creatorMock struct {
	runFunc func(ctx *provisioning.Context) error
	calls   int
}

func (m *creatorMock) Run(ctx *provisioning.Context) error {
	m.calls++
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func TestCreate(t *testing.T) {
	e := newEnv(t)

	mock := &creatorMock{runFunc: func(ctx *provisioning.Context) error {
		assert.Equal(t, "test-cluster", ctx.Config.ClusterName)
		assert.Same(t, e.fc.Infra, ctx.Infra)
		return nil
	}}
	var gotStore *state.Store
	newClusterCreator = func(store *state.Store) ClusterCreator {
		gotStore = store
		return mock
	}

	require.NoError(t, Create(context.Background(), Options{}))

	assert.Equal(t, 1, mock.calls)
	require.NotNil(t, gotStore)
	assert.Equal(t, e.cfg.State.Dir, gotStore.Dir())
	assert.Contains(t, e.out.String(), "Cluster test-cluster is ready.")
	assert.Contains(t, e.out.String(), "export KUBECONFIG="+gotStore.Path(state.KubeconfigFile))
}

func TestCreate_Failure(t *testing.T) {
	e := newEnv(t)

	newClusterCreator = func(*state.Store) ClusterCreator {
		return &creatorMock{runFunc: func(*provisioning.Context) error { return errors.New("bootstrap refused") }}
	}

	err := Create(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create failed: bootstrap refused")
	assert.NotContains(t, e.out.String(), "is ready")
}

func TestCreate_InvalidConfigCreatesNothing(t *testing.T) {
	e := newEnv(t)

	loadConfigFile = func(string) (*config.Result, error) {
		return nil, &config.ValidationError{Violations: []config.Violation{{Field: "kubernetes.pod_cidr", Message: "overlaps"}}}
	}
	mock := &creatorMock{}
	newClusterCreator = func(*state.Store) ClusterCreator { return mock }

	err := Create(context.Background(), Options{})
	require.Error(t, err)
	assert.Zero(t, mock.calls)
	assert.Empty(t, e.fc.Ops())
}

func TestCreate_EnsuresBackupBucket(t *testing.T) {
	e := newEnv(t)
	e.cfg.State.Backup = &config.BackupConfig{Bucket: "oxide-state", Endpoint: "https://fsn1.your-objectstorage.com"}

	newStore = func(_ context.Context, cfg *config.Config) (*state.Store, error) {
		return state.NewStore(cfg.State.Dir), nil
	}
	var ensured string
	ensureBackupBucket = func(_ context.Context, b *config.BackupConfig) error {
		ensured = b.Bucket
		return nil
	}
	newClusterCreator = func(*state.Store) ClusterCreator { return &creatorMock{} }

	require.NoError(t, Create(context.Background(), Options{}))
	assert.Equal(t, "oxide-state", ensured)
}

func TestCreate_BackupBucketFailure(t *testing.T) {
	e := newEnv(t)
	e.cfg.State.Backup = &config.BackupConfig{Bucket: "oxide-state", Endpoint: "https://fsn1.your-objectstorage.com"}

	ensureBackupBucket = func(context.Context, *config.BackupConfig) error { return errors.New("access denied") }
	mock := &creatorMock{}
	newClusterCreator = func(*state.Store) ClusterCreator { return mock }

	err := Create(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oxide-state")
	assert.Zero(t, mock.calls)
}

func TestCreate_WritesMetricsFile(t *testing.T) {
	newEnv(t)

	var written string
	writeMetrics = func(path string) error {
		written = path
		return nil
	}
	newClusterCreator = func(*state.Store) ClusterCreator {
		return &creatorMock{runFunc: func(*provisioning.Context) error { return errors.New("boom") }}
	}

	require.Error(t, Create(context.Background(), Options{MetricsFile: "oxide.prom"}))
	assert.Equal(t, "oxide.prom", written)
}
