package helm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chartutil"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	kubefake "helm.sh/helm/v3/pkg/kube/fake"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/repo"
	"helm.sh/helm/v3/pkg/storage"
	"helm.sh/helm/v3/pkg/storage/driver"
)

const testKubeconfig = `apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://127.0.0.1:6443
    insecure-skip-tls-verify: true
  name: demo
contexts:
- context:
    cluster: demo
    user: admin
    namespace: default
  name: admin@demo
current-context: admin@demo
users:
- name: admin
  user:
    token: test-token
`

func testChart(version string) *chart.Chart {
	return &chart.Chart{
		Metadata: &chart.Metadata{
			APIVersion: chart.APIVersionV2,
			Name:       "cilium",
			Version:    version,
		},
		Templates: []*chart.File{
			{Name: "templates/configmap.yaml", Data: []byte(`apiVersion: v1
kind: ConfigMap
metadata:
  name: cilium-config
data:
  tunnel-protocol: {{ .Values.tunnelProtocol | quote }}
`)},
		},
		Values: map[string]interface{}{"tunnelProtocol": "geneve"},
	}
}

// testActionClient returns a Client backed by in-memory release storage and
// a kube client that accepts everything.
func testActionClient(t *testing.T) *Client {
	t.Helper()
	return &Client{
		namespace: "kube-system",
		timeout:   time.Second,
		actionConfig: &action.Configuration{
			Releases:     storage.Init(driver.NewMemory()),
			KubeClient:   &kubefake.PrintingKubeClient{Out: io.Discard},
			Capabilities: chartutil.DefaultCapabilities,
			Log:          func(string, ...interface{}) {},
		},
		loadChart: func(spec ChartSpec) (*chart.Chart, error) {
			return testChart(spec.Version), nil
		},
	}
}

func TestInstallOrUpgrade(t *testing.T) {
	t.Parallel()

	c := testActionClient(t)
	spec := ChartSpec{Repository: "https://helm.cilium.io", Name: "cilium", Version: "1.18.5"}

	exists, err := c.ReleaseExists("cilium")
	require.NoError(t, err)
	assert.False(t, exists)

	rel, err := c.InstallOrUpgrade(context.Background(), "cilium", spec, Values{"tunnelProtocol": "vxlan"})
	require.NoError(t, err)
	assert.Equal(t, 1, rel.Version)
	assert.Equal(t, "kube-system", rel.Namespace)
	assert.Equal(t, release.StatusDeployed, rel.Info.Status)
	assert.Contains(t, rel.Manifest, `tunnel-protocol: "vxlan"`)

	exists, err = c.ReleaseExists("cilium")
	require.NoError(t, err)
	assert.True(t, exists)

	rel, err = c.InstallOrUpgrade(context.Background(), "cilium", spec, Values{"tunnelProtocol": "vxlan"})
	require.NoError(t, err)
	assert.Equal(t, 2, rel.Version)
}

func TestInstallOrUpgrade_ChartNotFound(t *testing.T) {
	t.Parallel()

	c := testActionClient(t)
	c.loadChart = func(ChartSpec) (*chart.Chart, error) {
		return nil, os.ErrNotExist
	}

	_, err := c.InstallOrUpgrade(context.Background(), "cilium", ChartSpec{Name: "cilium"}, nil)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// serveRepo packages the chart into a temporary chart repository.
func serveRepo(t *testing.T, ch *chart.Chart) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	_, err := chartutil.Save(ch, dir)
	require.NoError(t, err)

	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(srv.Close)

	index, err := repo.IndexDirectory(dir, srv.URL)
	require.NoError(t, err)
	require.NoError(t, index.WriteFile(filepath.Join(dir, "index.yaml"), 0o644))
	return srv
}

func TestLoadChart(t *testing.T) {
	t.Parallel()

	srv := serveRepo(t, testChart("1.18.5"))
	getters := getter.All(cli.New())

	ch, err := loadChart(getters, ChartSpec{Repository: srv.URL, Name: "cilium", Version: "1.18.5"})
	require.NoError(t, err)
	assert.Equal(t, "cilium", ch.Name())
	assert.Equal(t, "1.18.5", ch.Metadata.Version)
	require.Len(t, ch.Templates, 1)

	_, err = loadChart(getters, ChartSpec{Repository: srv.URL, Name: "cilium", Version: "9.9.9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to find chart cilium 9.9.9")
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	c, err := NewClient([]byte(testKubeconfig), "kube-system", WithTimeout(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, c.timeout)
	assert.Equal(t, "kube-system", c.namespace)
}

func TestKubeconfigGetter(t *testing.T) {
	t.Parallel()

	g := newKubeconfigGetter([]byte(testKubeconfig), "kube-system")

	cfg1, err := g.ToRESTConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://127.0.0.1:6443", cfg1.Host)
	assert.Equal(t, "test-token", cfg1.BearerToken)

	cfg2, err := g.ToRESTConfig()
	require.NoError(t, err)
	assert.Same(t, cfg1, cfg2)

	ns, _, err := g.ToRawKubeConfigLoader().Namespace()
	require.NoError(t, err)
	assert.Equal(t, "kube-system", ns)
}

func TestKubeconfigGetter_Invalid(t *testing.T) {
	t.Parallel()

	g := newKubeconfigGetter([]byte(`not valid yaml: {{{{`), "default")
	_, err := g.ToRESTConfig()
	require.Error(t, err)
	_, err = g.ToRESTMapper()
	require.Error(t, err)
}
