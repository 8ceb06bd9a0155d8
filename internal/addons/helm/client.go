package helm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/repo"
	"helm.sh/helm/v3/pkg/storage/driver"
)

// ChartSpec locates a chart in a classic (index.yaml) repository.
type ChartSpec struct {
	Repository string
	Name       string
	Version    string
}

// Client installs and upgrades releases in one namespace.
type Client struct {
	namespace    string
	timeout      time.Duration
	actionConfig *action.Configuration
	loadChart    func(ChartSpec) (*chart.Chart, error)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds hooks and resource creation of a single install or upgrade.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithDebugLog receives Helm's internal debug output.
func WithDebugLog(log action.DebugLog) Option {
	return func(c *Client) {
		c.actionConfig.Log = log
	}
}

// NewClient creates a Helm client from kubeconfig bytes.
func NewClient(kubeconfig []byte, namespace string, opts ...Option) (*Client, error) {
	actionConfig := new(action.Configuration)
	restGetter := newKubeconfigGetter(kubeconfig, namespace)
	if err := actionConfig.Init(restGetter, namespace, "secret", func(string, ...interface{}) {}); err != nil {
		return nil, fmt.Errorf("failed to initialize helm action config: %w", err)
	}

	c := &Client{
		namespace:    namespace,
		timeout:      5 * time.Minute,
		actionConfig: actionConfig,
	}
	getters := getter.All(cli.New())
	c.loadChart = func(spec ChartSpec) (*chart.Chart, error) {
		return loadChart(getters, spec)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// InstallOrUpgrade installs the chart, or upgrades the release if it exists.
// It does not wait for workloads to become ready.
func (c *Client) InstallOrUpgrade(ctx context.Context, releaseName string, spec ChartSpec, values Values) (*release.Release, error) {
	ch, err := c.loadChart(spec)
	if err != nil {
		return nil, err
	}

	exists, err := c.ReleaseExists(releaseName)
	if err != nil {
		return nil, err
	}

	if !exists {
		install := action.NewInstall(c.actionConfig)
		install.ReleaseName = releaseName
		install.Namespace = c.namespace
		install.CreateNamespace = true
		install.Version = spec.Version
		install.Timeout = c.timeout
		rel, err := install.RunWithContext(ctx, ch, values)
		if err != nil {
			return nil, fmt.Errorf("failed to install %s: %w", releaseName, err)
		}
		return rel, nil
	}

	upgrade := action.NewUpgrade(c.actionConfig)
	upgrade.Namespace = c.namespace
	upgrade.Version = spec.Version
	upgrade.Timeout = c.timeout
	upgrade.ReuseValues = false
	rel, err := upgrade.RunWithContext(ctx, releaseName, ch, values)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade %s: %w", releaseName, err)
	}
	return rel, nil
}

// ReleaseExists reports whether a release with the name is recorded.
func (c *Client) ReleaseExists(releaseName string) (bool, error) {
	history := action.NewHistory(c.actionConfig)
	history.Max = 1
	if _, err := history.Run(releaseName); err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read history of %s: %w", releaseName, err)
	}
	return true, nil
}

// loadChart resolves the chart in the repository index and loads the archive
// from memory.
func loadChart(getters getter.Providers, spec ChartSpec) (*chart.Chart, error) {
	chartURL, err := repo.FindChartInRepoURL(spec.Repository, spec.Name, spec.Version, "", "", "", getters)
	if err != nil {
		return nil, fmt.Errorf("failed to find chart %s %s in repo %s: %w", spec.Name, spec.Version, spec.Repository, err)
	}

	u, err := url.Parse(chartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid chart URL %q: %w", chartURL, err)
	}
	g, err := getters.ByScheme(u.Scheme)
	if err != nil {
		return nil, fmt.Errorf("no getter for chart URL %q: %w", chartURL, err)
	}

	archive, err := g.Get(chartURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download chart %s: %w", chartURL, err)
	}

	ch, err := loader.LoadArchive(archive)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart %s: %w", spec.Name, err)
	}
	return ch, nil
}
