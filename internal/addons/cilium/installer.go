package cilium

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"helm.sh/helm/v3/pkg/release"

	"github.com/imamik/oxide/internal/addons/helm"
	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/k8s"
	"github.com/imamik/oxide/internal/util/poll"
)

const (
	// Namespace holds the Cilium release and agents.
	Namespace   = "kube-system"
	releaseName = "cilium"

	// AgentSelector matches the Cilium agent pods.
	AgentSelector = "k8s-app=cilium"

	chartRepository = "https://helm.cilium.io"
	chartName       = "cilium"

	// GatewayAPIURLFormat takes the Gateway API version and release channel.
	GatewayAPIURLFormat = "https://github.com/kubernetes-sigs/gateway-api/releases/download/%s/%s-install.yaml"
	gatewayAPIChannel   = "experimental"

	maxManifestSize = 10 << 20
)

// Installer installs the network overlay.
type Installer interface {
	InstallGatewayAPI(ctx context.Context) error
	Install(ctx context.Context) error
	WaitReady(ctx context.Context) error
}

// ChartInstaller installs or upgrades a Helm release.
type ChartInstaller interface {
	InstallOrUpgrade(ctx context.Context, releaseName string, spec helm.ChartSpec, values helm.Values) (*release.Release, error)
}

// HelmInstaller installs Cilium with the Helm SDK and the cluster API client.
type HelmInstaller struct {
	cfg        *config.Config
	kube       k8s.Client
	charts     ChartInstaller
	timeouts   *config.Timeouts
	httpClient *http.Client
	urlFormat  string
}

// Option configures a HelmInstaller.
type Option func(*HelmInstaller)

// WithTimeouts overrides the timeouts loaded from the environment.
func WithTimeouts(t *config.Timeouts) Option {
	return func(i *HelmInstaller) { i.timeouts = t }
}

// WithHTTPClient sets the client used to download the Gateway API manifest.
func WithHTTPClient(c *http.Client) Option {
	return func(i *HelmInstaller) { i.httpClient = c }
}

// WithGatewayAPIURLFormat replaces GatewayAPIURLFormat.
func WithGatewayAPIURLFormat(format string) Option {
	return func(i *HelmInstaller) { i.urlFormat = format }
}

// NewHelmInstaller creates an installer for cfg.
func NewHelmInstaller(cfg *config.Config, kube k8s.Client, charts ChartInstaller, opts ...Option) *HelmInstaller {
	i := &HelmInstaller{
		cfg:        cfg,
		kube:       kube,
		charts:     charts,
		timeouts:   config.LoadTimeouts(),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		urlFormat:  GatewayAPIURLFormat,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// InstallGatewayAPI applies the Gateway API CRDs. It is a no-op when the
// Gateway API is disabled.
func (i *HelmInstaller) InstallGatewayAPI(ctx context.Context) error {
	if !i.cfg.Cilium.GatewayAPIEnabled() {
		return nil
	}

	manifestURL := fmt.Sprintf(i.urlFormat, i.cfg.Cilium.GatewayAPIVersion, gatewayAPIChannel)
	manifests, err := i.fetch(ctx, manifestURL)
	if err != nil {
		return fmt.Errorf("failed to download Gateway API CRDs: %w", err)
	}

	if err := i.kube.ApplyManifests(ctx, manifests, k8s.FieldManager); err != nil {
		return fmt.Errorf("failed to apply Gateway API CRDs from %s: %w", manifestURL, err)
	}
	return nil
}

func (i *HelmInstaller) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
}

// Install installs or upgrades the Cilium release with Values(cfg).
func (i *HelmInstaller) Install(ctx context.Context) error {
	spec := helm.ChartSpec{
		Repository: chartRepository,
		Name:       chartName,
		Version:    i.cfg.Cilium.Version,
	}
	if _, err := i.charts.InstallOrUpgrade(ctx, releaseName, spec, Values(i.cfg)); err != nil {
		return fmt.Errorf("failed to install cilium %s: %w", spec.Version, err)
	}
	return nil
}

// WaitReady polls until at least one agent pod exists and all are Ready.
func (i *HelmInstaller) WaitReady(ctx context.Context) error {
	return poll.Until(ctx, poll.Spec{
		What:     "cilium agents Ready",
		Interval: i.timeouts.CiliumPoll,
		Timeout:  i.timeouts.Cilium,
	}, func(ctx context.Context) (bool, error) {
		ready, total, err := i.kube.PodsReady(ctx, Namespace, AgentSelector)
		if err != nil {
			// The API server may be briefly unavailable while agents start.
			return false, nil
		}
		return total > 0 && ready == total, nil
	})
}
