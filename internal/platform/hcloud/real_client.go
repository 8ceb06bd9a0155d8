package hcloud

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/imamik/oxide/internal/config"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

const publicIPURL = "https://ipv4.icanhazip.com"

// RealClient implements InfrastructureManager using the Hetzner Cloud API.
type RealClient struct {
	client     *hcloud.Client
	timeouts   *config.Timeouts
	httpClient *http.Client
	ipURL      string
}

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithTimeouts sets custom timeouts for the client.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *RealClient) {
		c.timeouts = t
	}
}

// WithHTTPClient sets the HTTP client used for the public address lookup.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *RealClient) {
		c.httpClient = hc
	}
}

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *RealClient) {
		c.client = hc
	}
}

// WithPublicIPURL overrides the address lookup service.
func WithPublicIPURL(url string) ClientOption {
	return func(c *RealClient) {
		c.ipURL = url
	}
}

// NewRealClient creates a new RealClient with optional configuration.
func NewRealClient(token string, opts ...ClientOption) *RealClient {
	c := &RealClient{
		client: hcloud.NewClient(
			hcloud.WithToken(token),
			hcloud.WithApplication("oxide", ""),
		),
		timeouts:   config.LoadTimeouts(),
		httpClient: http.DefaultClient,
		ipURL:      publicIPURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPublicIP returns the public IPv4 address of the host.
func (c *RealClient) GetPublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ipURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to look up public IP: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("public IP lookup returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}
	ip := strings.TrimSpace(string(body))
	if parsed := net.ParseIP(ip); parsed == nil || parsed.To4() == nil {
		return "", fmt.Errorf("public IP lookup returned %q, not an IPv4 address", ip)
	}
	return ip, nil
}

// StaticIP is a PublicIPResolver returning a fixed address.
type StaticIP string

// GetPublicIP returns the fixed address.
func (s StaticIP) GetPublicIP(context.Context) (string, error) {
	return string(s), nil
}
