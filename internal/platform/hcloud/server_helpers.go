package hcloud

import (
	"context"
	"fmt"
	"net"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// TalosImageSelector selects Talos snapshots when no image is configured.
const TalosImageSelector = "os=talos"

// buildServerCreateOpts resolves server type, image and location.
func (c *RealClient) buildServerCreateOpts(ctx context.Context, opts ServerCreateOpts) (hcloud.ServerCreateOpts, error) {
	serverType, _, err := c.client.ServerType.Get(ctx, opts.ServerType)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get server type: %w", err)
	}
	if serverType == nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("server type not found: %s", opts.ServerType)
	}

	image, err := c.resolveImage(ctx, opts.Image, serverType.Architecture)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	location, err := c.resolveLocation(ctx, opts.Location)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	createOpts := hcloud.ServerCreateOpts{
		Name:             opts.Name,
		ServerType:       serverType,
		Image:            image,
		Location:         location,
		UserData:         opts.UserData,
		Labels:           opts.Labels,
		StartAfterCreate: hcloud.Ptr(false),
		PublicNet: &hcloud.ServerCreatePublicNet{
			EnableIPv4: true,
			EnableIPv6: true,
		},
	}
	if opts.SSHKeyID != 0 {
		createOpts.SSHKeys = []*hcloud.SSHKey{{ID: opts.SSHKeyID}}
	}
	return createOpts, nil
}

// resolveImage picks the configured image, or the newest snapshot labelled
// os=talos for the server architecture.
func (c *RealClient) resolveImage(ctx context.Context, name string, arch hcloud.Architecture) (*hcloud.Image, error) {
	if name == "" {
		images, _, err := c.client.Image.List(ctx, hcloud.ImageListOpts{
			ListOpts:     hcloud.ListOpts{LabelSelector: TalosImageSelector},
			Architecture: []hcloud.Architecture{arch},
			Status:       []hcloud.ImageStatus{hcloud.ImageStatusAvailable},
			Sort:         []string{"created:desc"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list talos images: %w", err)
		}
		if len(images) == 0 {
			return nil, fmt.Errorf("no available image labelled %s for %s, upload a Talos snapshot first", TalosImageSelector, arch)
		}
		return images[0], nil
	}

	image, _, err := c.client.Image.GetForArchitecture(ctx, name, arch)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	if image == nil {
		return nil, fmt.Errorf("image not found: %s (%s)", name, arch)
	}
	return image, nil
}

// resolveLocation resolves a location name to a location object.
func (c *RealClient) resolveLocation(ctx context.Context, location string) (*hcloud.Location, error) {
	if location == "" {
		return nil, nil
	}
	loc, _, err := c.client.Location.Get(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to get location %s: %w", location, err)
	}
	if loc == nil {
		return nil, fmt.Errorf("location not found: %s", location)
	}
	return loc, nil
}

// attachServerToNetwork attaches a server to a network. If privateIP is
// empty, Hetzner assigns an address from the network's subnet.
func (c *RealClient) attachServerToNetwork(ctx context.Context, server *hcloud.Server, networkID int64, privateIP string) error {
	opts := hcloud.ServerAttachToNetworkOpts{
		Network: &hcloud.Network{ID: networkID},
	}
	if privateIP != "" {
		opts.IP = net.ParseIP(privateIP)
	}

	err := c.withLockRetry(ctx, func() error {
		action, _, err := c.client.Server.AttachToNetwork(ctx, server, opts)
		if err != nil {
			return err
		}
		return c.client.Action.WaitFor(ctx, action)
	})
	if err != nil {
		return fmt.Errorf("failed to attach server to network: %w", err)
	}
	return nil
}

func (c *RealClient) powerOn(ctx context.Context, server *hcloud.Server) error {
	err := c.withLockRetry(ctx, func() error {
		action, _, err := c.client.Server.Poweron(ctx, server)
		if err != nil {
			return err
		}
		return c.client.Action.WaitFor(ctx, action)
	})
	if err != nil {
		return fmt.Errorf("failed to power on server: %w", err)
	}
	return nil
}

// pendingSteps reports which creation steps a server still needs.
func pendingSteps(s *hcloud.Server, networkID int64) (attach, powerOn bool) {
	attach = true
	for _, pn := range s.PrivateNet {
		if pn.Network != nil && pn.Network.ID == networkID {
			attach = false
			break
		}
	}
	return attach, s.Status == hcloud.ServerStatusOff
}

// Incomplete reports whether the server looks like an interrupted creation:
// powered off or without a private address.
func (s *Server) Incomplete() bool {
	return s.Status == string(hcloud.ServerStatusOff) || s.PrivateIP == ""
}

// toServer converts an API server. A zero networkID takes the first private network.
func toServer(s *hcloud.Server, networkID int64) *Server {
	out := &Server{
		ID:     s.ID,
		Name:   s.Name,
		Status: string(s.Status),
		Labels: s.Labels,
	}
	if s.PublicNet.IPv4.IP != nil {
		out.PublicIP = s.PublicNet.IPv4.IP.String()
	}
	for _, pn := range s.PrivateNet {
		if pn.IP == nil {
			continue
		}
		if networkID == 0 || (pn.Network != nil && pn.Network.ID == networkID) {
			out.PrivateIP = pn.IP.String()
			break
		}
	}
	return out
}
