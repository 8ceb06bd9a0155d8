package hcloud

import (
	"context"
	"fmt"
	"net"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// Ports opened to the allow-list.
const (
	TalosAPIPort      = "50000"
	KubernetesAPIPort = "6443"
)

// ClusterFirewallRules returns the inbound rules for a cluster: the Talos and
// Kubernetes APIs from sources, ICMP from anywhere.
func ClusterFirewallRules(sources []string) ([]hcloud.FirewallRule, error) {
	allowed := make([]net.IPNet, 0, len(sources))
	for _, s := range sources {
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("invalid firewall source %q: %w", s, err)
		}
		allowed = append(allowed, *n)
	}
	_, any4, _ := net.ParseCIDR("0.0.0.0/0")
	_, any6, _ := net.ParseCIDR("::/0")

	return []hcloud.FirewallRule{
		{
			Description: hcloud.Ptr("Talos API"),
			Direction:   hcloud.FirewallRuleDirectionIn,
			Protocol:    hcloud.FirewallRuleProtocolTCP,
			Port:        hcloud.Ptr(TalosAPIPort),
			SourceIPs:   allowed,
		},
		{
			Description: hcloud.Ptr("Kubernetes API"),
			Direction:   hcloud.FirewallRuleDirectionIn,
			Protocol:    hcloud.FirewallRuleProtocolTCP,
			Port:        hcloud.Ptr(KubernetesAPIPort),
			SourceIPs:   allowed,
		},
		{
			Description: hcloud.Ptr("ICMP"),
			Direction:   hcloud.FirewallRuleDirectionIn,
			Protocol:    hcloud.FirewallRuleProtocolICMP,
			SourceIPs:   []net.IPNet{*any4, *any6},
		},
	}, nil
}

// EnsureFirewall ensures that a firewall with the given rules exists and is
// applied to every server matching the applyTo label selector. Rules of an
// existing firewall are replaced.
func (c *RealClient) EnsureFirewall(ctx context.Context, name string, rules []hcloud.FirewallRule, labels map[string]string, applyTo string) (*hcloud.Firewall, error) {
	target := hcloud.FirewallResource{
		Type:          hcloud.FirewallResourceTypeLabelSelector,
		LabelSelector: &hcloud.FirewallResourceLabelSelector{Selector: applyTo},
	}

	fw, err := (&EnsureOperation[*hcloud.Firewall, hcloud.FirewallCreateOpts, hcloud.FirewallSetRulesOpts]{
		Name:         name,
		ResourceType: "firewall",
		Get:          c.client.Firewall.Get,
		Create:       c.createFirewall,
		Update:       c.client.Firewall.SetRules,
		CreateOptsMapper: func() hcloud.FirewallCreateOpts {
			return hcloud.FirewallCreateOpts{
				Name:    name,
				Rules:   rules,
				Labels:  labels,
				ApplyTo: []hcloud.FirewallResource{target},
			}
		},
		UpdateOptsMapper: func(_ *hcloud.Firewall) hcloud.FirewallSetRulesOpts {
			return hcloud.FirewallSetRulesOpts{Rules: rules}
		},
	}).Execute(ctx, c)
	if err != nil {
		return nil, err
	}

	if appliedToSelector(fw, applyTo) {
		return fw, nil
	}
	actions, _, err := c.client.Firewall.ApplyResources(ctx, fw, []hcloud.FirewallResource{target})
	if err == nil {
		err = waitForActions(ctx, c.client, actions...)
	}
	if err != nil {
		return nil, providerError("apply firewall", name, err)
	}
	return fw, nil
}

func appliedToSelector(fw *hcloud.Firewall, selector string) bool {
	for _, r := range fw.AppliedTo {
		if r.Type == hcloud.FirewallResourceTypeLabelSelector && r.LabelSelector != nil && r.LabelSelector.Selector == selector {
			return true
		}
	}
	return false
}

func (c *RealClient) createFirewall(ctx context.Context, opts hcloud.FirewallCreateOpts) (*CreateResult[*hcloud.Firewall], *hcloud.Response, error) {
	res, resp, err := c.client.Firewall.Create(ctx, opts)
	if err != nil {
		return nil, resp, err
	}
	return &CreateResult[*hcloud.Firewall]{
		Resource: res.Firewall,
		Actions:  res.Actions,
	}, resp, nil
}

// DeleteFirewall deletes the firewall with the given name.
func (c *RealClient) DeleteFirewall(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Firewall]{
		Name:         name,
		ResourceType: "firewall",
		Get:          c.client.Firewall.Get,
		Delete:       c.client.Firewall.Delete,
	}).Execute(ctx, c)
}
