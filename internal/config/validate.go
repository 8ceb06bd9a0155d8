package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// Violation is one problem found in a cluster specification.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationError lists every violation found in a configuration.
// A config that produced a ValidationError has caused no mutations.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		lines = append(lines, v.String())
	}
	return fmt.Sprintf("configuration validation failed:\n  %s", strings.Join(lines, "\n  "))
}

// Has reports whether a violation was recorded for field.
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Result is the outcome of a successful validation.
type Result struct {
	Config *Config
	// Warnings never block; they are advice such as an even control plane size.
	Warnings []string
}

var dnsLabel = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// namedCIDR is a parsed CIDR with its config path.
type namedCIDR struct {
	field string
	net   *net.IPNet
}

// Validate applies defaults to a copy of cfg and checks it. Every violation is
// collected before returning so the caller sees all problems at once.
func Validate(cfg *Config) (*Result, error) {
	c := *cfg
	c.NodePools = append([]NodePool(nil), cfg.NodePools...)
	ApplyDefaults(&c)

	v := &validator{}
	v.required(&c)
	v.location(&c)
	v.addressing(&c)
	v.pools(&c)
	v.backup(&c)

	if len(v.violations) > 0 {
		return nil, &ValidationError{Violations: v.violations}
	}
	return &Result{Config: &c, Warnings: warnings(&c)}, nil
}

type validator struct {
	violations []Violation
}

func (v *validator) add(field, format string, args ...any) {
	v.violations = append(v.violations, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) required(c *Config) {
	switch {
	case c.ClusterName == "":
		v.add("cluster_name", "is required")
	case len(c.ClusterName) > 32 || !dnsLabel.MatchString(c.ClusterName):
		v.add("cluster_name", "must be a lowercase DNS label of at most 32 characters, got %q", c.ClusterName)
	}
	if c.HCloud.Token == "" {
		v.add("hcloud.token", "is required (or set HCLOUD_TOKEN)")
	}
	if c.Talos.Version == "" {
		v.add("talos.version", "is required")
	}
	if c.Talos.KubernetesVersion == "" {
		v.add("talos.kubernetes_version", "is required")
	}
}

func (v *validator) location(c *Config) {
	zone, ok := ZoneForLocation(c.HCloud.Location)
	if !ok {
		v.add("hcloud.location", "unknown location %q (supported: %s)", c.HCloud.Location, strings.Join(SupportedLocations(), ", "))
		return
	}
	if c.HCloud.Network.Zone != zone {
		v.add("hcloud.network.zone", "location %s belongs to network zone %s, got %q", c.HCloud.Location, zone, c.HCloud.Network.Zone)
	}
}

// addressing checks that every CIDR parses, the subnet sits inside the network
// and no two of network, pod and service ranges (nor subnet, pod and service) overlap.
func (v *validator) addressing(c *Config) {
	parse := func(field, s string) *namedCIDR {
		if s == "" {
			v.add(field, "is required")
			return nil
		}
		n, err := parseCIDR(field, s)
		if err != nil {
			v.add(field, "%q is not a valid CIDR", s)
			return nil
		}
		if n.IP.To4() == nil {
			v.add(field, "only IPv4 ranges are supported, got %q", s)
			return nil
		}
		return &namedCIDR{field: field, net: n}
	}

	network := parse("hcloud.network.cidr", c.HCloud.Network.CIDR)
	subnet := parse("hcloud.network.subnet_cidr", c.HCloud.Network.SubnetCIDR)
	pod := parse("kubernetes.pod_cidr", c.Kubernetes.PodCIDR)
	service := parse("kubernetes.service_cidr", c.Kubernetes.ServiceCIDR)

	if network != nil && subnet != nil && !cidrContains(network.net, subnet.net) {
		v.add(subnet.field, "%s is not contained in %s %s", subnet.net, network.field, network.net)
	}
	if subnet != nil {
		if _, err := CIDRHost(subnet.net.String(), BootstrapHostNum); err != nil {
			v.add(subnet.field, "%s is too small to hold the bootstrap node address", subnet.net)
		}
	}

	for _, outer := range []*namedCIDR{network, subnet} {
		for _, other := range []*namedCIDR{pod, service} {
			v.disjoint(outer, other)
		}
	}
	v.disjoint(pod, service)

	for _, src := range c.Firewall.AllowedSources {
		if _, _, err := net.ParseCIDR(src); err != nil {
			v.add("firewall.allowed_sources", "%q is not a valid CIDR", src)
		}
	}
}

func (v *validator) disjoint(a, b *namedCIDR) {
	if a == nil || b == nil {
		return
	}
	if cidrOverlaps(a.net, b.net) {
		v.add(b.field, "%s overlaps %s %s", b.net, a.field, a.net)
	}
}

func (v *validator) pools(c *Config) {
	if len(c.NodePools) == 0 {
		v.add("node_pools", "at least one node pool is required")
		return
	}

	seen := make(map[string]bool)
	controlPlanes := 0
	for i, p := range c.NodePools {
		field := fmt.Sprintf("node_pools[%d]", i)
		switch {
		case p.Name == "":
			v.add(field+".name", "is required")
		case !dnsLabel.MatchString(p.Name):
			v.add(field+".name", "must be a lowercase DNS label, got %q", p.Name)
		case seen[p.Name]:
			v.add(field+".name", "duplicate pool name %q", p.Name)
		}
		seen[p.Name] = true

		if p.Role != RoleControlPlane && p.Role != RoleWorker {
			v.add(field+".role", "must be %q or %q, got %q", RoleControlPlane, RoleWorker, p.Role)
		}
		if p.Role == RoleControlPlane {
			controlPlanes++
		}
		if p.Count < 1 {
			v.add(field+".count", "must be at least 1, got %d", p.Count)
		}
	}

	if controlPlanes == 0 {
		v.add("node_pools", "at least one %s pool is required", RoleControlPlane)
	}
}

func (v *validator) backup(c *Config) {
	b := c.State.Backup
	if b == nil {
		return
	}
	if b.Bucket == "" {
		v.add("state.backup.bucket", "is required when backup is configured")
	}
	if b.Endpoint == "" {
		v.add("state.backup.endpoint", "is required when backup is configured")
	}
}

// warnings returns advisory findings that never block an operation.
func warnings(c *Config) []string {
	var out []string
	if n := c.ControlPlaneCount(); n%2 == 0 {
		out = append(out, fmt.Sprintf("control plane size %d is even; an odd count tolerates the same number of failures with one node less", n))
	}
	return out
}
