package talos

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/siderolabs/talos/pkg/machinery/config"
	"github.com/siderolabs/talos/pkg/machinery/config/generate"
	"github.com/siderolabs/talos/pkg/machinery/config/generate/secrets"
	"github.com/siderolabs/talos/pkg/machinery/config/machine"
	"gopkg.in/yaml.v3"

	oxideconfig "github.com/imamik/oxide/internal/config"
)

// InstallDisk is the system disk of Hetzner Cloud servers.
const InstallDisk = "/dev/sda"

// SecretsBundle is a type alias for the Talos secrets bundle.
type SecretsBundle = secrets.Bundle

// MachineConfigs is the generated per-role configuration of a cluster.
type MachineConfigs struct {
	ControlPlane []byte
	Worker       []byte
	Talosconfig  []byte
}

// ForRole returns the machine configuration for role.
func (m *MachineConfigs) ForRole(role oxideconfig.Role) []byte {
	if role == oxideconfig.RoleControlPlane {
		return m.ControlPlane
	}
	return m.Worker
}

// Generator builds machine configurations for a validated cluster config.
type Generator struct {
	cfg               *oxideconfig.Config
	endpoint          string
	kubernetesVersion string
	secretsBundle     *secrets.Bundle
}

// NewGenerator creates a Generator. cfg must have passed config.Validate.
func NewGenerator(cfg *oxideconfig.Config, sb *secrets.Bundle) (*Generator, error) {
	if sb == nil {
		return nil, errors.New("secrets bundle is required")
	}
	endpoint, err := cfg.ClusterEndpoint()
	if err != nil {
		return nil, err
	}
	return &Generator{
		cfg:      cfg,
		endpoint: endpoint,
		// Talos machinery adds the 'v' prefix itself.
		kubernetesVersion: strings.TrimPrefix(cfg.Talos.KubernetesVersion, "v"),
		secretsBundle:     sb,
	}, nil
}

// Endpoint returns the cluster endpoint baked into the configurations.
func (g *Generator) Endpoint() string {
	return g.endpoint
}

// Generate produces both role configurations and the talosconfig.
func (g *Generator) Generate() (*MachineConfigs, error) {
	cp, err := g.machineConfig(machine.TypeControlPlane)
	if err != nil {
		return nil, err
	}
	worker, err := g.machineConfig(machine.TypeWorker)
	if err != nil {
		return nil, err
	}
	talosconfig, err := g.clientConfig()
	if err != nil {
		return nil, err
	}
	return &MachineConfigs{ControlPlane: cp, Worker: worker, Talosconfig: talosconfig}, nil
}

func (g *Generator) input() (*generate.Input, error) {
	vc, err := config.ParseContractFromVersion(g.cfg.Talos.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version contract: %w", err)
	}

	input, err := generate.NewInput(
		g.cfg.ClusterName,
		g.endpoint,
		g.kubernetesVersion,
		generate.WithVersionContract(vc),
		generate.WithSecretsBundle(g.secretsBundle),
		generate.WithInstallDisk(InstallDisk),
		generate.WithInstallImage(g.installerImage()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input: %w", err)
	}
	return input, nil
}

func (g *Generator) machineConfig(machineType machine.Type) ([]byte, error) {
	input, err := g.input()
	if err != nil {
		return nil, err
	}
	cfg, err := input.Config(machineType)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s config: %w", machineType, err)
	}
	base, err := cfg.Bytes()
	if err != nil {
		return nil, err
	}

	patches := []map[string]any{buildPatch(g.cfg, machineType == machine.TypeControlPlane, g.installerImage())}
	patches = append(patches, g.cfg.Talos.ConfigPatches...)

	out, err := applyConfigPatches(stripComments(base), patches...)
	if err != nil {
		return nil, fmt.Errorf("failed to patch %s config: %w", machineType, err)
	}
	return out, nil
}

func (g *Generator) clientConfig() ([]byte, error) {
	input, err := g.input()
	if err != nil {
		return nil, err
	}
	clientCfg, err := input.Talosconfig()
	if err != nil {
		return nil, fmt.Errorf("failed to generate talosconfig: %w", err)
	}
	return clientCfg.Bytes()
}

func (g *Generator) installerImage() string {
	return fmt.Sprintf("ghcr.io/siderolabs/installer:%s", g.cfg.Talos.Version)
}

// NewSecrets creates a new Talos secrets bundle.
func NewSecrets(talosVersion string) (*secrets.Bundle, error) {
	vc, err := config.ParseContractFromVersion(talosVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version contract: %w", err)
	}
	sb, err := secrets.NewBundle(secrets.NewFixedClock(time.Now()), vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets bundle: %w", err)
	}
	return sb, nil
}

// ParseSecrets decodes a secrets bundle written by MarshalSecrets.
func ParseSecrets(data []byte) (*secrets.Bundle, error) {
	var sb secrets.Bundle
	if err := yaml.Unmarshal(data, &sb); err != nil {
		return nil, fmt.Errorf("failed to decode secrets bundle: %w", err)
	}
	if sb.Cluster == nil || sb.Certs == nil {
		return nil, errors.New("secrets bundle is incomplete")
	}
	sb.Clock = secrets.NewFixedClock(time.Now())
	return &sb, nil
}

// MarshalSecrets encodes sb in the YAML layout talosctl uses.
func MarshalSecrets(sb *secrets.Bundle) ([]byte, error) {
	data, err := yaml.Marshal(sb)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal secrets bundle: %w", err)
	}
	return data, nil
}

// applyConfigPatches deep-merges patches, in order, into the v1alpha1
// document of a machine configuration. Other documents pass through.
func applyConfigPatches(base []byte, patches ...map[string]any) ([]byte, error) {
	dec := yaml.NewDecoder(bytes.NewReader(base))
	var docs []map[string]any
	for {
		var doc map[string]any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal base config: %w", err)
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}

	patched := false
	for _, doc := range docs {
		if doc["version"] == "v1alpha1" {
			for _, p := range patches {
				deepMerge(doc, p)
			}
			patched = true
			break
		}
	}
	if !patched {
		return nil, errors.New("machine configuration has no v1alpha1 document")
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deepMerge recursively merges src into dst.
// For maps, it merges recursively. For other types, src overwrites dst.
func deepMerge(dst, src map[string]any) {
	for key, srcVal := range src {
		if dstVal, exists := dst[key]; exists {
			srcMap, srcIsMap := srcVal.(map[string]any)
			dstMap, dstIsMap := dstVal.(map[string]any)
			if srcIsMap && dstIsMap {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}

func stripComments(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	var result []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		result = append(result, line)
	}
	return []byte(strings.Join(result, "\n"))
}
