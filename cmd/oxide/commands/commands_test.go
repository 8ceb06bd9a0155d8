package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/oxide/cmd/oxide/handlers"
)

func TestRoot(t *testing.T) {
	t.Parallel()
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "oxide", cmd.Use)
	assert.Equal(t, "Provision Kubernetes on Hetzner Cloud using Talos", cmd.Short)
}

func TestRoot_HasSubcommands(t *testing.T) {
	t.Parallel()
	cmd := Root()

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, expected := range []string{"init", "create", "scale", "status", "logs", "destroy", "version"} {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
	assert.Len(t, cmd.Commands(), 7)
}

func TestRoot_PersistentFlags(t *testing.T) {
	t.Parallel()
	cmd := Root()

	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"config", "c", handlers.DefaultConfigPath},
		{"log-format", "", handlers.LogFormatText},
		{"metrics-file", "", ""},
	}
	for _, tt := range tests {
		flag := cmd.PersistentFlags().Lookup(tt.name)
		require.NotNil(t, flag, "flag %s should exist", tt.name)
		assert.Equal(t, tt.shorthand, flag.Shorthand)
		assert.Equal(t, tt.def, flag.DefValue)
	}
}

func TestSubcommandFlags(t *testing.T) {
	t.Parallel()
	cmd := Root()

	tests := []struct {
		command string
		flag    string
		def     string
	}{
		{"destroy", "purge", "false"},
		{"destroy", "yes", "false"},
		{"scale", "count", "0"},
		{"scale", "pool", ""},
		{"logs", "service", "kubelet"},
		{"logs", "tail", "100"},
		{"init", "output", handlers.DefaultConfigPath},
		{"init", "defaults", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			t.Parallel()
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			flag := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, flag)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}
}

func TestScale_RequiresRoleAndCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no role", []string{"scale", "--count", "3"}, "accepts 1 arg(s)"},
		{"unknown role", []string{"scale", "gpu", "--count", "3"}, `invalid argument "gpu"`},
		{"no count", []string{"scale", "worker"}, `required flag(s) "count" not set`},
		{"no count with pool", []string{"scale", "worker", "--pool", "gpu"}, `required flag(s) "count" not set`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd := Root()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScale_ValidRoles(t *testing.T) {
	t.Parallel()
	sub, _, err := Root().Find([]string{"scale"})
	require.NoError(t, err)
	assert.Equal(t, []string{"control-plane", "worker"}, sub.ValidArgs)
	assert.NoError(t, sub.ValidateArgs([]string{"control-plane"}))
	assert.NoError(t, sub.ValidateArgs([]string{"worker"}))
	assert.Error(t, sub.ValidateArgs([]string{"worker-pool"}))
}

func TestCommandsHaveRunE(t *testing.T) {
	t.Parallel()
	opts := &handlers.Options{}
	for _, cmd := range []*cobra.Command{Init(), Create(opts), Scale(opts), Status(opts), Logs(opts), Destroy(opts)} {
		assert.NotNil(t, cmd.RunE, "%s should have RunE", cmd.Name())
	}
}

func TestDestroy_LongDescription(t *testing.T) {
	t.Parallel()
	cmd := Destroy(&handlers.Options{})

	assert.Contains(t, cmd.Long, "firewall")
	assert.Contains(t, cmd.Long, "--purge")
	assert.Contains(t, cmd.Long, "WARNING")
}

func TestVersion(t *testing.T) {
	SetVersionInfo("v1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	var out bytes.Buffer
	cmd := Version()
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	assert.Contains(t, out.String(), "oxide v1.2.3")
	assert.Contains(t, out.String(), "commit: abc123")
	assert.Contains(t, out.String(), "built:  2026-01-01")
}
