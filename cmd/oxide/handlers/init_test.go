package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/oxide/internal/config"
)

func TestInit_Defaults(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "oxide.yaml")

	runWizard = func(context.Context) (config.ExampleOptions, error) {
		t.Fatal("wizard must not run without a terminal")
		return config.ExampleOptions{}, nil
	}

	require.NoError(t, Init(context.Background(), path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := config.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "oxide", cfg.ClusterName)
	assert.Len(t, cfg.NodePools, 2)
	assert.Contains(t, e.out.String(), "oxide create -c "+path)
}

func TestInit_Wizard(t *testing.T) {
	newEnv(t)
	path := filepath.Join(t.TempDir(), "oxide.yaml")

	isTerminal = func() bool { return true }
	runWizard = func(context.Context) (config.ExampleOptions, error) {
		opts := config.DefaultExampleOptions()
		opts.ClusterName = "wizard"
		opts.Workers = 0
		return opts, nil
	}

	require.NoError(t, Init(context.Background(), path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := config.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "wizard", cfg.ClusterName)
	assert.Len(t, cfg.NodePools, 1)
}

func TestInit_UseDefaultsSkipsWizard(t *testing.T) {
	newEnv(t)
	path := filepath.Join(t.TempDir(), "oxide.yaml")

	isTerminal = func() bool { return true }
	runWizard = func(context.Context) (config.ExampleOptions, error) {
		t.Fatal("wizard must not run with defaults requested")
		return config.ExampleOptions{}, nil
	}

	require.NoError(t, Init(context.Background(), path, true))
}

func TestInit_WizardCanceled(t *testing.T) {
	newEnv(t)

	isTerminal = func() bool { return true }
	runWizard = func(context.Context) (config.ExampleOptions, error) {
		return config.ExampleOptions{}, errors.New("wizard canceled: user aborted")
	}
	var written bool
	writeFile = func(string, []byte, os.FileMode) error {
		written = true
		return nil
	}

	err := Init(context.Background(), "oxide.yaml", false)
	require.Error(t, err)
	assert.False(t, written)
}

func TestInit_WarnsOnOverwrite(t *testing.T) {
	e := newEnv(t)

	fileExists = func(string) bool { return true }
	writeFile = func(string, []byte, os.FileMode) error { return nil }

	require.NoError(t, Init(context.Background(), "oxide.yaml", true))
	assert.Contains(t, e.out.String(), "already exists and will be overwritten")
}
