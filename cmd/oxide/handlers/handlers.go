// Package handlers implements the business logic for CLI commands.
//
// Handlers are called by the command definitions in the commands package.
// Every external dependency is created through a package-level factory
// variable so tests can replace it.
package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/k8s"
	"github.com/imamik/oxide/internal/metrics"
	"github.com/imamik/oxide/internal/platform/hcloud"
	"github.com/imamik/oxide/internal/platform/s3"
	"github.com/imamik/oxide/internal/platform/talos"
	"github.com/imamik/oxide/internal/provisioning"
	"github.com/imamik/oxide/internal/state"
)

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "oxide.yaml"

// Log formats accepted by --log-format.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigPath  string
	LogFormat   string
	MetricsFile string
}

// Factory function variables - can be replaced in tests.
var (
	// loadConfigFile loads and validates the configuration file.
	loadConfigFile = config.LoadFile

	// newInfraClient creates the Hetzner Cloud client.
	newInfraClient = func(token string, timeouts *config.Timeouts) hcloud.InfrastructureManager {
		return hcloud.NewRealClient(token, hcloud.WithTimeouts(timeouts))
	}

	// newStore opens the state directory, mirrored to the backup bucket if one
	// is configured.
	newStore = func(ctx context.Context, cfg *config.Config) (*state.Store, error) {
		b := cfg.State.Backup
		if b == nil {
			return state.NewStore(cfg.State.Dir), nil
		}
		client, err := newBackupClient(ctx, b)
		if err != nil {
			return nil, err
		}
		return state.NewStore(cfg.State.Dir, state.WithBackup(client, cfg.ClusterName)), nil
	}

	// ensureBackupBucket creates the backup bucket if it does not exist.
	ensureBackupBucket = func(ctx context.Context, b *config.BackupConfig) error {
		client, err := newBackupClient(ctx, b)
		if err != nil {
			return err
		}
		return client.EnsureBucket(ctx)
	}

	// newNodeAPI creates a Talos management API client.
	newNodeAPI = func(talosconfig []byte, callTimeout time.Duration) (talos.NodeAPI, error) {
		return talos.NewClient(talosconfig, callTimeout)
	}

	// newKubeClient creates a cluster API client.
	newKubeClient = k8s.NewFromKubeconfig

	// newProvisioningContext creates a new provisioning context.
	newProvisioningContext = provisioning.NewContext

	// writeMetrics writes the metrics textfile.
	writeMetrics = metrics.WriteTextfile

	// isTerminal reports whether stdin and stdout are attached to a terminal.
	isTerminal = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
	}

	// stdout receives command output.
	stdout io.Writer = os.Stdout

	// logOutput receives structured logs in json mode.
	logOutput io.Writer = os.Stderr
)

func newBackupClient(ctx context.Context, b *config.BackupConfig) (*s3.Client, error) {
	client, err := s3.NewClient(ctx, b.Endpoint, b.Region, b.Bucket, b.AccessKey, b.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup client: %w", err)
	}
	return client, nil
}

// loadConfig loads and validates the configuration and logs its warnings.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	res, err := loadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	for _, w := range res.Warnings {
		log.Printf("Warning: %s", w)
	}
	return res.Config, nil
}

// newObserver returns the observer for the log format, tagged with a fresh
// operation id.
func newObserver(format string) (provisioning.Observer, error) {
	var o provisioning.Observer
	switch format {
	case "", LogFormatText:
		o = provisioning.NewConsoleObserver()
	case LogFormatJSON:
		o = provisioning.NewLogrObserver(zap.New(zap.UseDevMode(false), zap.WriteTo(logOutput)))
	default:
		return nil, fmt.Errorf("unknown log format %q (expected %s or %s)", format, LogFormatText, LogFormatJSON)
	}
	return provisioning.WithOperationID(o), nil
}

// session holds what a mutating command needs. The state directory stays
// locked until close.
type session struct {
	cfg    *config.Config
	store  *state.Store
	pctx   *provisioning.Context
	unlock func()
}

func openSession(ctx context.Context, cfg *config.Config, opts Options) (*session, error) {
	observer, err := newObserver(opts.LogFormat)
	if err != nil {
		return nil, err
	}
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	unlock, err := store.Lock(ctx)
	if err != nil {
		return nil, err
	}

	timeouts := config.LoadTimeouts()
	pctx := newProvisioningContext(ctx, cfg, newInfraClient(cfg.HCloud.Token, timeouts), observer)
	return &session{cfg: cfg, store: store, pctx: pctx, unlock: unlock}, nil
}

func (s *session) close() {
	s.unlock()
}

// finish writes the metrics textfile if requested and returns err. A failed
// write is logged, never returned.
func finish(opts Options, err error) error {
	if opts.MetricsFile == "" {
		return err
	}
	if werr := writeMetrics(opts.MetricsFile); werr != nil {
		log.Printf("Warning: failed to write metrics to %s: %v", opts.MetricsFile, werr)
	}
	return err
}
