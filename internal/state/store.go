package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/imamik/oxide/internal/platform/s3"
)

// File names inside the state directory.
const (
	SecretsFile      = "secrets.yaml"
	ControlPlaneFile = "controlplane.yaml"
	WorkerFile       = "worker.yaml"
	TalosconfigFile  = "talosconfig"
	KubeconfigFile   = "kubeconfig"
	StateFile        = "state.yaml"
	lockFile         = ".oxide.lock"
)

// bundleFiles are required for a cluster to exist.
var bundleFiles = []string{SecretsFile, ControlPlaneFile, WorkerFile, TalosconfigFile}

// lifetimeFiles belong to one running cluster. The machine configuration
// outlives them.
var lifetimeFiles = []string{KubeconfigFile, StateFile}

// syncedFiles are copied to the backup bucket.
var syncedFiles = []string{SecretsFile, ControlPlaneFile, WorkerFile, TalosconfigFile, KubeconfigFile, StateFile}

const lockRetryInterval = 100 * time.Millisecond

// ErrNoBundle means the state directory holds no configuration bundle.
var ErrNoBundle = errors.New("cluster does not exist, run 'oxide create' first")

// Bundle is the generated configuration of a cluster.
type Bundle struct {
	Secrets      []byte
	ControlPlane []byte
	Worker       []byte
	Talosconfig  []byte
	// Kubeconfig is empty until the cluster API has been reached once.
	Kubeconfig []byte
}

// Backup is an object store receiving copies of the state files.
type Backup interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Store reads and writes one state directory.
type Store struct {
	dir string

	backup Backup
	prefix string

	mu sync.Mutex // serializes state.yaml read-modify-write
}

// Option configures a Store.
type Option func(*Store)

// WithBackup mirrors state files to b under prefix/.
func WithBackup(b Backup, prefix string) Option {
	return func(s *Store) {
		s.backup = b
		s.prefix = prefix
	}
}

// NewStore returns a Store for dir. Nothing is created until the first write.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the path of a file in the state directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Lock takes the advisory lock on the state directory, waiting until ctx is
// done. The returned function releases it.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	fl := flock.New(s.Path(lockFile))
	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil || !locked {
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("state directory %s is in use by another oxide process: %w", s.dir, err)
	}
	return func() {
		// The lock file stays on disk so a concurrent waiter never locks an unlinked inode.
		_ = fl.Close()
	}, nil
}

// HasBundle reports whether every bundle file exists.
func (s *Store) HasBundle() bool {
	for _, name := range bundleFiles {
		if _, err := os.Stat(s.Path(name)); err != nil {
			return false
		}
	}
	return true
}

// Bundle reads the configuration bundle. A missing bundle returns ErrNoBundle.
func (s *Store) Bundle() (*Bundle, error) {
	if !s.HasBundle() {
		return nil, ErrNoBundle
	}
	b := &Bundle{}
	for name, dst := range map[string]*[]byte{
		SecretsFile:      &b.Secrets,
		ControlPlaneFile: &b.ControlPlane,
		WorkerFile:       &b.Worker,
		TalosconfigFile:  &b.Talosconfig,
		KubeconfigFile:   &b.Kubeconfig,
	} {
		data, err := os.ReadFile(s.Path(name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && name == KubeconfigFile {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		*dst = data
	}
	return b, nil
}

// SaveBundle writes every non-empty field of b.
func (s *Store) SaveBundle(b *Bundle) error {
	for _, f := range []struct {
		name string
		data []byte
	}{
		{SecretsFile, b.Secrets},
		{ControlPlaneFile, b.ControlPlane},
		{WorkerFile, b.Worker},
		{TalosconfigFile, b.Talosconfig},
		{KubeconfigFile, b.Kubeconfig},
	} {
		if len(f.data) == 0 {
			continue
		}
		if err := s.writeFile(f.name, f.data); err != nil {
			return err
		}
	}
	return nil
}

// SaveKubeconfig writes the cluster API credentials.
func (s *Store) SaveKubeconfig(data []byte) error {
	return s.writeFile(KubeconfigFile, data)
}

// SaveTalosconfig replaces the talosconfig.
func (s *Store) SaveTalosconfig(data []byte) error {
	return s.writeFile(TalosconfigFile, data)
}

// LoadState reads state.yaml. A missing file yields an empty state.
func (s *Store) LoadState() (*ClusterState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadState()
}

func (s *Store) loadState() (*ClusterState, error) {
	st := &ClusterState{}
	data, err := os.ReadFile(s.Path(StateFile))
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", StateFile, err)
	}
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", StateFile, err)
	}
	return st, nil
}

// UpdateState applies fn to the current state and writes the result.
func (s *Store) UpdateState(fn func(*ClusterState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadState()
	if err != nil {
		return err
	}
	fn(st)
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return s.writeFile(StateFile, data)
}

// writeFile replaces name atomically with mode 0600.
func (s *Store) writeFile(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Purge removes the state files. The lock file is kept.
func (s *Store) Purge(ctx context.Context) error {
	return s.remove(ctx, syncedFiles)
}

// ForgetCluster removes the kubeconfig and state.yaml after the cluster was
// torn down. The machine configuration stays, so a following create starts a
// new cluster lifetime with the same secrets.
func (s *Store) ForgetCluster(ctx context.Context) error {
	return s.remove(ctx, lifetimeFiles)
}

func (s *Store) remove(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
		if s.backup != nil {
			if err := s.backup.Delete(ctx, s.key(name)); err != nil {
				return fmt.Errorf("failed to remove backup of %s: %w", name, err)
			}
		}
	}
	return nil
}

// HasBackup reports whether a backup bucket is configured.
func (s *Store) HasBackup() bool {
	return s.backup != nil
}

// BackupFiles uploads every existing state file to the backup bucket.
func (s *Store) BackupFiles(ctx context.Context) ([]string, error) {
	if s.backup == nil {
		return nil, nil
	}
	var uploaded []string
	for _, name := range syncedFiles {
		data, err := os.ReadFile(s.Path(name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return uploaded, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if err := s.backup.Put(ctx, s.key(name), data); err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, name)
	}
	return uploaded, nil
}

// RestoreMissing downloads state files that are missing locally. Files absent
// from the bucket are skipped.
func (s *Store) RestoreMissing(ctx context.Context) ([]string, error) {
	if s.backup == nil {
		return nil, nil
	}
	var restored []string
	for _, name := range syncedFiles {
		if _, err := os.Stat(s.Path(name)); err == nil {
			continue
		}
		data, err := s.backup.Get(ctx, s.key(name))
		if errors.Is(err, s3.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return restored, err
		}
		if err := s.writeFile(name, data); err != nil {
			return restored, err
		}
		restored = append(restored, name)
	}
	return restored, nil
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}
