package talos

import (
	"context"
	"io"
	"sync"
)

// MockClient is a NodeAPI whose methods delegate to the matching Func field.
// Unset fields succeed. Calls are recorded in order.
type MockClient struct {
	VersionFunc    func(ctx context.Context, node Target) (string, error)
	BootstrapFunc  func(ctx context.Context, node Target) error
	ResetFunc      func(ctx context.Context, node Target) (ResetOutcome, error)
	KubeconfigFunc func(ctx context.Context, node Target) ([]byte, error)
	LogsFunc       func(ctx context.Context, node Target, service string, tailLines int32, w io.Writer) error

	mu    sync.Mutex
	calls []string
}

var _ NodeAPI = (*MockClient)(nil)

func (m *MockClient) record(op string, node Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op+" "+node.Name)
}

// Calls returns the recorded calls as "op node" strings.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Version calls VersionFunc or returns "v1.12.4".
func (m *MockClient) Version(ctx context.Context, node Target) (string, error) {
	m.record("version", node)
	if m.VersionFunc != nil {
		return m.VersionFunc(ctx, node)
	}
	return "v1.12.4", nil
}

// Bootstrap calls BootstrapFunc or succeeds.
func (m *MockClient) Bootstrap(ctx context.Context, node Target) error {
	m.record("bootstrap", node)
	if m.BootstrapFunc != nil {
		return m.BootstrapFunc(ctx, node)
	}
	return nil
}

// Reset calls ResetFunc or acknowledges.
func (m *MockClient) Reset(ctx context.Context, node Target) (ResetOutcome, error) {
	m.record("reset", node)
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, node)
	}
	return ResetAcknowledged, nil
}

// Kubeconfig calls KubeconfigFunc or returns a placeholder.
func (m *MockClient) Kubeconfig(ctx context.Context, node Target) ([]byte, error) {
	m.record("kubeconfig", node)
	if m.KubeconfigFunc != nil {
		return m.KubeconfigFunc(ctx, node)
	}
	return []byte("kubeconfig"), nil
}

// Logs calls LogsFunc or writes nothing.
func (m *MockClient) Logs(ctx context.Context, node Target, service string, tailLines int32, w io.Writer) error {
	m.record("logs", node)
	if m.LogsFunc != nil {
		return m.LogsFunc(ctx, node, service, tailLines, w)
	}
	return nil
}
