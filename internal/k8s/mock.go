package k8s

import "context"

// MockClient is a Client whose methods delegate to the matching Func field.
// Unset fields report a healthy, empty cluster.
type MockClient struct {
	ServerVersionFunc  func(ctx context.Context) (string, error)
	NodeFunc           func(ctx context.Context, name string) (NodeStatus, error)
	ListNodesFunc      func(ctx context.Context) ([]NodeStatus, error)
	DeleteNodeFunc     func(ctx context.Context, name string) error
	PodsReadyFunc      func(ctx context.Context, namespace, selector string) (int, int, error)
	ApplyManifestsFunc func(ctx context.Context, manifests []byte, fieldManager string) error
}

var _ Client = (*MockClient)(nil)

// ServerVersion calls ServerVersionFunc or returns "v1.34.1".
func (m *MockClient) ServerVersion(ctx context.Context) (string, error) {
	if m.ServerVersionFunc != nil {
		return m.ServerVersionFunc(ctx)
	}
	return "v1.34.1", nil
}

// Node calls NodeFunc or reports the node Ready.
func (m *MockClient) Node(ctx context.Context, name string) (NodeStatus, error) {
	if m.NodeFunc != nil {
		return m.NodeFunc(ctx, name)
	}
	return NodeStatus{Name: name, Exists: true, Ready: true, Schedulable: true}, nil
}

// ListNodes calls ListNodesFunc or returns no nodes.
func (m *MockClient) ListNodes(ctx context.Context) ([]NodeStatus, error) {
	if m.ListNodesFunc != nil {
		return m.ListNodesFunc(ctx)
	}
	return nil, nil
}

// DeleteNode calls DeleteNodeFunc or succeeds.
func (m *MockClient) DeleteNode(ctx context.Context, name string) error {
	if m.DeleteNodeFunc != nil {
		return m.DeleteNodeFunc(ctx, name)
	}
	return nil
}

// PodsReady calls PodsReadyFunc or reports one ready pod.
func (m *MockClient) PodsReady(ctx context.Context, namespace, selector string) (int, int, error) {
	if m.PodsReadyFunc != nil {
		return m.PodsReadyFunc(ctx, namespace, selector)
	}
	return 1, 1, nil
}

// ApplyManifests calls ApplyManifestsFunc or succeeds.
func (m *MockClient) ApplyManifests(ctx context.Context, manifests []byte, fieldManager string) error {
	if m.ApplyManifestsFunc != nil {
		return m.ApplyManifestsFunc(ctx, manifests, fieldManager)
	}
	return nil
}
