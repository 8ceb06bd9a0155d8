package k8s

import (
	"context"
	"fmt"
	"sort"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
)

// FieldManager identifies oxide as the owner of server-side applied fields.
const FieldManager = "oxide"

// Client provides the cluster API operations used by the orchestrator.
type Client interface {
	// ServerVersion queries /version. It fails until the API server answers.
	ServerVersion(ctx context.Context) (string, error)

	// Node returns the status of one node. A missing node is reported with
	// Exists=false and no error.
	Node(ctx context.Context, name string) (NodeStatus, error)

	// ListNodes returns all nodes sorted by name.
	ListNodes(ctx context.Context) ([]NodeStatus, error)

	// DeleteNode removes the node object. NotFound counts as deleted.
	DeleteNode(ctx context.Context, name string) error

	// PodsReady counts pods matching selector in namespace and how many of
	// them have the Ready condition.
	PodsReady(ctx context.Context, namespace, selector string) (ready, total int, err error)

	// ApplyManifests applies multi-document YAML using Server-Side Apply.
	ApplyManifests(ctx context.Context, manifests []byte, fieldManager string) error
}

// NodeStatus is the part of a node object the lifecycle workflows look at.
type NodeStatus struct {
	Name        string
	Exists      bool
	Ready       bool
	Schedulable bool
	InternalIP  string
	Kubelet     string
}

// Cordoned reports whether a node has stopped serving: NotReady and
// unschedulable, or already gone.
func (s NodeStatus) Cordoned() bool {
	return !s.Exists || (!s.Ready && !s.Schedulable)
}

type client struct {
	clientset     kubernetes.Interface
	dynamicClient dynamic.Interface
	mapper        meta.RESTMapper
}

// NewFromKubeconfig creates a Client from kubeconfig bytes.
// No request is made until the first call, so the client can be built
// before the API server is reachable.
func NewFromKubeconfig(kubeconfig []byte) (Client, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create REST config from kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}

	// Deferred so that CRDs applied earlier in the same run are discovered.
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(discoveryClient))

	return &client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		mapper:        mapper,
	}, nil
}

// NewFromClients creates a Client from pre-configured clients.
// This is useful for testing with fake clients.
func NewFromClients(
	clientset kubernetes.Interface,
	dynamicClient dynamic.Interface,
	mapper meta.RESTMapper,
) Client {
	return &client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		mapper:        mapper,
	}
}

func (c *client) ServerVersion(_ context.Context) (string, error) {
	info, err := c.clientset.Discovery().ServerVersion()
	if err != nil {
		return "", fmt.Errorf("failed to query API server version: %w", err)
	}
	return info.GitVersion, nil
}

func (c *client) Node(ctx context.Context, name string) (NodeStatus, error) {
	node, err := c.clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return NodeStatus{Name: name}, nil
		}
		return NodeStatus{}, fmt.Errorf("failed to get node %s: %w", name, err)
	}
	return nodeStatus(node), nil
}

func (c *client) ListNodes(ctx context.Context) ([]NodeStatus, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	nodes := make([]NodeStatus, 0, len(list.Items))
	for i := range list.Items {
		nodes = append(nodes, nodeStatus(&list.Items[i]))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

func (c *client) DeleteNode(ctx context.Context, name string) error {
	err := c.clientset.CoreV1().Nodes().Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete node %s: %w", name, err)
	}
	return nil
}

func (c *client) PodsReady(ctx context.Context, namespace, selector string) (int, int, error) {
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list pods %q in %s: %w", selector, namespace, err)
	}
	ready := 0
	for i := range pods.Items {
		if podReady(&pods.Items[i]) {
			ready++
		}
	}
	return ready, len(pods.Items), nil
}

func nodeStatus(node *corev1.Node) NodeStatus {
	s := NodeStatus{
		Name:        node.Name,
		Exists:      true,
		Schedulable: !node.Spec.Unschedulable,
		Kubelet:     node.Status.NodeInfo.KubeletVersion,
	}
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			s.Ready = cond.Status == corev1.ConditionTrue
		}
	}
	for _, addr := range node.Status.Addresses {
		if addr.Type == corev1.NodeInternalIP {
			s.InternalIP = addr.Address
			break
		}
	}
	return s
}

func podReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}
