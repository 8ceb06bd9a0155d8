package helm

import (
	"sync"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// kubeconfigGetter implements genericclioptions.RESTClientGetter on top of
// kubeconfig bytes instead of a path on disk.
type kubeconfigGetter struct {
	kubeconfig []byte
	namespace  string

	once       sync.Once
	restConfig *rest.Config
	err        error
}

func newKubeconfigGetter(kubeconfig []byte, namespace string) *kubeconfigGetter {
	return &kubeconfigGetter{kubeconfig: kubeconfig, namespace: namespace}
}

func (g *kubeconfigGetter) ToRESTConfig() (*rest.Config, error) {
	g.once.Do(func() {
		g.restConfig, g.err = clientcmd.RESTConfigFromKubeConfig(g.kubeconfig)
	})
	return g.restConfig, g.err
}

func (g *kubeconfigGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	restConfig, err := g.ToRESTConfig()
	if err != nil {
		return nil, err
	}
	dc, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, err
	}
	return memory.NewMemCacheClient(dc), nil
}

func (g *kubeconfigGetter) ToRESTMapper() (meta.RESTMapper, error) {
	dc, err := g.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(dc), nil
}

// ToRawKubeConfigLoader pins the namespace so releases land where the
// caller asked regardless of the kubeconfig context.
func (g *kubeconfigGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	raw, err := clientcmd.Load(g.kubeconfig)
	if err != nil {
		raw = clientcmdapi.NewConfig()
	}
	overrides := &clientcmd.ConfigOverrides{}
	overrides.Context.Namespace = g.namespace
	return clientcmd.NewDefaultClientConfig(*raw, overrides)
}
