package k8s

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/tools/clientcmd"
)

func TestRewriteServer(t *testing.T) {
	t.Parallel()

	out, err := RewriteServer([]byte(testKubeconfig), "https://203.0.113.10:6443")
	require.NoError(t, err)

	cfg, err := clientcmd.Load(out)
	require.NoError(t, err)
	require.Contains(t, cfg.Clusters, "demo")
	assert.Equal(t, "https://203.0.113.10:6443", cfg.Clusters["demo"].Server)
	assert.Equal(t, "admin@demo", cfg.CurrentContext)
	assert.Equal(t, "test-token", cfg.AuthInfos["admin@demo"].Token)
}

func TestRewriteServer_Errors(t *testing.T) {
	t.Parallel()

	_, err := RewriteServer([]byte("{not yaml"), "https://203.0.113.10:6443")
	require.Error(t, err)

	_, err = RewriteServer([]byte("apiVersion: v1\nkind: Config\n"), "https://203.0.113.10:6443")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no clusters")
}
