package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServer(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "demo-worker-3", Server("demo", "worker", 3))
	assert.Equal(t, "demo-control-plane-1", Server("demo", "control-plane", 1))
	assert.Equal(t, "demo-key", SSHKey("demo"))
	assert.Equal(t, "demo", Network("demo"))
	assert.Equal(t, "demo", Firewall("demo"))
}

func TestParseServer(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		wantPool  string
		wantIndex int
		wantOK    bool
	}{
		{"demo-worker-3", "worker", 3, true},
		{"demo-control-plane-12", "control-plane", 12, true},
		{"demo-worker-0", "", 0, false},
		{"demo-worker-", "", 0, false},
		{"demo-worker-x", "", 0, false},
		{"other-worker-1", "", 0, false},
		{"demo-1", "", 0, false},
	}
	for _, tt := range tests {
		pool, index, ok := ParseServer("demo", tt.name)
		assert.Equal(t, tt.wantOK, ok, tt.name)
		assert.Equal(t, tt.wantPool, pool, tt.name)
		assert.Equal(t, tt.wantIndex, index, tt.name)
	}
}

func TestParseServer_RoundTrip(t *testing.T) {
	t.Parallel()
	for i := 1; i < 20; i++ {
		pool, index, ok := ParseServer("c", Server("c", "gpu-pool", i))
		assert.True(t, ok)
		assert.Equal(t, "gpu-pool", pool)
		assert.Equal(t, i, index)
	}
}
