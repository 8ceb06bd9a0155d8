package config

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCIDRHost(t *testing.T) {
	t.Parallel()
	tests := []struct {
		prefix  string
		host    int
		want    string
		wantErr bool
	}{
		{"10.0.1.0/24", 10, "10.0.1.10", false},
		{"10.0.1.0/24", -2, "10.0.1.254", false},
		{"10.0.0.0/16", 256, "10.0.1.0", false},
		{"10.0.1.0/24", 256, "", true},
		{"fd00::/64", 1, "", true},
		{"bogus", 1, "", true},
	}
	for _, tt := range tests {
		got, err := CIDRHost(tt.prefix, tt.host)
		if tt.wantErr {
			assert.Error(t, err, tt.prefix)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestCIDRRelations(t *testing.T) {
	t.Parallel()
	mustNet := func(s string) *net.IPNet {
		_, n, err := net.ParseCIDR(s)
		require.NoError(t, err)
		return n
	}
	assert.True(t, cidrContains(mustNet("10.0.0.0/16"), mustNet("10.0.1.0/24")))
	assert.False(t, cidrContains(mustNet("10.0.1.0/24"), mustNet("10.0.0.0/16")))
	assert.True(t, cidrOverlaps(mustNet("10.0.1.0/24"), mustNet("10.0.0.0/16")))
	assert.False(t, cidrOverlaps(mustNet("10.244.0.0/16"), mustNet("10.96.0.0/12")))
}
