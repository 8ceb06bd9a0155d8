package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateClusterName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "prod-eu", false},
		{"empty", "", true},
		{"uppercase", "Prod", true},
		{"leading hyphen", "-prod", true},
		{"too long", "a123456789012345678901234567890123", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateClusterName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServerTypeOptionsIncludeDefault(t *testing.T) {
	t.Parallel()

	var found bool
	for _, o := range serverTypeOptions {
		if o.Value == DefaultServerType {
			found = true
		}
	}
	assert.True(t, found, "wizard must offer the default server type")
}
