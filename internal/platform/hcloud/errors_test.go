package hcloud

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsResourceLocked(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "generic error", err: errors.New("something went wrong"), expected: false},
		{name: "locked", err: hcloud.Error{Code: hcloud.ErrorCodeLocked}, expected: true},
		{name: "conflict", err: hcloud.Error{Code: hcloud.ErrorCodeConflict}, expected: true},
		{name: "resource locked", err: hcloud.Error{Code: hcloud.ErrorCodeResourceLocked}, expected: true},
		{name: "wrapped locked", err: fmt.Errorf("attach: %w", hcloud.Error{Code: hcloud.ErrorCodeLocked}), expected: true},
		{name: "invalid input", err: hcloud.Error{Code: hcloud.ErrorCodeInvalidInput}, expected: false},
		{name: "quota", err: hcloud.Error{Code: hcloud.ErrorCodeResourceLimitExceeded}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, isResourceLocked(tt.err))
		})
	}
}

func TestProviderError(t *testing.T) {
	t.Parallel()

	t.Run("nil stays nil", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, providerError("create server", "c-worker-1", nil))
	})

	t.Run("carries hcloud code and message", func(t *testing.T) {
		t.Parallel()
		cause := hcloud.Error{Code: hcloud.ErrorCodeResourceLimitExceeded, Message: "server limit reached"}
		err := providerError("create server", "c-worker-1", fmt.Errorf("wrapped: %w", cause))

		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "create server", pe.Op)
		assert.Equal(t, "c-worker-1", pe.Resource)
		assert.Equal(t, hcloud.ErrorCodeResourceLimitExceeded, pe.Code)
		assert.Equal(t, "server limit reached", pe.Message)
		assert.Contains(t, err.Error(), "resource_limit_exceeded")
		assert.True(t, IsQuotaExceeded(err))
	})

	t.Run("non api error", func(t *testing.T) {
		t.Parallel()
		err := providerError("delete network", "c", errors.New("dial tcp: timeout"))

		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Empty(t, pe.Code)
		assert.Contains(t, err.Error(), "dial tcp: timeout")
	})

	t.Run("already wrapped passes through", func(t *testing.T) {
		t.Parallel()
		inner := &ProviderError{Op: "ensure network", Resource: "c", Err: errors.New("x")}
		err := providerError("ensure firewall", "c", inner)
		assert.Same(t, inner, err)
	})
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFound(hcloud.Error{Code: hcloud.ErrorCodeNotFound}))
	assert.False(t, IsNotFound(hcloud.Error{Code: hcloud.ErrorCodeLocked}))
	assert.False(t, IsNotFound(nil))
}
