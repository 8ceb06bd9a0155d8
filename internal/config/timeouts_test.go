package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimeouts_Defaults(t *testing.T) {
	for _, v := range []string{"OXIDE_TIMEOUT_NODE_READY", "OXIDE_TIMEOUT_CORDON", "OXIDE_SCALE_CONCURRENCY"} {
		t.Setenv(v, "")
	}
	to := LoadTimeouts()
	assert.Equal(t, 10*time.Minute, to.NodeReady)
	assert.Equal(t, 5*time.Second, to.NodeReadyPoll)
	assert.Equal(t, 2*time.Minute, to.Cordon)
	assert.Equal(t, 2*time.Second, to.CordonPoll)
	assert.Equal(t, 3, to.ScaleConcurrency)
}

func TestLoadTimeouts_EnvOverrides(t *testing.T) {
	t.Setenv("OXIDE_TIMEOUT_NODE_READY", "90s")
	t.Setenv("OXIDE_SCALE_CONCURRENCY", "5")
	t.Setenv("OXIDE_TIMEOUT_CORDON", "garbage")
	t.Setenv("OXIDE_RETRY_MAX_ATTEMPTS", "-1")

	to := LoadTimeouts()
	assert.Equal(t, 90*time.Second, to.NodeReady)
	assert.Equal(t, 5, to.ScaleConcurrency)
	assert.Equal(t, 2*time.Minute, to.Cordon)
	assert.Equal(t, 5, to.RetryMaxAttempts)
}
