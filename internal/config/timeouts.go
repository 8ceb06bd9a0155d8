package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all wait bounds and intervals used by the orchestrator.
type Timeouts struct {
	ServerCreate      time.Duration // Hetzner server creation, including network attach
	Delete            time.Duration // any Hetzner delete operation
	RetryMaxAttempts  int           // retries for locked Hetzner resources
	RetryInitialDelay time.Duration

	TalosAPI      time.Duration // first control plane management API reachable
	APIServer     time.Duration // cluster API answering after bootstrap
	APIPoll       time.Duration
	NodeReady     time.Duration // new node reporting Ready
	NodeReadyPoll time.Duration
	Cordon        time.Duration // node NotReady and unschedulable after reset
	CordonPoll    time.Duration
	Cilium        time.Duration // Cilium agents Ready
	CiliumPoll    time.Duration
	TalosCall     time.Duration // single management API call (precheck, reset)

	ScaleConcurrency int // parallel add workflows
}

// LoadTimeouts reads timeouts from the environment, falling back to defaults
// for unset or unparsable values.
//
// Environment variables:
//   - OXIDE_TIMEOUT_SERVER_CREATE (10m), OXIDE_TIMEOUT_DELETE (5m)
//   - OXIDE_RETRY_MAX_ATTEMPTS (5), OXIDE_RETRY_INITIAL_DELAY (1s)
//   - OXIDE_TIMEOUT_TALOS_API (10m), OXIDE_TIMEOUT_API_SERVER (5m)
//   - OXIDE_TIMEOUT_NODE_READY (10m), OXIDE_TIMEOUT_CORDON (2m)
//   - OXIDE_TIMEOUT_CILIUM (5m), OXIDE_TIMEOUT_TALOS_CALL (30s)
//   - OXIDE_SCALE_CONCURRENCY (3)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		ServerCreate:      parseDuration("OXIDE_TIMEOUT_SERVER_CREATE", 10*time.Minute),
		Delete:            parseDuration("OXIDE_TIMEOUT_DELETE", 5*time.Minute),
		RetryMaxAttempts:  parseInt("OXIDE_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("OXIDE_RETRY_INITIAL_DELAY", time.Second),

		TalosAPI:      parseDuration("OXIDE_TIMEOUT_TALOS_API", 10*time.Minute),
		APIServer:     parseDuration("OXIDE_TIMEOUT_API_SERVER", 5*time.Minute),
		APIPoll:       5 * time.Second,
		NodeReady:     parseDuration("OXIDE_TIMEOUT_NODE_READY", 10*time.Minute),
		NodeReadyPoll: 5 * time.Second,
		Cordon:        parseDuration("OXIDE_TIMEOUT_CORDON", 2*time.Minute),
		CordonPoll:    2 * time.Second,
		Cilium:        parseDuration("OXIDE_TIMEOUT_CILIUM", 5*time.Minute),
		CiliumPoll:    10 * time.Second,
		TalosCall:     parseDuration("OXIDE_TIMEOUT_TALOS_CALL", 30*time.Second),

		ScaleConcurrency: parseInt("OXIDE_SCALE_CONCURRENCY", 3),
	}
}

func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

// TestTimeouts returns short timeouts for unit tests.
func TestTimeouts() *Timeouts {
	return &Timeouts{
		ServerCreate:      5 * time.Second,
		Delete:            5 * time.Second,
		RetryMaxAttempts:  3,
		RetryInitialDelay: 10 * time.Millisecond,

		TalosAPI:      time.Second,
		APIServer:     time.Second,
		APIPoll:       10 * time.Millisecond,
		NodeReady:     time.Second,
		NodeReadyPoll: 10 * time.Millisecond,
		Cordon:        time.Second,
		CordonPoll:    10 * time.Millisecond,
		Cilium:        time.Second,
		CiliumPoll:    10 * time.Millisecond,
		TalosCall:     time.Second,

		ScaleConcurrency: 2,
	}
}
