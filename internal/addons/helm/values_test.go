package helm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	t.Parallel()

	base := Values{
		"ipam":     Values{"mode": "kubernetes"},
		"operator": Values{"replicas": 1, "rollOutPods": true},
		"hubble":   Values{"enabled": false},
		"tags":     []string{"a"},
	}
	override := Values{
		"operator": map[string]any{"replicas": 2},
		"hubble":   true,
		"tags":     []string{"b"},
		"extra":    Values{"nested": Values{"key": "value"}},
	}

	merged := Merge(base, override)

	assert.Equal(t, map[string]any{"mode": "kubernetes"}, merged["ipam"])
	assert.Equal(t, map[string]any{"replicas": 2, "rollOutPods": true}, merged["operator"])
	assert.Equal(t, true, merged["hubble"])
	assert.Equal(t, []string{"b"}, merged["tags"])

	extra, ok := merged["extra"].(map[string]any)
	require.True(t, ok, "nested Values are converted to plain maps")
	_, ok = extra["nested"].(map[string]any)
	assert.True(t, ok)
}

func TestMerge_DoesNotModifyInputs(t *testing.T) {
	t.Parallel()

	base := Values{"operator": Values{"replicas": 1}}
	override := Values{"operator": Values{"replicas": 2}}

	_ = Merge(base, override)

	assert.Equal(t, 1, base["operator"].(Values)["replicas"])
	assert.Equal(t, 2, override["operator"].(Values)["replicas"])
}

func TestMerge_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Merge())
	assert.Equal(t, Values{"a": 1}, Merge(nil, Values{"a": 1}, nil))
}

func TestValuesYAML(t *testing.T) {
	t.Parallel()

	data, err := Values{"k8sServiceHost": "localhost", "k8sServicePort": 7445}.ToYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "k8sServiceHost: localhost")

	values, err := FromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, "localhost", values["k8sServiceHost"])
	assert.Equal(t, 7445, values["k8sServicePort"])

	_, err = FromYAML([]byte("{invalid: ["))
	require.Error(t, err)
}
