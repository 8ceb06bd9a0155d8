package helm

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Values represents helm chart values as a map.
type Values map[string]any

// Merge deep-merges value maps left to right. Nested maps are merged key by
// key; any other value from a later map replaces the earlier one. The inputs
// are not modified.
func Merge(valueMaps ...Values) Values {
	result := make(Values)
	for _, m := range valueMaps {
		mergeInto(result, m)
	}
	return result
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := asMap(v)
		dstMap, dstIsMap := asMap(dst[k])
		switch {
		case srcIsMap && dstIsMap:
			merged := make(map[string]any, len(dstMap))
			mergeInto(merged, dstMap)
			mergeInto(merged, srcMap)
			dst[k] = merged
		case srcIsMap:
			copied := make(map[string]any, len(srcMap))
			mergeInto(copied, srcMap)
			dst[k] = copied
		default:
			dst[k] = v
		}
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Values:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

// ToYAML converts values to YAML bytes.
func (v Values) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(map[string]any(v))
	if err != nil {
		return nil, fmt.Errorf("failed to encode values to YAML: %w", err)
	}
	return data, nil
}

// FromYAML parses YAML bytes into Values.
func FromYAML(data []byte) (Values, error) {
	var values Values
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse YAML values: %w", err)
	}
	return values, nil
}
