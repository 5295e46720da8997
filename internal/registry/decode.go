package registry

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeComponentConfig re-marshals a generic config map to YAML and
// unmarshals it into target, turning a map[string]any config block into a
// typed struct.
func DecodeComponentConfig(config map[string]any, target any) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal component config: %w", err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal component config: %w", err)
	}
	return nil
}
