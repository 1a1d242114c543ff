package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadFile overlays the YAML document at path onto cfg. Unset keys keep
// their previous values, so a partial file is a valid overlay.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	return nil
}
