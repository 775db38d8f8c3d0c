package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a YAML config file into a Config seeded with
// LoadFromEnv's defaults, so a config.yaml only needs to name the settings
// it overrides. Grounded on the teacher's apoc.LoadConfig (apoc/config.go),
// which loads its function/plugin config the same seed-then-unmarshal way.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := LoadFromEnv()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromFileOrEnv loads path if non-empty, falling back to LoadFromEnv
// when no config file was given.
func LoadFromFileOrEnv(path string) (*Config, error) {
	if path == "" {
		return LoadFromEnv(), nil
	}
	return LoadFromFile(path)
}
