// Package config provides configuration loading for coral-probe.
//
// Configuration is layered: defaults, then the YAML file, then environment
// variable overrides. The result is validated before it is returned.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load loads the configuration file at path. An empty path, or a path that
// does not exist, yields the defaults. Environment overrides are applied
// either way.
func Load(path string) (*Config, error) {
	if path == "" {
		return finish(DefaultConfig())
	}

	//nolint:gosec // G304: Path is provided by the operator.
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return finish(DefaultConfig())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config from %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults, applies environment
// overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	//nolint:gosec // G306: Config file is not sensitive
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
