package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overlayYAML merges a YAML file's fields into cfg. $VAR references inside
// the file are expanded against the process environment first, the same
// way the teacher's loader resolves $include/env substitution, so a
// deployment can mix a checked-in YAML skeleton with secrets injected via
// environment variables.
func overlayYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
