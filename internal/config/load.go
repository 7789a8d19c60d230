package config

import (
	"fmt"
	"os"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := LoadFromBytes(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ExpandEnv() error {
	var err error
	c.Endpoint, err = ExpandEnvStrict(c.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	c.Listen, err = ExpandEnvStrict(c.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	c.Audit.Path, err = ExpandEnvStrict(c.Audit.Path)
	if err != nil {
		return fmt.Errorf("audit.path: %w", err)
	}
	return nil
}
