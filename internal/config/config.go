// Package config holds the runtime configuration for the gqlscope binary.
package config

import (
	"fmt"
	"time"
)

type Config struct {
	// Endpoint is the GraphQL endpoint the built-in client talks to.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// Listen is the address the inspection bridge serves websockets on.
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`

	Log      LogConfig      `json:"log,omitempty" yaml:"log,omitempty"`
	Tracking TrackingConfig `json:"tracking,omitempty" yaml:"tracking,omitempty"`
	Redact   RedactConfig   `json:"redact,omitempty" yaml:"redact,omitempty"`
	Audit    AuditConfig    `json:"audit,omitempty" yaml:"audit,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // text or json
}

type TrackingConfig struct {
	IncludeVariables    *bool `json:"include_variables,omitempty" yaml:"include_variables,omitempty"`
	IncludeResponseData *bool `json:"include_response_data,omitempty" yaml:"include_response_data,omitempty"`
	MaxInFlight         int   `json:"max_in_flight,omitempty" yaml:"max_in_flight,omitempty"`
	PollIntervalMS      int   `json:"poll_interval_ms,omitempty" yaml:"poll_interval_ms,omitempty"`
	SyntheticDurationMS int   `json:"synthetic_duration_ms,omitempty" yaml:"synthetic_duration_ms,omitempty"`
}

type RedactConfig struct {
	// Markers are extra variable-name fragments masked in captured variables.
	Markers []string `json:"markers,omitempty" yaml:"markers,omitempty"`
}

type AuditConfig struct {
	// Path enables the SQLite session trail when set.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:9230"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Tracking.IncludeVariables == nil {
		defaultTrue := true
		c.Tracking.IncludeVariables = &defaultTrue
	}
	if c.Tracking.IncludeResponseData == nil {
		defaultTrue := true
		c.Tracking.IncludeResponseData = &defaultTrue
	}
	if c.Tracking.MaxInFlight == 0 {
		c.Tracking.MaxInFlight = 1000
	}
	if c.Tracking.PollIntervalMS == 0 {
		c.Tracking.PollIntervalMS = 500
	}
	if c.Tracking.SyntheticDurationMS == 0 {
		c.Tracking.SyntheticDurationMS = 10
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json', got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Tracking.MaxInFlight < 0 {
		return fmt.Errorf("tracking.max_in_flight must be >= 0")
	}
	if c.Tracking.PollIntervalMS < 0 {
		return fmt.Errorf("tracking.poll_interval_ms must be >= 0")
	}
	if c.Tracking.SyntheticDurationMS < 0 {
		return fmt.Errorf("tracking.synthetic_duration_ms must be >= 0")
	}
	return nil
}

// PollInterval returns the configured poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Tracking.PollIntervalMS) * time.Millisecond
}

// SyntheticDuration returns the duration reported for operations whose
// timing was never directly observed.
func (c *Config) SyntheticDuration() time.Duration {
	return time.Duration(c.Tracking.SyntheticDurationMS) * time.Millisecond
}
