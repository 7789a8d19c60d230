package config

import (
	"os"
	"testing"
)

func TestLoadFromBytes(t *testing.T) {
	data := []byte(`
endpoint: http://localhost:4000/graphql
listen: 127.0.0.1:9999
log:
  level: debug
  format: json
tracking:
  include_variables: false
  max_in_flight: 50
redact:
  markers: [ssn]
audit:
  path: /tmp/trail.db
`)
	cfg, err := LoadFromBytes(data)
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}
	if cfg.Endpoint != "http://localhost:4000/graphql" {
		t.Errorf("unexpected endpoint %q", cfg.Endpoint)
	}
	if cfg.Listen != "127.0.0.1:9999" {
		t.Errorf("unexpected listen %q", cfg.Listen)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if *cfg.Tracking.IncludeVariables {
		t.Error("include_variables should stay false")
	}
	if !*cfg.Tracking.IncludeResponseData {
		t.Error("include_response_data should default to true")
	}
	if cfg.Tracking.MaxInFlight != 50 {
		t.Errorf("unexpected max_in_flight %d", cfg.Tracking.MaxInFlight)
	}
	if cfg.Audit.Path != "/tmp/trail.db" {
		t.Errorf("unexpected audit path %q", cfg.Audit.Path)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Endpoint: "http://localhost/graphql"}
	cfg.ApplyDefaults()

	if cfg.Listen == "" {
		t.Error("listen should get a default")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log defaults %+v", cfg.Log)
	}
	if cfg.Tracking.MaxInFlight != 1000 {
		t.Errorf("unexpected max_in_flight default %d", cfg.Tracking.MaxInFlight)
	}
	if cfg.PollInterval().Milliseconds() != 500 {
		t.Errorf("unexpected poll interval %v", cfg.PollInterval())
	}
	if cfg.SyntheticDuration().Milliseconds() != 10 {
		t.Errorf("unexpected synthetic duration %v", cfg.SyntheticDuration())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, true},
		{"negative max in flight", func(c *Config) { c.Tracking.MaxInFlight = -1 }, true},
		{"negative poll interval", func(c *Config) { c.Tracking.PollIntervalMS = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Endpoint: "http://localhost/graphql"}
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	os.Setenv("GQLSCOPE_TEST_HOST", "api.internal")
	defer os.Unsetenv("GQLSCOPE_TEST_HOST")

	cfg, err := LoadFromBytes([]byte("endpoint: http://${GQLSCOPE_TEST_HOST}/graphql\n"))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}
	if cfg.Endpoint != "http://api.internal/graphql" {
		t.Errorf("unexpected endpoint %q", cfg.Endpoint)
	}
}

func TestLoadMissingEnvFails(t *testing.T) {
	if _, err := LoadFromBytes([]byte("endpoint: http://${GQLSCOPE_NO_SUCH_VAR}/graphql\n")); err == nil {
		t.Fatal("expected error for missing env var")
	}
}
