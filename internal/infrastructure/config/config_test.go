package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
platform:
  id: "test-platform"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
discovery:
  qos: 1
  workers: 3
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Platform.ID != "test-platform" {
		t.Errorf("Platform.ID = %q, want %q", cfg.Platform.ID, "test-platform")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
	if cfg.Discovery.Workers != 3 {
		t.Errorf("Discovery.Workers = %d, want 3", cfg.Discovery.Workers)
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Minimal config relies on defaults for everything else.
	content := `
platform:
  id: "test-platform"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Discovery.Workers != 5 {
		t.Errorf("Discovery.Workers = %d, want 5", cfg.Discovery.Workers)
	}
	if cfg.Discovery.LogRetentionDays != 30 {
		t.Errorf("Discovery.LogRetentionDays = %d, want 30", cfg.Discovery.LogRetentionDays)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "platform: [unclosed"))
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
platform:
  id: "test-platform"
mqtt:
  broker:
    host: "filehost"
`
	t.Setenv("DEVSCOUT_MQTT_HOST", "envhost")
	t.Setenv("DEVSCOUT_DATABASE_PATH", "/env/path.db")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "envhost" {
		t.Errorf("MQTT.Broker.Host = %q, want env override %q", cfg.MQTT.Broker.Host, "envhost")
	}
	if cfg.Database.Path != "/env/path.db" {
		t.Errorf("Database.Path = %q, want env override %q", cfg.Database.Path, "/env/path.db")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing platform id", func(c *Config) { c.Platform.ID = "" }},
		{"missing database path", func(c *Config) { c.Database.Path = "" }},
		{"invalid mqtt qos", func(c *Config) { c.MQTT.QoS = 3 }},
		{"invalid discovery qos", func(c *Config) { c.Discovery.QoS = -1 }},
		{"zero discovery workers", func(c *Config) { c.Discovery.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}
}
