package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfigFile(t, `
vesync:
  username: user@example.com
  password: hunter2
  update_interval: 60
database:
  path: /tmp/test.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.VeSync.Username != "user@example.com" {
		t.Errorf("username = %q, want user@example.com", cfg.VeSync.Username)
	}
	if cfg.GetUpdateInterval() != 60*time.Second {
		t.Errorf("update interval = %v, want 60s", cfg.GetUpdateInterval())
	}
	// The section value must answer on its own: the controller holds
	// only the VeSync section, not the root config.
	if cfg.VeSync.GetUpdateInterval() != 60*time.Second {
		t.Errorf("vesync section update interval = %v, want 60s", cfg.VeSync.GetUpdateInterval())
	}
	// Defaults survive partial files
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("mqtt port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Broker.ClientID != "vesync-bridge" {
		t.Errorf("mqtt client_id = %q, want default vesync-bridge", cfg.MQTT.Broker.ClientID)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "vesync: [not a map")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestValidateMissingCredentials(t *testing.T) {
	cfg := defaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if !strings.Contains(err.Error(), "vesync.username") {
		t.Errorf("error should mention vesync.username: %v", err)
	}
	if !strings.Contains(err.Error(), "vesync.password") {
		t.Errorf("error should mention vesync.password: %v", err)
	}
}

func TestValidateInvalidQoS(t *testing.T) {
	cfg := defaultConfig()
	cfg.VeSync.Username = "u"
	cfg.VeSync.Password = "p"
	cfg.MQTT.QoS = 3

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "mqtt.qos") {
		t.Errorf("expected mqtt.qos error, got: %v", err)
	}
}

func TestValidateInfluxRequiresTokenWhenEnabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.VeSync.Username = "u"
	cfg.VeSync.Password = "p"
	cfg.InfluxDB.Enabled = true
	cfg.InfluxDB.URL = "http://localhost:8086"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "influxdb.token") {
		t.Errorf("expected influxdb.token error, got: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
vesync:
  username: file-user@example.com
  password: file-pass
`)

	t.Setenv("VESYNC_USERNAME", "env-user@example.com")
	t.Setenv("VESYNC_PASSWORD", "env-pass")
	t.Setenv("VESYNC_UPDATE_INTERVAL", "120")
	t.Setenv("VESYNC_MQTT_HOST", "broker.local")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.VeSync.Username != "env-user@example.com" {
		t.Errorf("username = %q, env override lost", cfg.VeSync.Username)
	}
	if cfg.VeSync.Password != "env-pass" {
		t.Errorf("password env override lost")
	}
	if cfg.VeSync.UpdateInterval != 120 {
		t.Errorf("update_interval = %d, want 120", cfg.VeSync.UpdateInterval)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("mqtt host = %q, want broker.local", cfg.MQTT.Broker.Host)
	}
}

func TestValidateUpdateIntervalBounds(t *testing.T) {
	cfg := defaultConfig()
	cfg.VeSync.Username = "u"
	cfg.VeSync.Password = "p"
	cfg.VeSync.UpdateInterval = 0

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "update_interval") {
		t.Errorf("expected update_interval error, got: %v", err)
	}
}
