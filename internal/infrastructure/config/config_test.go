package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "bottle-station"
api:
  host: "127.0.0.1"
  port: 9090
  path: "/ir.php"
sensor:
  script_dir: "/opt/irsensor"
  script_name: "read_ir_sensor.py"
  interpreter: "python3"
  elevation: ["sudo"]
  timeout: 15
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
  topic_prefix: "station"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "bottle-station" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "bottle-station")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.API.Path != "/ir.php" {
		t.Errorf("API.Path = %q, want %q", cfg.API.Path, "/ir.php")
	}
	if cfg.Sensor.ScriptDir != "/opt/irsensor" {
		t.Errorf("Sensor.ScriptDir = %q, want %q", cfg.Sensor.ScriptDir, "/opt/irsensor")
	}
	if len(cfg.Sensor.Elevation) != 1 || cfg.Sensor.Elevation[0] != "sudo" {
		t.Errorf("Sensor.Elevation = %v, want [sudo]", cfg.Sensor.Elevation)
	}
	if cfg.GetSensorTimeout() != 15*time.Second {
		t.Errorf("GetSensorTimeout() = %v, want 15s", cfg.GetSensorTimeout())
	}
	if cfg.MQTT.TopicPrefix != "station" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "station")
	}

	// Unset keys keep their defaults.
	if !cfg.Sensor.ExposeRawOutput {
		t.Error("Sensor.ExposeRawOutput should default to true")
	}
	if !cfg.Audit.Enabled {
		t.Error("Audit.Enabled should default to true")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
api:
  port: 8080
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing site ID",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: "site.id",
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "relative endpoint path",
			mutate:  func(c *Config) { c.API.Path = "ir" },
			wantErr: "api.path",
		},
		{
			name:    "tls without certificate",
			mutate:  func(c *Config) { c.API.TLS.Enabled = true },
			wantErr: "api.tls",
		},
		{
			name:    "missing script name",
			mutate:  func(c *Config) { c.Sensor.ScriptName = "" },
			wantErr: "sensor.script_name",
		},
		{
			name:    "script name with directory",
			mutate:  func(c *Config) { c.Sensor.ScriptName = "bin/read_ir_sensor.py" },
			wantErr: "sensor.script_name",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Sensor.Timeout = -1 },
			wantErr: "sensor.timeout",
		},
		{
			name: "audit without database path",
			mutate: func(c *Config) {
				c.Database.Path = ""
			},
			wantErr: "database.path",
		},
		{
			name: "audit disabled without database path",
			mutate: func(c *Config) {
				c.Audit.Enabled = false
				c.Database.Path = ""
			},
		},
		{
			name: "invalid QoS when mqtt enabled",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: "mqtt.qos",
		},
		{
			name:   "invalid QoS ignored when mqtt disabled",
			mutate: func(c *Config) { c.MQTT.QoS = 3 },
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Bucket = "metrics"
			},
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_AggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Site.ID = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	if !strings.Contains(err.Error(), "site.id") || !strings.Contains(err.Error(), "api.port") {
		t.Errorf("Validate() error = %v, want both site.id and api.port", err)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.API.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.API.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.API.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}

	if got := cfg.GetSensorTimeout(); got != 0 {
		t.Errorf("GetSensorTimeout() = %v, want 0", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("IRSENSOR_API_HOST", "192.168.1.1")
	t.Setenv("IRSENSOR_API_PORT", "8181")
	t.Setenv("IRSENSOR_SENSOR_SCRIPT_DIR", "/srv/probe")
	t.Setenv("IRSENSOR_SENSOR_ELEVATION", "doas")
	t.Setenv("IRSENSOR_DATABASE_PATH", "/custom/path.db")
	t.Setenv("IRSENSOR_MQTT_HOST", "mqtt.example.com")
	t.Setenv("IRSENSOR_MQTT_USERNAME", "testuser")
	t.Setenv("IRSENSOR_MQTT_PASSWORD", "testpass")
	t.Setenv("IRSENSOR_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.API.Port != 8181 {
		t.Errorf("API.Port = %d, want 8181", cfg.API.Port)
	}
	if cfg.Sensor.ScriptDir != "/srv/probe" {
		t.Errorf("Sensor.ScriptDir = %q, want %q", cfg.Sensor.ScriptDir, "/srv/probe")
	}
	if len(cfg.Sensor.Elevation) != 1 || cfg.Sensor.Elevation[0] != "doas" {
		t.Errorf("Sensor.Elevation = %v, want [doas]", cfg.Sensor.Elevation)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_EmptyElevation(t *testing.T) {
	cfg := Default()
	t.Setenv("IRSENSOR_SENSOR_ELEVATION", "")

	applyEnvOverrides(cfg)

	if len(cfg.Sensor.Elevation) != 0 {
		t.Errorf("Sensor.Elevation = %v, want empty", cfg.Sensor.Elevation)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Site.ID == "" {
		t.Error("Default should have non-empty Site.ID")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Default API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.API.Path != "/ir" {
		t.Errorf("Default API.Path = %q, want /ir", cfg.API.Path)
	}
	if cfg.Sensor.ScriptName != "read_ir_sensor.py" {
		t.Errorf("Default Sensor.ScriptName = %q", cfg.Sensor.ScriptName)
	}
	if cfg.Sensor.Timeout != 0 {
		t.Errorf("Default Sensor.Timeout = %d, want 0", cfg.Sensor.Timeout)
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("Default should leave MQTT and InfluxDB disabled")
	}
}
