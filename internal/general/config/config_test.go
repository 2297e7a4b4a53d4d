package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
server:
  port: 8085
storage:
  driver: postgres
database:
  host: db
  user: tracker
  password: secret
  database: tracking
rabbitmq:
  enabled: true
  user: guest
  password: guest
tracking:
  geofence_radius_m: 75
  auto_confirm_seconds: 30
  require_departure: false
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Server.Port != 8085 || cfg.Server.MaxConcurrent != 256 {
		t.Fatalf("server section: %+v", cfg.Server)
	}
	if cfg.Database.Port != 5432 || cfg.Database.Name != "tracking" {
		t.Fatalf("database section: %+v", cfg.Database)
	}
	if cfg.RabbitMQ.Port != 5672 || cfg.RabbitMQ.Prefetch != 16 {
		t.Fatalf("rabbitmq defaults: %+v", cfg.RabbitMQ)
	}
	if cfg.Tracking.GeofenceRadiusM != 75 || cfg.AutoConfirm() != 30*time.Second {
		t.Fatalf("tracking section: %+v", cfg.Tracking)
	}
	if cfg.RequireDeparture() {
		t.Fatalf("require_departure=false must be honoured")
	}
	if cfg.JWT.SecretKey == "" {
		t.Fatalf("jwt secret must be generated when missing")
	}
	if cfg.MQTT.Topic != "riders/+/location" {
		t.Fatalf("mqtt topic default = %q", cfg.MQTT.Topic)
	}
}

func TestParseRequireDepartureDefaultsTrue(t *testing.T) {
	cfg, err := Parse([]byte("storage:\n  driver: sqlite\n  sqlite_path: /tmp/t.db\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.RequireDeparture() {
		t.Fatalf("require_departure must default to true")
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
}

func TestParseCollectsProblems(t *testing.T) {
	_, err := Parse([]byte(`
storage:
  driver: mongo
rabbitmq:
  enabled: true
tracking:
  geofence_radius_m: -5
`))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"config.storage.driver", "config.rabbitmq.user", "config.tracking.geofenceradiusm"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q does not mention %s", msg, want)
		}
	}
}

func TestParseSQLiteNeedsPath(t *testing.T) {
	if _, err := Parse([]byte("storage:\n  driver: sqlite\n")); err == nil {
		t.Fatalf("sqlite without sqlite_path must fail")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRACKING_DATABASE_PASSWORD", "from-env")
	t.Setenv("TRACKING_JWT_SECRET", "env-secret")

	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Database.Password != "from-env" || cfg.JWT.SecretKey != "env-secret" {
		t.Fatalf("env overrides not applied: %q %q", cfg.Database.Password, cfg.JWT.SecretKey)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFromFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file must fail")
	}
}
