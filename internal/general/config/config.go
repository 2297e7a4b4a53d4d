package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server struct {
		Port          int `yaml:"port" validate:"min=1,max=65535"`
		MaxConcurrent int `yaml:"max_concurrent" validate:"min=1"`
	} `yaml:"server"`
	Storage struct {
		Driver     string `yaml:"driver" validate:"oneof=postgres sqlite"`
		SQLitePath string `yaml:"sqlite_path" validate:"required_if=Driver sqlite"`
	} `yaml:"storage"`
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" validate:"min=1,max=65535"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"database"`
	} `yaml:"database"`
	RabbitMQ struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" validate:"min=1,max=65535"`
		User     string `yaml:"user" validate:"required_if=Enabled true"`
		Password string `yaml:"password" validate:"required_if=Enabled true"`
		Prefetch int    `yaml:"prefetch" validate:"min=1"`
	} `yaml:"rabbitmq"`
	Redis struct {
		Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
		Password string `yaml:"password"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`
	MQTT struct {
		BrokerURL string `yaml:"broker_url" validate:"omitempty,url"`
		ClientID  string `yaml:"client_id"`
		Topic     string `yaml:"topic"`
	} `yaml:"mqtt"`
	JWT struct {
		SecretKey string        `yaml:"secret_key"`
		TTL       time.Duration `yaml:"ttl" validate:"min=0"`
	} `yaml:"jwt"`
	Shipments struct {
		BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
		Timeout time.Duration `yaml:"timeout" validate:"min=0"`
	} `yaml:"shipments"`
	Tracking struct {
		GeofenceRadiusM    float64       `yaml:"geofence_radius_m" validate:"gt=0"`
		AutoConfirmSeconds int           `yaml:"auto_confirm_seconds" validate:"min=0"`
		RequireDeparture   *bool         `yaml:"require_departure"`
		ViewerSendBuffer   int           `yaml:"viewer_send_buffer" validate:"min=1"`
		WriteTimeout       time.Duration `yaml:"write_timeout" validate:"gt=0"`
	} `yaml:"tracking"`
}

// LoadFromFile loads config from a YAML file to a Config struct, applies defaults and env overrides,
// and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// RequireDeparture reports whether the geofence only arms after the rider left the start radius.
func (c *Config) RequireDeparture() bool {
	return c.Tracking.RequireDeparture == nil || *c.Tracking.RequireDeparture
}

// AutoConfirm returns the geofence auto-confirm delay; zero disables it.
func (c *Config) AutoConfirm() time.Duration {
	return time.Duration(c.Tracking.AutoConfirmSeconds) * time.Second
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Server
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.MaxConcurrent == 0 {
		cfg.Server.MaxConcurrent = 256
	}

	// Storage
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverPostgres
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}
	if cfg.RabbitMQ.Prefetch == 0 {
		cfg.RabbitMQ.Prefetch = 16
	}

	// Redis
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "tracking:live"
	}

	// MQTT
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "tracking-service"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "riders/+/location"
	}

	// JWT
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 24 * time.Hour
	}
	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}

	// Shipments
	if cfg.Shipments.Timeout == 0 {
		cfg.Shipments.Timeout = 5 * time.Second
	}

	// Tracking
	if cfg.Tracking.GeofenceRadiusM == 0 {
		cfg.Tracking.GeofenceRadiusM = 100
	}
	if cfg.Tracking.ViewerSendBuffer == 0 {
		cfg.Tracking.ViewerSendBuffer = 64
	}
	if cfg.Tracking.WriteTimeout == 0 {
		cfg.Tracking.WriteTimeout = 5 * time.Second
	}
}

// applyEnv lets secrets come from the environment instead of the file.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TRACKING_DATABASE_PASSWORD")); v != "" {
		cfg.Database.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("TRACKING_JWT_SECRET")); v != "" {
		cfg.JWT.SecretKey = v
	}
}

// validate runs the struct tags plus the cross-field rules and reports every problem at once.
func (c *Config) validate() error {
	var problems []string

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %q", strings.ToLower(fe.Namespace()), fe.Tag()))
		}
	}

	// DB
	if c.Storage.Driver == DriverPostgres {
		if c.Database.User == "" {
			problems = append(problems, "database.user is required")
		}
		if c.Database.Password == "" {
			problems = append(problems, "database.password is required")
		}
		if c.Database.Name == "" {
			problems = append(problems, "database.name is required")
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
