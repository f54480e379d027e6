package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type AppConfig struct {
	Name                   string `yaml:"name"`
	Timezone               string `yaml:"timezone"`
	MinSlotDurationMinutes int    `yaml:"min_slot_duration_minutes"`
}

// Location resolves the configured application timezone.
func (a AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

type HTTPConfig struct {
	Address                string `yaml:"address"`
	ReadHeaderTimeoutSecs  int    `yaml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

type DatabaseConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Name        string `yaml:"name"`
	SSLMode     string `yaml:"ssl_mode"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr               string `yaml:"addr"`
	Password           string `yaml:"password"`
	DB                 int    `yaml:"db"`
	BookingsTTLSeconds int    `yaml:"bookings_ttl_seconds"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	GroupID            string   `yaml:"group_id"`
}

type TelemetryConfig struct {
	Enabled      bool     `yaml:"enabled"`
	OTLPEndpoint string   `yaml:"otlp_endpoint"`
	SampleRatio  *float64 `yaml:"sample_ratio"`
}

// Ratio returns the trace sampling ratio. An absent sample_ratio means 1; an
// explicit 0 disables sampling.
func (t TelemetryConfig) Ratio() float64 {
	if t.SampleRatio == nil {
		return 1
	}
	return *t.SampleRatio
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "slotbooking"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "UTC"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ReadHeaderTimeoutSecs == 0 {
		c.HTTP.ReadHeaderTimeoutSecs = 5
	}
	if c.HTTP.ShutdownTimeoutSeconds == 0 {
		c.HTTP.ShutdownTimeoutSeconds = 5
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.BookingsTTLSeconds == 0 {
		c.Redis.BookingsTTLSeconds = 60
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = c.App.Name + "-worker"
	}
	if c.Telemetry.SampleRatio == nil {
		ratio := 1.0
		c.Telemetry.SampleRatio = &ratio
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := c.App.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.App.MinSlotDurationMinutes < 0 {
		errs = append(errs, errors.New("app.min_slot_duration_minutes must not be negative"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.BookingEventsTopic == "" {
		errs = append(errs, errors.New("kafka.booking_events_topic is required when brokers are set"))
	}
	if ratio := c.Telemetry.Ratio(); ratio < 0 || ratio > 1 {
		errs = append(errs, errors.New("telemetry.sample_ratio must be within [0, 1]"))
	}
	return errors.Join(errs...)
}
