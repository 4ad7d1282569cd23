package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	pkgconfig "github.com/mjasion/balena-home/heatexchanger/pkg/config"
	"github.com/mjasion/balena-home/heatexchanger/sensor"
	"go.uber.org/zap"
)

// Config holds all configuration for the heat exchanger monitor
type Config struct {
	Sensors    SensorsConfig    `yaml:"sensors"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Server     ServerConfig     `yaml:"server"`
	Publisher  PublisherConfig  `yaml:"publisher"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`

	Logging       pkgconfig.LoggingConfig       `yaml:"logging"`
	OpenTelemetry pkgconfig.OpenTelemetryConfig `yaml:"opentelemetry"`
	Profiling     pkgconfig.ProfilingConfig     `yaml:"profiling"`
}

// SensorsConfig selects the sensors and how they are read
type SensorsConfig struct {
	DeviceMapping    string `yaml:"deviceMapping" env:"DEVICE_MAPPING_PATH" env-default:"devicenames.json"`
	DevicesDir       string `yaml:"devicesDir" env:"W1_DEVICES_DIR" env-default:"/sys/bus/w1/devices"`
	MockMode         string `yaml:"mockMode" env:"USE_MOCK_SENSORS"` // true, false or empty for auto-detection
	Unit             string `yaml:"unit" env:"TEMPERATURE_UNIT" env-default:"celsius"`
	RejectResetValue bool   `yaml:"rejectResetValue" env:"REJECT_RESET_VALUE"`
}

// MonitorConfig controls the acquisition loop
type MonitorConfig struct {
	IntervalSeconds int    `yaml:"intervalSeconds" env:"MONITOR_INTERVAL_SECONDS" env-default:"30"`
	LogFile         string `yaml:"logFile" env:"READING_LOG_FILE"` // Empty disables the reading log
}

// ServerConfig controls the HTTP surface
type ServerConfig struct {
	Enabled             bool `yaml:"enabled" env:"SERVER_ENABLED"`
	Port                int  `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	SubscriberQueueSize int  `yaml:"subscriberQueueSize" env:"SERVER_SUBSCRIBER_QUEUE_SIZE" env-default:"16"`
}

// PublisherConfig controls the NATS sink
type PublisherConfig struct {
	NATSURL     string `yaml:"natsUrl" env:"NATS_URL"` // Empty disables NATS publishing
	NATSSubject string `yaml:"natsSubject" env:"NATS_SUBJECT" env-default:"heat_exchanger.readings"`
}

// PrometheusConfig controls remote write
type PrometheusConfig struct {
	Enabled             bool   `yaml:"enabled" env:"PROMETHEUS_ENABLED"`
	URL                 string `yaml:"prometheusUrl" env:"PROMETHEUS_URL"`
	Username            string `yaml:"prometheusUsername" env:"PROMETHEUS_USERNAME"`
	Password            string `yaml:"prometheusPassword" env:"PROMETHEUS_PASSWORD"`
	PushIntervalSeconds int    `yaml:"pushIntervalSeconds" env:"PUSH_INTERVAL_SECONDS" env-default:"15"`
	BufferSize          int    `yaml:"bufferSize" env:"BUFFER_SIZE" env-default:"1000"`
	BatchSize           int    `yaml:"batchSize" env:"BATCH_SIZE" env-default:"500"`
}

// HeartbeatConfig controls the dead-man switch ping
type HeartbeatConfig struct {
	URL    string        `yaml:"url" env:"HEARTBEAT_URL"` // Empty disables the heartbeat
	Period time.Duration `yaml:"period" env:"HEARTBEAT_PERIOD" env-default:"5m"`
}

// Load reads configuration from the specified file path and applies environment variable overrides
func Load(configPath string) (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv builds the configuration from environment variables only
func LoadFromEnv() (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all configuration parameters are valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Sensors.DeviceMapping) == "" {
		return fmt.Errorf("sensors.deviceMapping cannot be empty")
	}
	if _, err := c.MockOverride(); err != nil {
		return err
	}
	if _, err := c.Unit(); err != nil {
		return fmt.Errorf("invalid sensors.unit: %w", err)
	}

	if c.Monitor.IntervalSeconds <= 0 {
		return fmt.Errorf("monitor.intervalSeconds must be positive, got %d", c.Monitor.IntervalSeconds)
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
		}
		if c.Server.SubscriberQueueSize <= 0 {
			return fmt.Errorf("server.subscriberQueueSize must be positive, got %d", c.Server.SubscriberQueueSize)
		}
	}

	if c.Publisher.NATSURL != "" && strings.TrimSpace(c.Publisher.NATSSubject) == "" {
		return fmt.Errorf("publisher.natsSubject cannot be empty when natsUrl is set")
	}

	if c.Prometheus.Enabled {
		if _, err := url.ParseRequestURI(c.Prometheus.URL); err != nil {
			return fmt.Errorf("invalid prometheusUrl: %w", err)
		}
		if c.Prometheus.PushIntervalSeconds <= 0 {
			return fmt.Errorf("pushIntervalSeconds must be positive, got %d", c.Prometheus.PushIntervalSeconds)
		}
		if c.Prometheus.BufferSize <= 0 {
			return fmt.Errorf("bufferSize must be positive, got %d", c.Prometheus.BufferSize)
		}
		if c.Prometheus.BatchSize <= 0 {
			return fmt.Errorf("batchSize must be positive, got %d", c.Prometheus.BatchSize)
		}
	}

	if c.Heartbeat.URL != "" {
		if _, err := url.ParseRequestURI(c.Heartbeat.URL); err != nil {
			return fmt.Errorf("invalid heartbeat.url: %w", err)
		}
		if c.Heartbeat.Period <= 0 {
			return fmt.Errorf("heartbeat.period must be positive, got %s", c.Heartbeat.Period)
		}
	}

	if err := pkgconfig.ValidateLogging(&c.Logging); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}
	if err := pkgconfig.ValidateOpenTelemetry(&c.OpenTelemetry); err != nil {
		return fmt.Errorf("opentelemetry validation failed: %w", err)
	}
	if err := pkgconfig.ValidateProfiling(&c.Profiling); err != nil {
		return fmt.Errorf("profiling validation failed: %w", err)
	}

	return nil
}

// MockOverride returns the explicit mock mode setting, or nil when sensors
// should be auto-detected
func (c *Config) MockOverride() (*bool, error) {
	raw := strings.TrimSpace(c.Sensors.MockMode)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid sensors.mockMode %q: must be true, false or empty", raw)
	}
	return &v, nil
}

// Unit returns the configured temperature unit
func (c *Config) Unit() (sensor.Unit, error) {
	return sensor.ParseUnit(c.Sensors.Unit)
}

// Interval returns the monitor interval
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Monitor.IntervalSeconds) * time.Second
}

// Redacted returns a copy of the config with sensitive fields redacted for logging
func (c *Config) Redacted() map[string]interface{} {
	return map[string]interface{}{
		"sensors": map[string]interface{}{
			"deviceMapping":    c.Sensors.DeviceMapping,
			"devicesDir":       c.Sensors.DevicesDir,
			"mockMode":         c.Sensors.MockMode,
			"unit":             c.Sensors.Unit,
			"rejectResetValue": c.Sensors.RejectResetValue,
		},
		"monitor": map[string]interface{}{
			"intervalSeconds": c.Monitor.IntervalSeconds,
			"logFile":         c.Monitor.LogFile,
		},
		"server": map[string]interface{}{
			"enabled": c.Server.Enabled,
			"port":    c.Server.Port,
		},
		"publisher": map[string]interface{}{
			"natsUrl":     redactURL(c.Publisher.NATSURL),
			"natsSubject": c.Publisher.NATSSubject,
		},
		"prometheus": map[string]interface{}{
			"enabled":             c.Prometheus.Enabled,
			"prometheusUrl":       redactURL(c.Prometheus.URL),
			"prometheusUsername":  c.Prometheus.Username,
			"prometheusPassword":  "***",
			"pushIntervalSeconds": c.Prometheus.PushIntervalSeconds,
			"bufferSize":          c.Prometheus.BufferSize,
			"batchSize":           c.Prometheus.BatchSize,
		},
		"heartbeat": map[string]interface{}{
			"url":    redactURL(c.Heartbeat.URL),
			"period": c.Heartbeat.Period.String(),
		},
		"logging": map[string]interface{}{
			"logFormat": c.Logging.Format,
			"logLevel":  c.Logging.Level,
		},
		"opentelemetry": map[string]interface{}{
			"enabled":     c.OpenTelemetry.Enabled,
			"serviceName": c.OpenTelemetry.ServiceName,
			"environment": c.OpenTelemetry.Environment,
			"endpointSet": c.OpenTelemetry.Endpoint != "",
		},
		"profiling": map[string]interface{}{
			"enabled":         c.Profiling.Enabled,
			"applicationName": c.Profiling.ApplicationName,
			"serverAddress":   c.Profiling.ServerAddress,
			"profileTypes":    c.Profiling.ProfileTypes,
		},
	}
}

// NewLogger creates a zap logger based on the configuration
func (c *Config) NewLogger() (*zap.Logger, error) {
	return pkgconfig.NewLogger(&c.Logging)
}

// PrintConfig prints the configuration (masking sensitive fields)
func (c *Config) PrintConfig(logger *zap.Logger) {
	logger.Info("configuration loaded",
		zap.String("device_mapping", c.Sensors.DeviceMapping),
		zap.String("devices_dir", c.Sensors.DevicesDir),
		zap.String("mock_mode", c.Sensors.MockMode),
		zap.String("unit", c.Sensors.Unit),
		zap.Int("interval_seconds", c.Monitor.IntervalSeconds),
		zap.String("log_file", c.Monitor.LogFile),
		zap.Bool("server_enabled", c.Server.Enabled),
		zap.Int("server_port", c.Server.Port),
		zap.String("nats_url", redactURL(c.Publisher.NATSURL)),
		zap.String("nats_subject", c.Publisher.NATSSubject),
		zap.Bool("prometheus_enabled", c.Prometheus.Enabled),
		zap.String("prometheus_url", redactURL(c.Prometheus.URL)),
		zap.String("prometheus_username", c.Prometheus.Username),
		zap.Bool("prometheus_password_set", c.Prometheus.Password != ""),
		zap.Int("push_interval_seconds", c.Prometheus.PushIntervalSeconds),
		zap.Int("buffer_size", c.Prometheus.BufferSize),
		zap.Bool("heartbeat_enabled", c.Heartbeat.URL != ""),
		zap.Duration("heartbeat_period", c.Heartbeat.Period),
		zap.Bool("otel_enabled", c.OpenTelemetry.Enabled),
		zap.String("otel_service_name", c.OpenTelemetry.ServiceName),
		zap.Bool("profiling_enabled", c.Profiling.Enabled),
		zap.String("log_format", c.Logging.Format),
		zap.String("log_level", c.Logging.Level),
	)
}

// redactURL removes credentials from URLs for logging
func redactURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword("***", "***")
	}
	return u.String()
}
