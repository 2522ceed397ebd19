package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smart-mcp-proxy/chaosgate/internal/chaos"
)

const (
	defaultListen          = "127.0.0.1:8085"
	defaultShutdownTimeout = 10 * time.Second

	EngineChi = "chi"
	EngineGin = "gin"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config represents the main configuration structure
type Config struct {
	Listen          string        `json:"listen" mapstructure:"listen" validate:"required,hostname_port"`
	Upstream        string        `json:"upstream,omitempty" mapstructure:"upstream" validate:"omitempty,url"`
	Engine          string        `json:"engine" mapstructure:"engine" validate:"oneof=chi gin"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown-timeout" validate:"gt=0"`

	// Chaos holds the explicit override tier of the chaos configuration
	Chaos ChaosConfig `json:"chaos" mapstructure:"chaos"`

	Logging LogConfig     `json:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// ChaosConfig carries the raw chaos overrides. The values are deliberately
// untyped: malformed input must reach chaos.Resolve and fall through there
// instead of failing config loading.
type ChaosConfig struct {
	Latency   interface{} `json:"latency,omitempty" mapstructure:"latency"`
	ErrorRate interface{} `json:"error_rate,omitempty" mapstructure:"error-rate"`
}

// Overrides converts the raw values to the resolver's override tier
func (c ChaosConfig) Overrides() chaos.Overrides {
	return chaos.Overrides{
		Latency:   c.Latency,
		ErrorRate: c.ErrorRate,
	}
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level         string `json:"level" mapstructure:"level" validate:"oneof=trace debug info warn error"`
	EnableFile    bool   `json:"enable_file" mapstructure:"enable-file"`
	EnableConsole bool   `json:"enable_console" mapstructure:"enable-console"`
	Filename      string `json:"filename" mapstructure:"filename" validate:"required_if=EnableFile true"`
	LogDir        string `json:"log_dir,omitempty" mapstructure:"log-dir"` // Custom log directory
	MaxSize       int    `json:"max_size" mapstructure:"max-size" validate:"gte=0"`       // MB
	MaxBackups    int    `json:"max_backups" mapstructure:"max-backups" validate:"gte=0"` // number of backup files
	MaxAge        int    `json:"max_age" mapstructure:"max-age" validate:"gte=0"`         // days
	Compress      bool   `json:"compress" mapstructure:"compress"`
	JSONFormat    bool   `json:"json_format" mapstructure:"json-format"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// TracingConfig controls OpenTelemetry export
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	Endpoint    string  `json:"endpoint,omitempty" mapstructure:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string  `json:"service_name" mapstructure:"service-name"`
	SampleRate  float64 `json:"sample_rate" mapstructure:"sample-rate" validate:"gte=0,lte=1"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		Engine:          EngineChi,
		ShutdownTimeout: defaultShutdownTimeout,
		Logging: LogConfig{
			Level:         "info",
			EnableFile:    false,
			EnableConsole: true,
			Filename:      "chaosgate.log",
			MaxSize:       10,
			MaxBackups:    5,
			MaxAge:        30,
			Compress:      true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			ServiceName: "chaosgate",
			SampleRate:  1.0,
		},
	}
}

// Validate checks the host settings. The chaos overrides are never rejected
// here; they are resolved fail-open.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
