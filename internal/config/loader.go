package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that set host settings,
// e.g. CHAOSGATE_LISTEN. The chaos tier variables (CHAOS_LATENCY_MS,
// CHAOS_ERROR_RATE) are not read here.
const EnvPrefix = "CHAOSGATE"

// flagKeys maps command line flag names to configuration keys
var flagKeys = map[string]string{
	"listen":           "listen",
	"upstream":         "upstream",
	"engine":           "engine",
	"latency":          "chaos.latency",
	"error-rate":       "chaos.error-rate",
	"log-level":        "logging.level",
	"log-to-file":      "logging.enable-file",
	"log-dir":          "logging.log-dir",
	"metrics":          "metrics.enabled",
	"tracing-endpoint": "tracing.endpoint",
}

// Load builds the configuration from defaults, an optional config file
// (JSON or YAML, chosen by extension), CHAOSGATE_* environment variables and
// the given flags, in increasing order of precedence. Only flags that were
// set explicitly override file values.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Tracing.Endpoint != "" {
		cfg.Tracing.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newViper configures a viper instance with environment handling and defaults
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// logging.log-dir -> CHAOSGATE_LOGGING_LOG_DIR
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	def := DefaultConfig()
	v.SetDefault("listen", def.Listen)
	v.SetDefault("upstream", def.Upstream)
	v.SetDefault("engine", def.Engine)
	v.SetDefault("shutdown-timeout", def.ShutdownTimeout)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.enable-file", def.Logging.EnableFile)
	v.SetDefault("logging.enable-console", def.Logging.EnableConsole)
	v.SetDefault("logging.filename", def.Logging.Filename)
	v.SetDefault("logging.log-dir", def.Logging.LogDir)
	v.SetDefault("logging.max-size", def.Logging.MaxSize)
	v.SetDefault("logging.max-backups", def.Logging.MaxBackups)
	v.SetDefault("logging.max-age", def.Logging.MaxAge)
	v.SetDefault("logging.compress", def.Logging.Compress)
	v.SetDefault("logging.json-format", def.Logging.JSONFormat)

	v.SetDefault("metrics.enabled", def.Metrics.Enabled)

	v.SetDefault("tracing.enabled", def.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", def.Tracing.Endpoint)
	v.SetDefault("tracing.service-name", def.Tracing.ServiceName)
	v.SetDefault("tracing.sample-rate", def.Tracing.SampleRate)

	return v
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		// Unchanged chaos flags stay unbound so an unset override is nil
		// rather than the flag's empty default.
		if strings.HasPrefix(key, "chaos.") && !f.Changed {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}
