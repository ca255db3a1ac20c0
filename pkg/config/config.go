// Package config loads cc-export settings from a dotenv file, the process
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Sternrassler/cc-export/pkg/client"
	"github.com/Sternrassler/cc-export/pkg/ratelimit"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Default values.
const (
	DefaultEnvFile                 = ".env"
	DefaultLogLevel                = "info"
	DefaultWorkers                 = 1
	DefaultTimeout   time.Duration = 0 // none
	DefaultRedisDB                 = 0
	DefaultRateLimit float64       = ratelimit.DefaultRequestsPerSecond
)

// Config holds all runtime settings.
type Config struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
	DownloadDir string `mapstructure:"download_dir"`
	BaseURL     string `mapstructure:"base_url"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
	LogFile   string `mapstructure:"log_file"`

	// Workers is the number of items processed concurrently.
	Workers int `mapstructure:"workers"`

	// RateLimit is the request budget per second; 0 disables pacing.
	RateLimit float64 `mapstructure:"rate_limit"`

	// Timeout bounds each upstream request including its body. Zero means
	// no limit.
	Timeout time.Duration `mapstructure:"timeout"`

	// RedisAddr enables the run status store when set.
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`

	// MetricsAddr enables the /metrics and /health endpoint when set.
	MetricsAddr string `mapstructure:"metrics_addr"`

	// WkhtmltopdfPath overrides the wkhtmltopdf binary lookup.
	WkhtmltopdfPath string `mapstructure:"wkhtmltopdf_path"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"api-key":          "api_key",
	"access-token":     "access_token",
	"download-dir":     "download_dir",
	"base-url":         "base_url",
	"log-level":        "log_level",
	"log-pretty":       "log_pretty",
	"log-file":         "log_file",
	"workers":          "workers",
	"rate-limit":       "rate_limit",
	"timeout":          "timeout",
	"redis-addr":       "redis_addr",
	"redis-db":         "redis_db",
	"metrics-addr":     "metrics_addr",
	"wkhtmltopdf-path": "wkhtmltopdf_path",
}

// BindFlags registers the config flags on flags. Values given on the command
// line take precedence over the environment and the dotenv file.
func BindFlags(flags *pflag.FlagSet) {
	flags.String("env-file", DefaultEnvFile, "dotenv file to read settings from")
	flags.String("api-key", "", "Constant Contact API key (env API_KEY)")
	flags.String("access-token", "", "Constant Contact access token (env ACCESS_TOKEN)")
	flags.String("download-dir", "", "directory to export into (env DOWNLOAD_DIR)")
	flags.String("base-url", client.DefaultBaseURL, "API root (env BASE_URL)")
	flags.String("log-level", DefaultLogLevel, "log level: debug, info, warn, error (env LOG_LEVEL)")
	flags.Bool("log-pretty", false, "human-readable console logs (env LOG_PRETTY)")
	flags.String("log-file", "", "also write JSON logs to this rotated file (env LOG_FILE)")
	flags.Int("workers", DefaultWorkers, "items processed concurrently (env WORKERS)")
	flags.Float64("rate-limit", DefaultRateLimit, "requests per second, 0 for unlimited (env RATE_LIMIT)")
	flags.Duration("timeout", DefaultTimeout, "per-request timeout, 0 for none (env TIMEOUT)")
	flags.String("redis-addr", "", "Redis address for run status, e.g. localhost:6379 (env REDIS_ADDR)")
	flags.Int("redis-db", DefaultRedisDB, "Redis database number (env REDIS_DB)")
	flags.String("metrics-addr", "", "serve /metrics and /health on this address (env METRICS_ADDR)")
	flags.String("wkhtmltopdf-path", "", "path to the wkhtmltopdf binary (env WKHTMLTOPDF_PATH)")
}

// Load reads the configuration. flags may be nil; when it carries an
// "env-file" flag that file is read instead of DefaultEnvFile. A missing
// default dotenv file is not an error; a missing explicit one is.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setViperDefaults(v)
	v.AutomaticEnv()

	envFile, explicit := DefaultEnvFile, false
	if flags != nil {
		if f := flags.Lookup("env-file"); f != nil {
			envFile, explicit = f.Value.String(), f.Changed
		}
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s; %w", name, err)
				}
			}
		}
	}

	if err := readEnvFile(v, envFile, explicit); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config; %w", err)
	}

	return cfg, nil
}

func readEnvFile(v *viper.Viper, path string, required bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read env file %s; %w", path, err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read env file %s; %w", path, err)
	}
	return nil
}

// setViperDefaults registers every key so AutomaticEnv picks it up on
// Unmarshal.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("access_token", "")
	v.SetDefault("download_dir", "")
	v.SetDefault("base_url", client.DefaultBaseURL)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_pretty", false)
	v.SetDefault("log_file", "")
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("rate_limit", DefaultRateLimit)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", DefaultRedisDB)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("wkhtmltopdf_path", "")
}
