package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aliceafriedman/BikeCounters/internal/models"
)

// ErrConfig marks a missing or malformed configuration or secret file.
var ErrConfig = errors.New("configuration error")

// EnvPrefix is prepended to environment overrides, e.g. BIKECOUNTS_EXPORT_STEP.
const EnvPrefix = "BIKECOUNTS"

// Config holds all configuration for the export job
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Export   ExportConfig   `mapstructure:"export"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Database DatabaseConfig `mapstructure:"database"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

type APIConfig struct {
	TokenURL         string        `mapstructure:"token_url"`
	SitesURL         string        `mapstructure:"sites_url"`
	CountsURL        string        `mapstructure:"counts_url"`
	ClientCredential string        `mapstructure:"client_credential"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	// TokenLifetime of zero keeps one token for the whole run.
	TokenLifetime time.Duration `mapstructure:"token_lifetime"`
}

type ExportConfig struct {
	SecretFile     string   `mapstructure:"secret_file"`
	OutputRoot     string   `mapstructure:"output_root"`
	Step           string   `mapstructure:"step"`
	Workers        int      `mapstructure:"workers"`
	Combined       bool     `mapstructure:"combined"`
	FailFast       bool     `mapstructure:"fail_fast"`
	ExcludeColumns []string `mapstructure:"exclude_columns"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type DatabaseConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	DSN        string `mapstructure:"dsn"`
	ValueField string `mapstructure:"value_field"`
}

type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// Load reads configuration from defaults, the YAML file at path and
// BIKECOUNTS_* environment variables, in increasing precedence. A missing
// file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrConfig, err)
		default:
			// Expand environment variables
			expanded := os.ExpandEnv(string(data))
			if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
				return nil, fmt.Errorf("%w: failed to parse config file: %v", ErrConfig, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", ErrConfig, err)
	}
	return &cfg, nil
}

// Validate checks the settings a run cannot start without.
func (c *Config) Validate() error {
	if _, err := models.ParseStep(c.Export.Step); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.Export.Workers < 1 {
		return fmt.Errorf("%w: export.workers must be at least 1", ErrConfig)
	}
	if c.API.TokenURL == "" || c.API.SitesURL == "" || c.API.CountsURL == "" {
		return fmt.Errorf("%w: api urls must be set", ErrConfig)
	}
	if c.API.ClientCredential == "" {
		return fmt.Errorf("%w: api.client_credential is required (%s_API_CLIENT_CREDENTIAL)", ErrConfig, EnvPrefix)
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("%w: api.max_retries cannot be negative", ErrConfig)
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required when the database is enabled", ErrConfig)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.token_url", "https://apieco.eco-counter-tools.com/token")
	v.SetDefault("api.sites_url", "https://apieco.eco-counter-tools.com/api/1.0/site")
	v.SetDefault("api.counts_url", "https://apieco.eco-counter-tools.com/api/1.0/data/site")
	v.SetDefault("api.client_credential", "")
	v.SetDefault("api.timeout", 60*time.Second)
	v.SetDefault("api.max_retries", 0)
	v.SetDefault("api.retry_backoff", time.Second)
	v.SetDefault("api.token_lifetime", time.Duration(0))

	v.SetDefault("export.secret_file", "pw.json")
	v.SetDefault("export.output_root", ".")
	v.SetDefault("export.step", string(models.Step15m))
	v.SetDefault("export.workers", 1)
	v.SetDefault("export.combined", true)
	v.SetDefault("export.fail_fast", false)
	v.SetDefault("export.exclude_columns", []string{"channels", "userType", "photos"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.value_field", "counts")

	v.SetDefault("schedule.cron", "")
}
