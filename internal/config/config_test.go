package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
api:
  token_url: "https://counter.example/token"
  client_credential: "Y2xpZW50OnNlY3JldA=="
  timeout: 10s
  max_retries: 2

export:
  output_root: "/tmp/exports"
  step: "day"
  workers: 4
  combined: false

logging:
  level: "debug"
  format: "text"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	config, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "https://counter.example/token", config.API.TokenURL)
	assert.Equal(t, "Y2xpZW50OnNlY3JldA==", config.API.ClientCredential)
	assert.Equal(t, 10*time.Second, config.API.Timeout)
	assert.Equal(t, 2, config.API.MaxRetries)
	assert.Equal(t, "/tmp/exports", config.Export.OutputRoot)
	assert.Equal(t, "day", config.Export.Step)
	assert.Equal(t, 4, config.Export.Workers)
	assert.False(t, config.Export.Combined)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)

	// untouched keys keep their defaults
	assert.Equal(t, "https://apieco.eco-counter-tools.com/api/1.0/site", config.API.SitesURL)
	assert.Equal(t, "pw.json", config.Export.SecretFile)
	assert.Equal(t, []string{"channels", "userType", "photos"}, config.Export.ExcludeColumns)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "15m", config.Export.Step)
	assert.Equal(t, 1, config.Export.Workers)
	assert.True(t, config.Export.Combined)
	assert.False(t, config.Export.FailFast)
	assert.Equal(t, time.Duration(0), config.API.TokenLifetime)
	assert.Equal(t, "counts", config.Database.ValueField)
}

func TestLoadWithEnvExpansion(t *testing.T) {
	t.Setenv("ECOCOUNTER_CLIENT", "ZnJvbTplbnY=")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := `
api:
  client_credential: $ECOCOUNTER_CLIENT
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "ZnJvbTplbnY=", config.API.ClientCredential)
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("BIKECOUNTS_EXPORT_STEP", "month")
	t.Setenv("BIKECOUNTS_EXPORT_WORKERS", "3")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("export:\n  step: day\n"), 0644))

	config, err := Load(configPath)
	require.NoError(t, err)

	// Verify environment variables override config file
	assert.Equal(t, "month", config.Export.Step)
	assert.Equal(t, 3, config.Export.Workers)
}

func TestLoadMalformed(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("api: [unclosed"), 0644))

	_, err := Load(configPath)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.API.ClientCredential = "abc"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad step", func(c *Config) { c.Export.Step = "1h" }, true},
		{"no workers", func(c *Config) { c.Export.Workers = 0 }, true},
		{"missing client credential", func(c *Config) { c.API.ClientCredential = "" }, true},
		{"missing url", func(c *Config) { c.API.CountsURL = "" }, true},
		{"negative retries", func(c *Config) { c.API.MaxRetries = -1 }, true},
		{"database without dsn", func(c *Config) { c.Database.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
