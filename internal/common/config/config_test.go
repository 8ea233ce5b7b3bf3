package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:     ServerConfig{Host: "127.0.0.1", Port: 19420},
		Database:   DatabaseConfig{Driver: "sqlite"},
		Permission: PermissionConfig{TimeoutSeconds: 300},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidate_AcceptsAllLoggerFormats(t *testing.T) {
	for _, format := range []string{"json", "text", "console"} {
		cfg := validConfig()
		cfg.Logging.Format = format
		require.NoError(t, validate(cfg), format)
	}
}

func TestValidate_RejectsUnknownLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	err := validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestValidate_RejectsUnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "mysql"
	err := validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
}

func TestValidate_PostgresRequiresUserAndDBName(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "postgres"
	cfg.Database.Port = 5432
	err := validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.user")
	assert.Contains(t, err.Error(), "database.dbName")
}
