package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{Name: "svc", Version: "v1", Env: EnvDevelopment},
		Log: LogConfig{Level: "info"},
		Database: DatabasesConfig{
			Default: "main",
			Connections: map[string]DatabaseConfig{
				"main": {Type: "postgresql", Host: "localhost", Port: 5432, Database: "app"},
			},
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		contains string
	}{
		{
			name:     "missing app name",
			mutate:   func(c *Config) { c.App.Name = "" },
			contains: "app.name",
		},
		{
			name:     "bad environment",
			mutate:   func(c *Config) { c.App.Env = "qa" },
			contains: "must be one of: development, staging, production",
		},
		{
			name:     "bad log level",
			mutate:   func(c *Config) { c.Log.Level = "loud" },
			contains: "log.level",
		},
		{
			name: "unsupported vendor",
			mutate: func(c *Config) {
				c.Database.Connections["main"] = DatabaseConfig{Type: "db2", Host: "h", Database: "d"}
			},
			contains: "unsupported database type",
		},
		{
			name: "port out of range",
			mutate: func(c *Config) {
				conn := c.Database.Connections["main"]
				conn.Port = 70000
				c.Database.Connections["main"] = conn
			},
			contains: "port",
		},
		{
			name:     "default not configured",
			mutate:   func(c *Config) { c.Database.Default = "replica" },
			contains: `connection "replica" is not configured`,
		},
		{
			name:     "missing default",
			mutate:   func(c *Config) { c.Database.Default = "" },
			contains: "QB_DATABASE_DEFAULT",
		},
		{
			name: "missing host",
			mutate: func(c *Config) {
				conn := c.Database.Connections["main"]
				conn.Host = ""
				c.Database.Connections["main"] = conn
			},
			contains: "database.connections.main.host",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Database.Connections["main"] = DatabaseConfig{Type: "sqlite"}
			},
			contains: "QB_DATABASE_CONNECTIONS_MAIN_PATH",
		},
		{
			name: "oracle without service",
			mutate: func(c *Config) {
				c.Database.Connections["main"] = DatabaseConfig{Type: "oracle", Host: "h"}
			},
			contains: "oracle requires a service name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidate_ConnectionStringSkipsFieldChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Connections["main"] = DatabaseConfig{Type: "mongodb", ConnectionString: "mongodb://localhost:27017/app"}
	assert.NoError(t, Validate(cfg))
}

func TestValidate_NoConnections(t *testing.T) {
	cfg := validConfig()
	cfg.Database = DatabasesConfig{}
	assert.NoError(t, Validate(cfg))
}

func TestValidate_ReportsEveryConnection(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Connections["a"] = DatabaseConfig{Type: "mysql", Host: "h"}
	cfg.Database.Connections["b"] = DatabaseConfig{Type: "mysql", Database: "d"}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.connections.a.database")
	assert.Contains(t, err.Error(), "database.connections.b.host")
}

func TestIsNotConfigured(t *testing.T) {
	assert.True(t, IsNotConfigured(NewNotConfiguredError("database.connections.x", "QB_X", "x")))
	assert.True(t, IsNotConfigured(ErrNotConfigured))
	assert.False(t, IsNotConfigured(NewValidationError("a", "b")))
	assert.False(t, IsNotConfigured(nil))
}

func TestConfigErrorFormatting(t *testing.T) {
	err := NewInvalidFieldError("log.level", "invalid value", []string{"info", "debug"})
	assert.Equal(t, "config_invalid: log.level invalid value must be one of: info, debug", err.Error())

	missing := NewMissingFieldError("database.default", "QB_DATABASE_DEFAULT", "database.default")
	assert.Equal(t, "config_missing: database.default required set QB_DATABASE_DEFAULT env var or add database.default to config.yaml", missing.Error())
}
