package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	dbtypes "github.com/gaborage/querybricks/database/types"
)

// EnvPrefix is the prefix of environment variables that override configuration.
// QB_DATABASE_DEFAULT maps to database.default.
const EnvPrefix = "QB_"

const (
	defaultMaxConnections     = 25
	defaultIdleConnections    = 2
	defaultIdleTime           = 5 * time.Minute
	defaultConnectionLifetime = 30 * time.Minute
	defaultSlowQueryThreshold = 200 * time.Millisecond
	defaultMaxQueryLength     = 1000
)

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. YAML configuration files
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// YAML files are optional
	if err := loadOptionalFile(k, "config.yaml"); err != nil {
		return nil, err
	}
	if env := k.String("app.env"); env != "" {
		if err := loadOptionalFile(k, fmt.Sprintf("config.%s.yaml", env)); err != nil {
			return nil, err
		}
	}

	return finish(k)
}

// LoadFromBytes loads configuration from an in-memory YAML document, then applies
// environment overrides. Useful for tests and embedded configuration.
func LoadFromBytes(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return finish(k)
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func finish(k *koanf.Koanf) (*Config, error) {
	// Environment variables (highest priority)
	if err := k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	applyDatabaseDefaults(&cfg.Database)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "querybricks",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,

		// Connections are never defaulted; a connection only exists when configured

		"log.level":  "info",
		"log.pretty": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// applyDatabaseDefaults fills pool and query settings left unset, and picks the only
// connection as the default when exactly one is configured.
func applyDatabaseDefaults(cfg *DatabasesConfig) {
	if cfg.Default == "" && len(cfg.Connections) == 1 {
		for name := range cfg.Connections {
			cfg.Default = name
		}
	}

	for name, conn := range cfg.Connections {
		conn.Type = strings.ToLower(strings.TrimSpace(conn.Type))
		if conn.Port == 0 {
			conn.Port = DefaultPort(conn.Type)
		}
		if conn.Pool.Max.Connections == 0 {
			conn.Pool.Max.Connections = defaultMaxConnections
		}
		if conn.Pool.Idle.Connections == 0 {
			conn.Pool.Idle.Connections = defaultIdleConnections
		}
		if conn.Pool.Idle.Time == 0 {
			conn.Pool.Idle.Time = defaultIdleTime
		}
		if conn.Pool.Lifetime.Max == 0 {
			conn.Pool.Lifetime.Max = defaultConnectionLifetime
		}
		if conn.Query.Slow.Threshold == 0 {
			conn.Query.Slow.Threshold = defaultSlowQueryThreshold
		}
		if conn.Query.Log.MaxLength == 0 {
			conn.Query.Log.MaxLength = defaultMaxQueryLength
		}
		cfg.Connections[name] = conn
	}
}

// DefaultPort returns the conventional port of a network backend, 0 for embedded ones.
func DefaultPort(vendor string) int {
	switch vendor {
	case dbtypes.PostgreSQL:
		return 5432
	case dbtypes.MySQL:
		return 3306
	case dbtypes.Oracle:
		return 1521
	case dbtypes.MongoDB:
		return 27017
	default:
		return 0
	}
}
