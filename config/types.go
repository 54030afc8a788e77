package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config represents the overall configuration structure.
// The embedded koanf.Koanf instance allows for flexible access to
// additional custom configurations not explicitly defined in the struct.
type Config struct {
	App      AppConfig       `koanf:"app" json:"app" yaml:"app" toml:"app" mapstructure:"app"`
	Log      LogConfig       `koanf:"log" json:"log" yaml:"log" toml:"log" mapstructure:"log"`
	Database DatabasesConfig `koanf:"database" json:"database" yaml:"database" toml:"database" mapstructure:"database"`

	// k holds the underlying Koanf instance for flexible access to custom configurations
	k *koanf.Koanf `json:"-" yaml:"-" toml:"-" mapstructure:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" toml:"name" mapstructure:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version" toml:"version" mapstructure:"version" validate:"required"`
	Env     string `koanf:"env" json:"env" yaml:"env" toml:"env" mapstructure:"env" validate:"oneof=development staging production"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" toml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" toml:"pretty" mapstructure:"pretty"`
}

// DatabasesConfig holds every named connection and which one is the default.
type DatabasesConfig struct {
	Default     string                    `koanf:"default" json:"default" yaml:"default" toml:"default" mapstructure:"default"`
	Connections map[string]DatabaseConfig `koanf:"connections" json:"connections" yaml:"connections" toml:"connections" mapstructure:"connections" validate:"dive"`
}

// Connection returns the named connection settings; an empty name selects the default.
func (d *DatabasesConfig) Connection(name string) (DatabaseConfig, bool) {
	if name == "" {
		name = d.Default
	}
	cfg, ok := d.Connections[name]
	return cfg, ok
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string `koanf:"type" json:"type" yaml:"type" toml:"type" mapstructure:"type" validate:"required,vendor"`
	Host     string `koanf:"host" json:"host" yaml:"host" toml:"host" mapstructure:"host"`
	Port     int    `koanf:"port" json:"port" yaml:"port" toml:"port" mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Database string `koanf:"database" json:"database" yaml:"database" toml:"database" mapstructure:"database"`
	Username string `koanf:"username" json:"username" yaml:"username" toml:"username" mapstructure:"username"`
	Password string `koanf:"password" json:"password" yaml:"password" toml:"password" mapstructure:"password"`

	// Path is the SQLite database file; ":memory:" opens a private in-memory database.
	Path string `koanf:"path" json:"path" yaml:"path" toml:"path" mapstructure:"path"`

	ConnectionString string `koanf:"connectionstring" json:"connectionstring" yaml:"connectionstring" toml:"connectionstring" mapstructure:"connectionstring"`

	Pool  PoolConfig  `koanf:"pool" json:"pool" yaml:"pool" toml:"pool" mapstructure:"pool"`
	Query QueryConfig `koanf:"query" json:"query" yaml:"query" toml:"query" mapstructure:"query"`
	TLS   TLSConfig   `koanf:"tls" json:"tls" yaml:"tls" toml:"tls" mapstructure:"tls"`

	PostgreSQL PostgreSQLConfig `koanf:"postgresql" json:"postgresql" yaml:"postgresql" toml:"postgresql" mapstructure:"postgresql"`
	Oracle     OracleConfig     `koanf:"oracle" json:"oracle" yaml:"oracle" toml:"oracle" mapstructure:"oracle"`
	Mongo      MongoConfig      `koanf:"mongo" json:"mongo" yaml:"mongo" toml:"mongo" mapstructure:"mongo"`
}

// PoolConfig holds connection pool settings.
// Defaults are applied on load:
//   - Max.Connections: 25
//   - Idle.Connections: 2
//   - Idle.Time: 5m
//   - Lifetime.Max: 30m
type PoolConfig struct {
	Max      PoolMaxConfig  `koanf:"max" json:"max" yaml:"max" toml:"max" mapstructure:"max"`
	Idle     PoolIdleConfig `koanf:"idle" json:"idle" yaml:"idle" toml:"idle" mapstructure:"idle"`
	Lifetime LifetimeConfig `koanf:"lifetime" json:"lifetime" yaml:"lifetime" toml:"lifetime" mapstructure:"lifetime"`
}

// PoolMaxConfig holds maximum connections settings.
type PoolMaxConfig struct {
	Connections int32 `koanf:"connections" json:"connections" yaml:"connections" toml:"connections" mapstructure:"connections" validate:"gte=0"`
}

// PoolIdleConfig holds idle connections settings.
type PoolIdleConfig struct {
	Connections int32         `koanf:"connections" json:"connections" yaml:"connections" toml:"connections" mapstructure:"connections" validate:"gte=0"`
	Time        time.Duration `koanf:"time" json:"time" yaml:"time" toml:"time" mapstructure:"time"`
}

// LifetimeConfig holds maximum lifetime settings for connections.
// Set Max to 0 for no lifetime limit.
type LifetimeConfig struct {
	Max time.Duration `koanf:"max" json:"max" yaml:"max" toml:"max" mapstructure:"max"`
}

// QueryConfig holds settings related to query logging and slow query detection.
type QueryConfig struct {
	Slow SlowQueryConfig `koanf:"slow" json:"slow" yaml:"slow" toml:"slow" mapstructure:"slow"`
	Log  QueryLogConfig  `koanf:"log" json:"log" yaml:"log" toml:"log" mapstructure:"log"`
}

// SlowQueryConfig holds settings for slow query detection.
type SlowQueryConfig struct {
	Threshold time.Duration `koanf:"threshold" json:"threshold" yaml:"threshold" toml:"threshold" mapstructure:"threshold"`
	Enabled   bool          `koanf:"enabled" json:"enabled" yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
}

// QueryLogConfig holds settings for query logging.
type QueryLogConfig struct {
	Parameters bool `koanf:"parameters" json:"parameters" yaml:"parameters" toml:"parameters" mapstructure:"parameters"`
	MaxLength  int  `koanf:"max" json:"max" yaml:"max" toml:"max" mapstructure:"max"`
}

// TLSConfig holds TLS/SSL settings for database connections.
type TLSConfig struct {
	Mode     string `koanf:"mode" json:"mode" yaml:"mode" toml:"mode" mapstructure:"mode"`
	CertFile string `koanf:"cert" json:"cert" yaml:"cert" toml:"cert" mapstructure:"cert"`
	KeyFile  string `koanf:"key" json:"key" yaml:"key" toml:"key" mapstructure:"key"`
	CAFile   string `koanf:"ca" json:"ca" yaml:"ca" toml:"ca" mapstructure:"ca"`
}

// PostgreSQLConfig holds PostgreSQL-specific database settings.
type PostgreSQLConfig struct {
	Schema string `koanf:"schema" json:"schema" yaml:"schema" toml:"schema" mapstructure:"schema"`
}

// OracleConfig holds Oracle-specific database settings.
type OracleConfig struct {
	Service ServiceConfig `koanf:"service" json:"service" yaml:"service" toml:"service" mapstructure:"service"`
}

// ServiceConfig holds Oracle service connection settings.
type ServiceConfig struct {
	Name string `koanf:"name" json:"name" yaml:"name" toml:"name" mapstructure:"name"`
	SID  string `koanf:"sid" json:"sid" yaml:"sid" toml:"sid" mapstructure:"sid"`
}

// MongoConfig holds MongoDB-specific database settings.
type MongoConfig struct {
	Replica ReplicaConfig `koanf:"replica" json:"replica" yaml:"replica" toml:"replica" mapstructure:"replica"`
	Auth    AuthConfig    `koanf:"auth" json:"auth" yaml:"auth" toml:"auth" mapstructure:"auth"`
	Concern ConcernConfig `koanf:"concern" json:"concern" yaml:"concern" toml:"concern" mapstructure:"concern"`
}

// ReplicaConfig holds MongoDB replica set and read preference settings.
type ReplicaConfig struct {
	Set        string `koanf:"set" json:"set" yaml:"set" toml:"set" mapstructure:"set"`
	Preference string `koanf:"preference" json:"preference" yaml:"preference" toml:"preference" mapstructure:"preference"`
}

// AuthConfig holds MongoDB authentication source settings.
type AuthConfig struct {
	Source string `koanf:"source" json:"source" yaml:"source" toml:"source" mapstructure:"source"`
}

// ConcernConfig holds MongoDB write concern settings.
type ConcernConfig struct {
	Write string `koanf:"write" json:"write" yaml:"write" toml:"write" mapstructure:"write"`
}
