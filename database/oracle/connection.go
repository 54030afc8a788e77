package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	go_ora "github.com/sijms/go-ora/v2"

	"github.com/gaborage/querybricks/config"
	"github.com/gaborage/querybricks/database/expression"
	"github.com/gaborage/querybricks/database/internal/builder"
	"github.com/gaborage/querybricks/database/internal/sqlconn"
	dbtypes "github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/logger"
)

// Connection is the Oracle gateway.
type Connection struct {
	*sqlconn.Gateway
	compiler *builder.Compiler
	config   *config.DatabaseConfig
}

var _ dbtypes.Gateway = (*Connection)(nil)

var (
	openOracleDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("oracle", dsn)
	}
	pingOracleDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// resolveServiceName picks the service name, falling back to the database name
// when neither a service name nor a SID is configured.
func resolveServiceName(cfg *config.DatabaseConfig) string {
	if cfg.Oracle.Service.Name != "" {
		return cfg.Oracle.Service.Name
	}
	if cfg.Oracle.Service.SID != "" {
		return ""
	}
	return cfg.Database
}

func buildURLOptions(cfg *config.DatabaseConfig) map[string]string {
	opts := map[string]string{}
	if cfg.Oracle.Service.SID != "" {
		opts["SID"] = cfg.Oracle.Service.SID
	}
	if cfg.TLS.Mode != "" && cfg.TLS.Mode != "disable" {
		opts["SSL"] = "enable"
		if cfg.TLS.Mode != "verify-full" {
			opts["SSL VERIFY"] = "false"
		}
	}
	return opts
}

func buildDSN(cfg *config.DatabaseConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}
	return go_ora.BuildUrl(cfg.Host, cfg.Port, resolveServiceName(cfg), cfg.Username, cfg.Password, buildURLOptions(cfg))
}

// NewConnection creates a new Oracle connection
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (*Connection, error) {
	db, err := openOracleDB(buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open Oracle connection: %w", err)
	}

	sqlconn.ConfigurePool(db, cfg.Pool)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pingOracleDB(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close Oracle database connection after ping failure")
		}
		return nil, fmt.Errorf("failed to ping Oracle database: %w", err)
	}

	logConnectionSuccess(cfg, log)
	return newConnection(db, cfg, log), nil
}

func logConnectionSuccess(cfg *config.DatabaseConfig, log logger.Logger) {
	ev := log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port)
	switch {
	case cfg.Oracle.Service.Name != "":
		ev = ev.Str("service_name", cfg.Oracle.Service.Name)
	case cfg.Oracle.Service.SID != "":
		ev = ev.Str("sid", cfg.Oracle.Service.SID)
	default:
		ev = ev.Str("database", cfg.Database)
	}
	ev.Msg("Connected to Oracle database")
}

func newConnection(db *sql.DB, cfg *config.DatabaseConfig, log logger.Logger) *Connection {
	return &Connection{
		Gateway:  sqlconn.New(db, Dialect{}, log),
		compiler: builder.MustCompiler(dbtypes.Oracle),
		config:   cfg,
	}
}

// Compiler returns the SQL compiler paired with this connection.
func (c *Connection) Compiler() expression.Compiler {
	return c.compiler
}
