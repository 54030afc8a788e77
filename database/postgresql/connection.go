package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/gaborage/querybricks/config"
	"github.com/gaborage/querybricks/database/expression"
	"github.com/gaborage/querybricks/database/internal/builder"
	"github.com/gaborage/querybricks/database/internal/sqlconn"
	dbtypes "github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/logger"
)

// Connection is the PostgreSQL gateway.
type Connection struct {
	*sqlconn.Gateway
	compiler *builder.Compiler
	config   *config.DatabaseConfig
}

var _ dbtypes.Gateway = (*Connection)(nil)

var (
	openPostgresDB = func(cfg *pgx.ConnConfig) *sql.DB {
		return stdlib.OpenDB(*cfg)
	}
	pingPostgresDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// quoteDSN quotes a DSN value according to libpq rules:
// - Returns double single quotes for empty strings (empty value)
// - Escapes backslashes and single quotes
// - Wraps in single quotes when value contains non-alphanumeric/._- characters
func quoteDSN(value string) string {
	if value == "" {
		return "''"
	}

	needsQuoting := false
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') && r != '.' && r != '_' && r != '-' {
			needsQuoting = true
			break
		}
	}

	if !needsQuoting {
		return value
	}

	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")

	return "'" + escaped + "'"
}

// buildDSN renders a key/value DSN unless a connection string is configured.
func buildDSN(cfg *config.DatabaseConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}

	parts := []string{
		fmt.Sprintf("host=%s", quoteDSN(cfg.Host)),
		fmt.Sprintf("port=%d", cfg.Port),
		fmt.Sprintf("user=%s", quoteDSN(cfg.Username)),
		fmt.Sprintf("password=%s", quoteDSN(cfg.Password)),
		fmt.Sprintf("dbname=%s", quoteDSN(cfg.Database)),
	}
	if cfg.TLS.Mode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", quoteDSN(cfg.TLS.Mode)))
	}
	if cfg.PostgreSQL.Schema != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", quoteDSN(cfg.PostgreSQL.Schema)))
	}
	return strings.Join(parts, " ")
}

// NewConnection creates a new PostgreSQL connection
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (*Connection, error) {
	pgxConfig, err := pgx.ParseConfig(buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL config: %w", err)
	}

	db := openPostgresDB(pgxConfig)
	sqlconn.ConfigurePool(db, cfg.Pool)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pingPostgresDB(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close PostgreSQL database connection after ping failure")
		}
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Connected to PostgreSQL database")

	return newConnection(db, cfg, log), nil
}

func newConnection(db *sql.DB, cfg *config.DatabaseConfig, log logger.Logger) *Connection {
	return &Connection{
		Gateway:  sqlconn.New(db, Dialect{}, log),
		compiler: builder.MustCompiler(dbtypes.PostgreSQL),
		config:   cfg,
	}
}

// Compiler returns the SQL compiler paired with this connection.
func (c *Connection) Compiler() expression.Compiler {
	return c.compiler
}
