// Package mysql provides the MySQL gateway on top of go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/gaborage/querybricks/config"
	"github.com/gaborage/querybricks/database/expression"
	"github.com/gaborage/querybricks/database/internal/builder"
	"github.com/gaborage/querybricks/database/internal/sqlconn"
	dbtypes "github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/logger"
)

// Connection is the MySQL gateway.
type Connection struct {
	*sqlconn.Gateway
	compiler *builder.Compiler
	config   *config.DatabaseConfig
}

var _ dbtypes.Gateway = (*Connection)(nil)

var (
	openMySQLDB = func(cfg *driver.Config) (*sql.DB, error) {
		connector, err := driver.NewConnector(cfg)
		if err != nil {
			return nil, err
		}
		return sql.OpenDB(connector), nil
	}
	pingMySQLDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// tlsParam maps the shared TLS modes onto the driver's tls parameter.
func tlsParam(mode string) (string, error) {
	switch strings.ToLower(mode) {
	case "", "disable":
		return "false", nil
	case "prefer":
		return "preferred", nil
	case "require":
		return "skip-verify", nil
	case "verify-ca", "verify-full":
		return "true", nil
	}
	return "", fmt.Errorf("unknown SSL mode: %s", mode)
}

// buildConfig parses the connection string or assembles one from discrete fields.
// Times are always parsed into time.Time in UTC.
func buildConfig(cfg *config.DatabaseConfig) (*driver.Config, error) {
	var mc *driver.Config
	if cfg.ConnectionString != "" {
		parsed, err := driver.ParseDSN(cfg.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to parse MySQL config: %w", err)
		}
		mc = parsed
	} else {
		mc = driver.NewConfig()
		mc.User = cfg.Username
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Database

		tls, err := tlsParam(cfg.TLS.Mode)
		if err != nil {
			return nil, err
		}
		mc.TLSConfig = tls
	}

	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc, nil
}

// NewConnection creates a new MySQL connection
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (*Connection, error) {
	mc, err := buildConfig(cfg)
	if err != nil {
		return nil, err
	}

	db, err := openMySQLDB(mc)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	sqlconn.ConfigurePool(db, cfg.Pool)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pingMySQLDB(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close MySQL database connection after ping failure")
		}
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	log.Info().
		Str("addr", mc.Addr).
		Str("database", mc.DBName).
		Msg("Connected to MySQL database")

	return newConnection(db, cfg, log), nil
}

func newConnection(db *sql.DB, cfg *config.DatabaseConfig, log logger.Logger) *Connection {
	return &Connection{
		Gateway:  sqlconn.New(db, Dialect{}, log),
		compiler: builder.MustCompiler(dbtypes.MySQL),
		config:   cfg,
	}
}

// Compiler returns the SQL compiler paired with this connection.
func (c *Connection) Compiler() expression.Compiler {
	return c.compiler
}
