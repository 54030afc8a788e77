// Package sqlite provides the SQLite gateway on top of mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/gaborage/querybricks/config"
	"github.com/gaborage/querybricks/database/expression"
	"github.com/gaborage/querybricks/database/internal/builder"
	"github.com/gaborage/querybricks/database/internal/sqlconn"
	dbtypes "github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/logger"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const dsnParams = "_foreign_keys=on&_busy_timeout=5000"

// Connection is the SQLite gateway.
type Connection struct {
	*sqlconn.Gateway
	compiler *builder.Compiler
	config   *config.DatabaseConfig
}

var _ dbtypes.Gateway = (*Connection)(nil)

var (
	openSQLiteDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("sqlite3", dsn)
	}
	pingSQLiteDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

func isMemory(path string) bool {
	return path == "" || path == MemoryPath
}

func databasePath(cfg *config.DatabaseConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return cfg.Database
}

// buildDSN returns the DSN and whether it names a private in-memory database.
func buildDSN(cfg *config.DatabaseConfig) (string, bool) {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString, false
	}
	path := databasePath(cfg)
	if isMemory(path) {
		return MemoryPath + "?" + dsnParams, true
	}
	return "file:" + path + "?" + dsnParams, false
}

// NewConnection opens a SQLite database file, or a private in-memory database when
// no path is configured.
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (*Connection, error) {
	dsn, memory := buildDSN(cfg)
	db, err := openSQLiteDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if memory {
		// Every connection to :memory: is a distinct database, so the pool holds exactly one forever.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		sqlconn.ConfigurePool(db, cfg.Pool)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pingSQLiteDB(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close SQLite database after ping failure")
		}
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	log.Info().Str("path", databasePath(cfg)).Bool("memory", memory).Msg("Opened SQLite database")
	return newConnection(db, cfg, log), nil
}

func newConnection(db *sql.DB, cfg *config.DatabaseConfig, log logger.Logger) *Connection {
	return &Connection{
		Gateway:  sqlconn.New(db, Dialect{}, log),
		compiler: builder.MustCompiler(dbtypes.SQLite),
		config:   cfg,
	}
}

// Compiler returns the SQL compiler paired with this connection.
func (c *Connection) Compiler() expression.Compiler {
	return c.compiler
}
