package sqlconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gaborage/querybricks/config"
	dbtypes "github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/logger"
)

const healthTimeout = 5 * time.Second

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Gateway is a dbtypes.Gateway over a *sql.DB.
type Gateway struct {
	executor
	db     *sql.DB
	logger logger.Logger
}

var _ dbtypes.Gateway = (*Gateway)(nil)

// New wraps an opened and pinged pool.
func New(db *sql.DB, dialect Dialect, log logger.Logger) *Gateway {
	return &Gateway{
		executor: executor{q: db, dialect: dialect},
		db:       db,
		logger:   log,
	}
}

// ConfigurePool applies the pool settings of a connection.
func ConfigurePool(db *sql.DB, cfg config.PoolConfig) {
	db.SetMaxOpenConns(int(cfg.Max.Connections))
	db.SetMaxIdleConns(int(cfg.Idle.Connections))
	db.SetConnMaxLifetime(cfg.Lifetime.Max)
	db.SetConnMaxIdleTime(cfg.Idle.Time)
}

// DB returns the underlying pool.
func (g *Gateway) DB() *sql.DB {
	return g.db
}

// Begin starts a transaction.
func (g *Gateway) Begin(ctx context.Context) (dbtypes.Scope, error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbtypes.NewTransactionError("begin", err)
	}
	return &Transaction{executor: executor{q: tx, dialect: g.dialect}, tx: tx}, nil
}

// Health checks database connectivity
func (g *Gateway) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	return g.db.PingContext(ctx)
}

// Stats returns database connection statistics
func (g *Gateway) Stats() map[string]any {
	stats := g.db.Stats()
	return map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
	}
}

// Close closes the database connection
func (g *Gateway) Close() error {
	g.logger.Info().Str("vendor", g.dialect.Vendor()).Msg("Closing database connection")
	return g.db.Close()
}

// CreateDatabase creates a database on the server.
func (g *Gateway) CreateDatabase(ctx context.Context, name string) error {
	return g.execDDL(ctx, g.dialect.CreateDatabase(name))
}

// DropDatabase drops a database if it exists.
func (g *Gateway) DropDatabase(ctx context.Context, name string) error {
	return g.execDDL(ctx, g.dialect.DropDatabase(name))
}

// DatabaseExists reports whether the server knows the database.
func (g *Gateway) DatabaseExists(ctx context.Context, name string) (bool, error) {
	query, args := g.dialect.DatabaseExists(name)
	return g.exists(ctx, query, args)
}

// CreateTable creates a table unless it already exists.
func (g *Gateway) CreateTable(ctx context.Context, name string, columns []dbtypes.ColumnDefinition) error {
	stmt, err := createTableSQL(g.dialect, name, columns)
	if err != nil {
		return err
	}
	exists, err := g.TableExists(ctx, name)
	if err != nil || exists {
		return err
	}
	return g.execDDL(ctx, stmt)
}

// DropTable drops a table if it exists.
func (g *Gateway) DropTable(ctx context.Context, name string) error {
	exists, err := g.TableExists(ctx, name)
	if err != nil || !exists {
		return err
	}
	return g.execDDL(ctx, g.dialect.DropTable(name))
}

// AlterTable applies every change in order.
func (g *Gateway) AlterTable(ctx context.Context, name string, changes []dbtypes.TableChange) error {
	for _, change := range changes {
		stmt, err := alterTableSQL(g.dialect, name, change)
		if err != nil {
			return err
		}
		if err := g.execDDL(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// TableExists reports whether the table exists in the current schema.
func (g *Gateway) TableExists(ctx context.Context, name string) (bool, error) {
	query, args := g.dialect.TableExists(name)
	return g.exists(ctx, query, args)
}

// DropAllTables drops every table of the current schema.
func (g *Gateway) DropAllTables(ctx context.Context) error {
	tables, err := g.listTables(ctx)
	if err != nil || len(tables) == 0 {
		return err
	}

	stmts, concurrent := g.dialect.DropAll(tables)
	if concurrent {
		eg, egctx := errgroup.WithContext(ctx)
		for _, stmt := range stmts {
			eg.Go(func() error {
				return g.execOn(egctx, g.db, stmt)
			})
		}
		return eg.Wait()
	}

	// Session settings such as disabled foreign key checks only hold on one connection.
	conn, err := g.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	for _, stmt := range stmts {
		if err := g.execOn(ctx, conn, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) listTables(ctx context.Context) ([]string, error) {
	query := g.dialect.ListTables()
	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		return nil, dbtypes.NewQueryExecutionError(&dbtypes.Request{Operation: dbtypes.OpRaw, SQL: query}, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (g *Gateway) exists(ctx context.Context, query string, args []any) (bool, error) {
	if query == "" {
		return false, dbtypes.ErrUnsupported
	}
	var n int64
	if err := g.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, dbtypes.NewQueryExecutionError(&dbtypes.Request{Operation: dbtypes.OpRaw, SQL: query, Args: args}, err)
	}
	return n > 0, nil
}

func (g *Gateway) execDDL(ctx context.Context, stmt string) error {
	if stmt == "" {
		return dbtypes.ErrUnsupported
	}
	return g.execOn(ctx, g.db, stmt)
}

func (g *Gateway) execOn(ctx context.Context, q querier, stmt string) error {
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return dbtypes.NewQueryExecutionError(&dbtypes.Request{Operation: dbtypes.OpRaw, SQL: stmt}, err)
	}
	g.logger.Debug().Str("vendor", g.dialect.Vendor()).Str("statement", stmt).Msg("Executed DDL")
	return nil
}

// Transaction is an exclusively owned *sql.Tx.
type Transaction struct {
	executor
	tx *sql.Tx

	mu   sync.Mutex
	done bool
}

var _ dbtypes.Scope = (*Transaction)(nil)

// Commit commits the transaction
func (t *Transaction) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return dbtypes.NewTransactionError("commit", sql.ErrTxDone)
	}
	t.done = true
	return dbtypes.NewTransactionError("commit", t.tx.Commit())
}

// Rollback rolls back the transaction. It is a no-op once the transaction finished.
func (t *Transaction) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return dbtypes.NewTransactionError("rollback", err)
	}
	return nil
}
