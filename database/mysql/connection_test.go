package mysql

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/querybricks/config"
	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/logger"
)

func stubDriver(t *testing.T, pingErr error) (sqlmock.Sqlmock, **driver.Config) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	var captured *driver.Config
	origOpen, origPing := openMySQLDB, pingMySQLDB
	openMySQLDB = func(cfg *driver.Config) (*sql.DB, error) {
		captured = cfg
		return db, nil
	}
	pingMySQLDB = func(context.Context, *sql.DB) error { return pingErr }
	t.Cleanup(func() {
		openMySQLDB, pingMySQLDB = origOpen, origPing
		_ = db.Close()
	})
	return mock, &captured
}

func TestBuildConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{Host: "db", Port: 3306, Username: "app", Password: "secret", Database: "shop"}
	cfg.TLS.Mode = "require"

	mc, err := buildConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "tcp", mc.Net)
	assert.Equal(t, "db:3306", mc.Addr)
	assert.Equal(t, "shop", mc.DBName)
	assert.Equal(t, "skip-verify", mc.TLSConfig)
	assert.True(t, mc.ParseTime)
	assert.Equal(t, time.UTC, mc.Loc)

	mc, err = buildConfig(&config.DatabaseConfig{ConnectionString: "u:p@tcp(h:3307)/orders"})
	require.NoError(t, err)
	assert.Equal(t, "h:3307", mc.Addr)
	assert.Equal(t, "orders", mc.DBName)
	assert.True(t, mc.ParseTime, "parseTime is forced on")

	_, err = buildConfig(&config.DatabaseConfig{ConnectionString: "not a dsn"})
	assert.Error(t, err)

	_, err = buildConfig(&config.DatabaseConfig{Host: "db", Port: 3306, TLS: config.TLSConfig{Mode: "sometimes"}})
	assert.Error(t, err)
}

func TestTLSParam(t *testing.T) {
	tests := map[string]string{
		"":            "false",
		"disable":     "false",
		"prefer":      "preferred",
		"require":     "skip-verify",
		"verify-ca":   "true",
		"VERIFY-FULL": "true",
	}
	for mode, expected := range tests {
		got, err := tlsParam(mode)
		require.NoError(t, err, mode)
		assert.Equal(t, expected, got, mode)
	}
}

func TestNewConnection(t *testing.T) {
	mock, captured := stubDriver(t, nil)
	cfg := &config.DatabaseConfig{Host: "db", Port: 3306, Database: "shop"}
	cfg.Pool.Max.Connections = 9

	conn, err := NewConnection(cfg, logger.Nop())
	require.NoError(t, err)
	require.NotNil(t, *captured)
	assert.Equal(t, "db:3306", (*captured).Addr)
	assert.Equal(t, dbtypes.MySQL, conn.Vendor())
	assert.False(t, conn.Capabilities().Has(dbtypes.CapReturning))
	assert.Equal(t, 9, conn.Stats()["max_open_connections"])

	req, err := conn.Compiler().Insert("people", []dbtypes.Row{{"name": "Ann"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `people` (`name`) VALUES (?)", req.SQL)

	mock.ExpectExec(req.SQL).WithArgs("Ann").WillReturnResult(sqlmock.NewResult(11, 1))
	res, err := conn.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.HasLastInsertID)
	assert.Equal(t, int64(11), res.LastInsertID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewConnectionPingFailure(t *testing.T) {
	mock, _ := stubDriver(t, errors.New("access denied"))
	mock.ExpectClose()

	_, err := NewConnection(&config.DatabaseConfig{Host: "db", Port: 3306}, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping MySQL database")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDropAllTablesDisablesForeignKeys(t *testing.T) {
	mock, _ := stubDriver(t, nil)
	conn, err := NewConnection(&config.DatabaseConfig{Host: "db", Port: 3306}, logger.Nop())
	require.NoError(t, err)

	mock.ExpectQuery(Dialect{}.ListTables()).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("posts").AddRow("users"))
	mock.ExpectExec(disableForeignKeys).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS `posts`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS `users`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(enableForeignKeys).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, conn.DropAllTables(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectColumns(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "`id` BIGINT AUTO_INCREMENT PRIMARY KEY",
		d.Column(dbtypes.ColumnDefinition{Name: "id", Type: dbtypes.ColumnBigInt, PrimaryKey: true, AutoIncrement: true}, true))
	assert.Equal(t, "`created_at` DATETIME(6) NOT NULL",
		d.Column(dbtypes.ColumnDefinition{Name: "created_at", Type: dbtypes.ColumnTimestamp}, true))
	assert.Equal(t, "`we``ird` CHAR(36)",
		d.Column(dbtypes.ColumnDefinition{Name: "we`ird", Type: dbtypes.ColumnUUID, Nullable: true}, true))
	assert.Equal(t, "ALTER TABLE `people` ADD COLUMN `meta` JSON",
		d.AddColumn("people", dbtypes.ColumnDefinition{Name: "meta", Type: dbtypes.ColumnJSON, Nullable: true}))
}

func TestCompiledSelectRoundTrip(t *testing.T) {
	mock, _ := stubDriver(t, nil)
	conn, err := NewConnection(&config.DatabaseConfig{Host: "db", Port: 3306}, logger.Nop())
	require.NoError(t, err)

	offset := uint64(10)
	req, err := conn.Compiler().Select(expression.NewTree("people").SetOffset(&offset))
	require.NoError(t, err)
	assert.Contains(t, req.SQL, "LIMIT 18446744073709551615 OFFSET 10")

	mock.ExpectQuery(req.SQL).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	res, err := conn.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}
