package oracle

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/querybricks/config"
	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

const oraclePingErrorMsg = "failed to ping Oracle database"

// createStandardPoolConfig returns a standard pool configuration for testing
func createStandardPoolConfig() config.PoolConfig {
	return config.PoolConfig{
		Max: config.PoolMaxConfig{
			Connections: 25,
		},
		Idle: config.PoolIdleConfig{
			Connections: 10,
			Time:        30 * time.Minute,
		},
		Lifetime: config.LifetimeConfig{
			Max: time.Hour,
		},
	}
}

// stubDriver swaps the open and ping hooks for a sqlmock pool and records the DSN.
func stubDriver(t *testing.T, pingErr error) (sqlmock.Sqlmock, *string) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	var dsn string
	originalOpen, originalPing := openOracleDB, pingOracleDB
	openOracleDB = func(d string) (*sql.DB, error) {
		dsn = d
		return db, nil
	}
	pingOracleDB = func(context.Context, *sql.DB) error { return pingErr }
	t.Cleanup(func() {
		openOracleDB, pingOracleDB = originalOpen, originalPing
		_ = db.Close()
	})
	return mock, &dsn
}

func TestResolveServiceName(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.DatabaseConfig
		expected string
	}{
		{
			name: "service_name_takes_priority",
			cfg: &config.DatabaseConfig{
				Oracle:   config.OracleConfig{Service: config.ServiceConfig{Name: "XEPDB1", SID: "XE"}},
				Database: "testdb",
			},
			expected: "XEPDB1",
		},
		{
			name:     "database_fallback_when_no_service_or_sid",
			cfg:      &config.DatabaseConfig{Database: "testdb"},
			expected: "testdb",
		},
		{
			name: "empty_when_sid_set_without_service_name",
			cfg: &config.DatabaseConfig{
				Oracle:   config.OracleConfig{Service: config.ServiceConfig{SID: "XE"}},
				Database: "testdb",
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveServiceName(tt.cfg))
		})
	}
}

func TestBuildURLOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.DatabaseConfig
		expected map[string]string
	}{
		{
			name: "with_sid",
			cfg: &config.DatabaseConfig{
				Oracle: config.OracleConfig{Service: config.ServiceConfig{SID: "XE"}},
			},
			expected: map[string]string{"SID": "XE"},
		},
		{
			name:     "without_sid",
			cfg:      &config.DatabaseConfig{},
			expected: map[string]string{},
		},
		{
			name:     "tls_require",
			cfg:      &config.DatabaseConfig{TLS: config.TLSConfig{Mode: "require"}},
			expected: map[string]string{"SSL": "enable", "SSL VERIFY": "false"},
		},
		{
			name:     "tls_verify_full",
			cfg:      &config.DatabaseConfig{TLS: config.TLSConfig{Mode: "verify-full"}},
			expected: map[string]string{"SSL": "enable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildURLOptions(tt.cfg))
		})
	}
}

func TestNewConnectionDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.DatabaseConfig
		contains []string
	}{
		{
			name:     "connection_string",
			cfg:      &config.DatabaseConfig{ConnectionString: "oracle://u:p@db:1521/ORCLPDB1"},
			contains: []string{"oracle://u:p@db:1521/ORCLPDB1"},
		},
		{
			name: "service_name",
			cfg: &config.DatabaseConfig{
				Host: "db", Port: 1521, Username: "scott", Password: "tiger",
				Oracle: config.OracleConfig{Service: config.ServiceConfig{Name: "XEPDB1"}},
			},
			contains: []string{"oracle://scott:tiger@db:1521/XEPDB1"},
		},
		{
			name: "sid",
			cfg: &config.DatabaseConfig{
				Host: "db", Port: 1521, Username: "scott", Password: "tiger",
				Oracle: config.OracleConfig{Service: config.ServiceConfig{SID: "ORCL"}},
			},
			contains: []string{"oracle://scott:tiger@db:1521", "SID=ORCL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, dsn := stubDriver(t, nil)
			tt.cfg.Pool = createStandardPoolConfig()

			conn, err := NewConnection(tt.cfg, newDisabledTestLogger())
			require.NoError(t, err)
			require.NotNil(t, conn)
			for _, part := range tt.contains {
				assert.True(t, strings.Contains(*dsn, part), "dsn %q should contain %q", *dsn, part)
			}
			assert.Equal(t, 25, conn.Stats()["max_open_connections"])
		})
	}
}

func TestNewConnectionPingFailure(t *testing.T) {
	mock, _ := stubDriver(t, errors.New("connection refused"))
	mock.ExpectClose()

	conn, err := NewConnection(&config.DatabaseConfig{Host: "localhost", Port: 1521}, newTestLogger())
	assert.Error(t, err)
	assert.Nil(t, conn)
	assert.Contains(t, err.Error(), oraclePingErrorMsg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectionExecutesCompiledRequests(t *testing.T) {
	mock, _ := stubDriver(t, nil)
	conn, err := NewConnection(&config.DatabaseConfig{Host: "localhost", Port: 1521, Database: "XE"}, newDisabledTestLogger())
	require.NoError(t, err)
	ctx := context.Background()

	limit := uint64(5)
	req, err := conn.Compiler().Select(expression.NewTree("people").
		AddWhere(expression.Where{Column: "name", Operator: expression.Eq, Value: "Ann"}).
		SetLimit(&limit))
	require.NoError(t, err)
	assert.Contains(t, req.SQL, `"name" = :1`)
	assert.True(t, strings.HasSuffix(req.SQL, "FETCH NEXT 5 ROWS ONLY"))

	mock.ExpectQuery(req.SQL).WithArgs("Ann").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Ann"))
	res, err := conn.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []dbtypes.Row{{"id": int64(1), "name": "Ann"}}, res.Rows)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM dual").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))
	mock.ExpectCommit()
	scope, err := conn.Begin(ctx)
	require.NoError(t, err)
	out, err := scope.Raw(ctx, "SELECT 1 FROM dual")
	require.NoError(t, err)
	assert.Len(t, out, 1)
	require.NoError(t, scope.Commit(ctx))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectionSchema(t *testing.T) {
	mock, _ := stubDriver(t, nil)
	conn, err := NewConnection(&config.DatabaseConfig{Host: "localhost", Port: 1521}, newDisabledTestLogger())
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, conn.CreateDatabase(ctx, "APP"), dbtypes.ErrUnsupported)
	assert.ErrorIs(t, conn.DropDatabase(ctx, "APP"), dbtypes.ErrUnsupported)

	mock.ExpectQuery("SELECT COUNT(*) FROM all_users WHERE username = :1").WithArgs("APP").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	exists, err := conn.DatabaseExists(ctx, "APP")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT COUNT(*) FROM user_tables WHERE table_name = :1").WithArgs("people").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`CREATE TABLE "people" ("id" NUMBER(10) GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY, "active" NUMBER(1) NOT NULL)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, conn.CreateTable(ctx, "people", []dbtypes.ColumnDefinition{
		{Name: "id", Type: dbtypes.ColumnInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "active", Type: dbtypes.ColumnBoolean},
	}))

	mock.ExpectExec(`ALTER TABLE "people" ADD ("bio" CLOB)`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, conn.AlterTable(ctx, "people", []dbtypes.TableChange{
		{Kind: dbtypes.AddColumn, Column: dbtypes.ColumnDefinition{Name: "bio", Type: dbtypes.ColumnText, Nullable: true}},
	}))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectDropAll(t *testing.T) {
	stmts, concurrent := Dialect{}.DropAll([]string{"a", "b"})
	assert.True(t, concurrent)
	assert.Equal(t, []string{
		`DROP TABLE "a" CASCADE CONSTRAINTS PURGE`,
		`DROP TABLE "b" CASCADE CONSTRAINTS PURGE`,
	}, stmts)
}
