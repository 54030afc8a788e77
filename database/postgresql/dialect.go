package postgresql

import (
	"fmt"
	"strings"

	"github.com/gaborage/querybricks/database/internal/sqlconn"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Dialect renders PostgreSQL DDL and catalog queries.
type Dialect struct{}

var _ sqlconn.Dialect = Dialect{}

var columnTypes = map[dbtypes.ColumnType]string{
	dbtypes.ColumnString:    "VARCHAR(255)",
	dbtypes.ColumnText:      "TEXT",
	dbtypes.ColumnInteger:   "INTEGER",
	dbtypes.ColumnBigInt:    "BIGINT",
	dbtypes.ColumnFloat:     "DOUBLE PRECISION",
	dbtypes.ColumnBoolean:   "BOOLEAN",
	dbtypes.ColumnTimestamp: "TIMESTAMPTZ",
	dbtypes.ColumnUUID:      "UUID",
	dbtypes.ColumnJSON:      "JSONB",
}

func (Dialect) Vendor() dbtypes.Vendor { return dbtypes.PostgreSQL }

func (Dialect) Quote(ident string) string { return sqlconn.QuoteWith(ident, `"`, `"`) }

// Column maps auto-increment integers onto the serial pseudo-types.
func (d Dialect) Column(col dbtypes.ColumnDefinition, inlinePK bool) string {
	typ, ok := columnTypes[col.Type]
	if !ok {
		typ = "TEXT"
	}
	if col.AutoIncrement {
		switch col.Type {
		case dbtypes.ColumnBigInt:
			typ = "BIGSERIAL"
		case dbtypes.ColumnInteger:
			typ = "SERIAL"
		}
	}
	return sqlconn.DefineColumn(d.Quote(col.Name), typ, col, inlinePK)
}

func (d Dialect) CreateDatabase(name string) string {
	return "CREATE DATABASE " + d.Quote(name)
}

func (d Dialect) DropDatabase(name string) string {
	return "DROP DATABASE IF EXISTS " + d.Quote(name)
}

func (Dialect) DatabaseExists(name string) (string, []any) {
	return "SELECT COUNT(*) FROM pg_database WHERE datname = $1", []any{name}
}

func (Dialect) TableExists(name string) (string, []any) {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1", []any{name}
}

func (Dialect) ListTables() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'"
}

func (d Dialect) AddColumn(table string, col dbtypes.ColumnDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.Quote(table), d.Column(col, true))
}

func (d Dialect) DropTable(name string) string {
	return "DROP TABLE IF EXISTS " + d.Quote(name) + " CASCADE"
}

// DropAll drops every table in one statement so foreign keys never block the order.
func (d Dialect) DropAll(tables []string) ([]string, bool) {
	quoted := make([]string, len(tables))
	for i, t := range tables {
		quoted[i] = d.Quote(t)
	}
	return []string{"DROP TABLE IF EXISTS " + strings.Join(quoted, ", ") + " CASCADE"}, false
}
