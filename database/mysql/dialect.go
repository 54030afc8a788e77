package mysql

import (
	"fmt"

	"github.com/gaborage/querybricks/database/internal/sqlconn"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Dialect renders MySQL DDL and catalog queries.
type Dialect struct{}

var _ sqlconn.Dialect = Dialect{}

var columnTypes = map[dbtypes.ColumnType]string{
	dbtypes.ColumnString:    "VARCHAR(255)",
	dbtypes.ColumnText:      "TEXT",
	dbtypes.ColumnInteger:   "INT",
	dbtypes.ColumnBigInt:    "BIGINT",
	dbtypes.ColumnFloat:     "DOUBLE",
	dbtypes.ColumnBoolean:   "BOOLEAN",
	dbtypes.ColumnTimestamp: "DATETIME(6)",
	dbtypes.ColumnUUID:      "CHAR(36)",
	dbtypes.ColumnJSON:      "JSON",
}

const (
	disableForeignKeys = "SET FOREIGN_KEY_CHECKS = 0"
	enableForeignKeys  = "SET FOREIGN_KEY_CHECKS = 1"
)

func (Dialect) Vendor() dbtypes.Vendor { return dbtypes.MySQL }

func (Dialect) Quote(ident string) string { return sqlconn.QuoteWith(ident, "`", "`") }

func (d Dialect) Column(col dbtypes.ColumnDefinition, inlinePK bool) string {
	typ, ok := columnTypes[col.Type]
	if !ok {
		typ = "TEXT"
	}
	if col.AutoIncrement {
		typ += " AUTO_INCREMENT"
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
	return "SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?", []any{name}
}

func (Dialect) TableExists(name string) (string, []any) {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", []any{name}
}

func (Dialect) ListTables() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'"
}

func (d Dialect) AddColumn(table string, col dbtypes.ColumnDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.Quote(table), d.Column(col, true))
}

func (d Dialect) DropTable(name string) string {
	return "DROP TABLE IF EXISTS " + d.Quote(name)
}

// DropAll runs on one connection because FOREIGN_KEY_CHECKS is a session variable.
func (d Dialect) DropAll(tables []string) ([]string, bool) {
	stmts := make([]string, 0, len(tables)+2)
	stmts = append(stmts, disableForeignKeys)
	for _, t := range tables {
		stmts = append(stmts, d.DropTable(t))
	}
	return append(stmts, enableForeignKeys), false
}
