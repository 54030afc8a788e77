package sqlite

import (
	"fmt"

	"github.com/gaborage/querybricks/database/internal/sqlconn"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Dialect renders SQLite DDL and catalog queries. A SQLite file is one database,
// so creating and dropping databases is unsupported.
type Dialect struct{}

var _ sqlconn.Dialect = Dialect{}

// The declared types drive the driver's decoding: BOOLEAN scans as bool and
// TIMESTAMP as time.Time.
var columnTypes = map[dbtypes.ColumnType]string{
	dbtypes.ColumnString:    "TEXT",
	dbtypes.ColumnText:      "TEXT",
	dbtypes.ColumnInteger:   "INTEGER",
	dbtypes.ColumnBigInt:    "INTEGER",
	dbtypes.ColumnFloat:     "REAL",
	dbtypes.ColumnBoolean:   "BOOLEAN",
	dbtypes.ColumnTimestamp: "TIMESTAMP",
	dbtypes.ColumnUUID:      "TEXT",
	dbtypes.ColumnJSON:      "TEXT",
}

const (
	disableForeignKeys = "PRAGMA foreign_keys = OFF"
	enableForeignKeys  = "PRAGMA foreign_keys = ON"
)

func (Dialect) Vendor() dbtypes.Vendor { return dbtypes.SQLite }

func (Dialect) Quote(ident string) string { return sqlconn.QuoteWith(ident, `"`, `"`) }

// Column renders auto-increment keys as rowid aliases.
func (d Dialect) Column(col dbtypes.ColumnDefinition, inlinePK bool) string {
	if col.AutoIncrement && col.PrimaryKey && inlinePK {
		return d.Quote(col.Name) + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	typ, ok := columnTypes[col.Type]
	if !ok {
		typ = "TEXT"
	}
	return sqlconn.DefineColumn(d.Quote(col.Name), typ, col, inlinePK)
}

func (Dialect) CreateDatabase(string) string { return "" }

func (Dialect) DropDatabase(string) string { return "" }

func (Dialect) DatabaseExists(name string) (string, []any) {
	return "SELECT COUNT(*) FROM pragma_database_list WHERE name = ?", []any{name}
}

func (Dialect) TableExists(name string) (string, []any) {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", []any{name}
}

func (Dialect) ListTables() string {
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'"
}

// AddColumn always adds a nullable column; SQLite cannot add NOT NULL columns
// without a default.
func (d Dialect) AddColumn(table string, col dbtypes.ColumnDefinition) string {
	col.Nullable = true
	col.PrimaryKey = false
	col.AutoIncrement = false
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.Quote(table), d.Column(col, true))
}

func (d Dialect) DropTable(name string) string {
	return "DROP TABLE IF EXISTS " + d.Quote(name)
}

// DropAll runs on one connection because foreign_keys is a per-connection pragma.
func (d Dialect) DropAll(tables []string) ([]string, bool) {
	stmts := make([]string, 0, len(tables)+2)
	stmts = append(stmts, disableForeignKeys)
	for _, t := range tables {
		stmts = append(stmts, d.DropTable(t))
	}
	return append(stmts, enableForeignKeys), false
}
