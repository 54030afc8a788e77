package oracle

import (
	"fmt"

	"github.com/gaborage/querybricks/database/internal/sqlconn"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Dialect renders Oracle DDL and catalog queries. Databases map to schemas, which
// are users in Oracle, so creating and dropping them is left to administrators.
type Dialect struct{}

var _ sqlconn.Dialect = Dialect{}

var columnTypes = map[dbtypes.ColumnType]string{
	dbtypes.ColumnString:    "VARCHAR2(255)",
	dbtypes.ColumnText:      "CLOB",
	dbtypes.ColumnInteger:   "NUMBER(10)",
	dbtypes.ColumnBigInt:    "NUMBER(19)",
	dbtypes.ColumnFloat:     "BINARY_DOUBLE",
	dbtypes.ColumnBoolean:   "NUMBER(1)",
	dbtypes.ColumnTimestamp: "TIMESTAMP WITH TIME ZONE",
	dbtypes.ColumnUUID:      "VARCHAR2(36)",
	dbtypes.ColumnJSON:      "CLOB",
}

func (Dialect) Vendor() dbtypes.Vendor { return dbtypes.Oracle }

func (Dialect) Quote(ident string) string { return sqlconn.QuoteWith(ident, `"`, `"`) }

func (d Dialect) Column(col dbtypes.ColumnDefinition, inlinePK bool) string {
	typ, ok := columnTypes[col.Type]
	if !ok {
		typ = "VARCHAR2(4000)"
	}
	if col.AutoIncrement {
		typ += " GENERATED BY DEFAULT AS IDENTITY"
	}
	return sqlconn.DefineColumn(d.Quote(col.Name), typ, col, inlinePK)
}

func (Dialect) CreateDatabase(string) string { return "" }

func (Dialect) DropDatabase(string) string { return "" }

func (Dialect) DatabaseExists(name string) (string, []any) {
	return "SELECT COUNT(*) FROM all_users WHERE username = :1", []any{name}
}

func (Dialect) TableExists(name string) (string, []any) {
	return "SELECT COUNT(*) FROM user_tables WHERE table_name = :1", []any{name}
}

func (Dialect) ListTables() string {
	return "SELECT table_name FROM user_tables"
}

func (d Dialect) AddColumn(table string, col dbtypes.ColumnDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD (%s)", d.Quote(table), d.Column(col, true))
}

func (d Dialect) DropTable(name string) string {
	return "DROP TABLE " + d.Quote(name) + " CASCADE CONSTRAINTS PURGE"
}

// DropAll is concurrent: CASCADE CONSTRAINTS removes the foreign keys that would
// otherwise impose an order.
func (d Dialect) DropAll(tables []string) ([]string, bool) {
	stmts := make([]string, len(tables))
	for i, t := range tables {
		stmts[i] = d.DropTable(t)
	}
	return stmts, true
}
