// Package sqlconn implements the connection gateway shared by every database/sql backend.
// Vendor packages supply the driver, the DSN and a Dialect for the DDL they speak.
package sqlconn

import (
	"fmt"
	"strings"

	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Dialect renders the DDL and catalog queries of one backend.
// Methods returning an empty statement mark the operation as unsupported.
type Dialect interface {
	Vendor() dbtypes.Vendor

	// Quote quotes a single identifier.
	Quote(ident string) string

	// Column renders one column of a CREATE TABLE or ADD COLUMN, name included.
	// inlinePK is false when the table declares a composite primary key.
	Column(col dbtypes.ColumnDefinition, inlinePK bool) string

	CreateDatabase(name string) string
	DropDatabase(name string) string
	DatabaseExists(name string) (string, []any)

	TableExists(name string) (string, []any)
	ListTables() string
	AddColumn(table string, col dbtypes.ColumnDefinition) string
	DropTable(name string) string

	// DropAll returns the statements dropping every listed table. When concurrent is
	// false they run in order on a single pinned connection.
	DropAll(tables []string) (stmts []string, concurrent bool)
}

// QuoteWith wraps ident in open/close, doubling any embedded close character.
func QuoteWith(ident, open, closing string) string {
	return open + strings.ReplaceAll(ident, closing, closing+closing) + closing
}

// DefineColumn renders `name type [PRIMARY KEY] [NOT NULL]` for dialects whose column
// syntax follows the standard.
func DefineColumn(quoted, typ string, col dbtypes.ColumnDefinition, inlinePK bool) string {
	var b strings.Builder
	b.WriteString(quoted)
	b.WriteByte(' ')
	b.WriteString(typ)
	if col.PrimaryKey && inlinePK {
		b.WriteString(" PRIMARY KEY")
	} else if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

// createTableSQL renders CREATE TABLE with a table-level constraint for composite keys.
func createTableSQL(d Dialect, name string, columns []dbtypes.ColumnDefinition) (string, error) {
	if name == "" {
		return "", dbtypes.ErrMissingTable
	}
	if len(columns) == 0 {
		return "", dbtypes.InvalidArgumentf("table %q requires at least one column", name)
	}

	var keys []string
	for _, col := range columns {
		if col.PrimaryKey {
			keys = append(keys, d.Quote(col.Name))
		}
	}
	inlinePK := len(keys) <= 1

	parts := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		if col.Name == "" {
			return "", dbtypes.InvalidArgumentf("table %q has a column without a name", name)
		}
		parts = append(parts, d.Column(col, inlinePK))
	}
	if !inlinePK {
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keys, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(name), strings.Join(parts, ", ")), nil
}

func alterTableSQL(d Dialect, table string, change dbtypes.TableChange) (string, error) {
	if change.Column.Name == "" {
		return "", dbtypes.InvalidArgumentf("table change on %q requires a column name", table)
	}
	switch change.Kind {
	case dbtypes.AddColumn:
		return d.AddColumn(table, change.Column), nil
	case dbtypes.DropColumn:
		return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.Quote(table), d.Quote(change.Column.Name)), nil
	case dbtypes.RenameColumn:
		if change.NewName == "" {
			return "", dbtypes.InvalidArgumentf("rename of %q requires a new name", change.Column.Name)
		}
		return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
			d.Quote(table), d.Quote(change.Column.Name), d.Quote(change.NewName)), nil
	}
	return "", dbtypes.InvalidArgumentf("unsupported table change %q", change.Kind)
}
