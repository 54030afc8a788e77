//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

// ColumnType is a backend-neutral column type used by CreateTable and AlterTable.
type ColumnType string

const (
	ColumnString    ColumnType = "string"
	ColumnText      ColumnType = "text"
	ColumnInteger   ColumnType = "integer"
	ColumnBigInt    ColumnType = "bigint"
	ColumnFloat     ColumnType = "float"
	ColumnBoolean   ColumnType = "boolean"
	ColumnTimestamp ColumnType = "timestamp"
	ColumnUUID      ColumnType = "uuid"
	ColumnJSON      ColumnType = "json"
)

// ColumnDefinition describes one column of a table.
type ColumnDefinition struct {
	Name       string
	Type       ColumnType
	Nullable   bool
	PrimaryKey bool

	// AutoIncrement only applies to integer primary keys.
	AutoIncrement bool
}

// TableChangeKind selects what AlterTable does with a TableChange.
type TableChangeKind string

const (
	AddColumn    TableChangeKind = "add"
	DropColumn   TableChangeKind = "drop"
	RenameColumn TableChangeKind = "rename"
)

// TableChange is a single AlterTable instruction.
type TableChange struct {
	Kind    TableChangeKind
	Column  ColumnDefinition
	NewName string
}
