package orm

import (
	"context"

	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Raw passes query to the backend untouched. Inside a transaction it runs on the scope.
func (b *Builder[M]) Raw(ctx context.Context, query any, args ...any) (any, error) {
	s, err := b.session(ctx)
	if err != nil {
		return nil, err
	}
	return s.exec.Raw(ctx, query, args...)
}

// The DDL passthroughs below always run on the connection, never on a transaction scope.

// CreateDatabase creates a database (or schema, depending on the backend).
func (b *Builder[M]) CreateDatabase(ctx context.Context, name string) error {
	return b.schema(ctx, func(s dbtypes.Schema) error { return s.CreateDatabase(ctx, name) })
}

// DropDatabase drops a database.
func (b *Builder[M]) DropDatabase(ctx context.Context, name string) error {
	return b.schema(ctx, func(s dbtypes.Schema) error { return s.DropDatabase(ctx, name) })
}

// DatabaseExists reports whether a database exists.
func (b *Builder[M]) DatabaseExists(ctx context.Context, name string) (exists bool, err error) {
	err = b.schema(ctx, func(s dbtypes.Schema) error {
		exists, err = s.DatabaseExists(ctx, name)
		return err
	})
	return exists, err
}

// CreateTable creates a table. An empty name uses the model's table.
func (b *Builder[M]) CreateTable(ctx context.Context, name string, columns []dbtypes.ColumnDefinition) error {
	return b.schema(ctx, func(s dbtypes.Schema) error { return s.CreateTable(ctx, b.tableOr(name), columns) })
}

// DropTable drops a table. An empty name uses the model's table.
func (b *Builder[M]) DropTable(ctx context.Context, name string) error {
	return b.schema(ctx, func(s dbtypes.Schema) error { return s.DropTable(ctx, b.tableOr(name)) })
}

// AlterTable applies changes to a table. An empty name uses the model's table.
func (b *Builder[M]) AlterTable(ctx context.Context, name string, changes []dbtypes.TableChange) error {
	return b.schema(ctx, func(s dbtypes.Schema) error { return s.AlterTable(ctx, b.tableOr(name), changes) })
}

// TableExists reports whether a table exists. An empty name uses the model's table.
func (b *Builder[M]) TableExists(ctx context.Context, name string) (exists bool, err error) {
	err = b.schema(ctx, func(s dbtypes.Schema) error {
		exists, err = s.TableExists(ctx, b.tableOr(name))
		return err
	})
	return exists, err
}

// DropAllTables drops every table of the connection's database.
func (b *Builder[M]) DropAllTables(ctx context.Context) error {
	return b.schema(ctx, func(s dbtypes.Schema) error { return s.DropAllTables(ctx) })
}

func (b *Builder[M]) tableOr(name string) string {
	if name == "" {
		return b.tree.Table()
	}
	return name
}

func (b *Builder[M]) schema(ctx context.Context, fn func(dbtypes.Schema) error) error {
	if b.err != nil {
		return b.err
	}
	conn, err := b.connection(ctx)
	if err != nil {
		return err
	}
	return fn(conn)
}
