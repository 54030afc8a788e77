// Package types contains the core database contracts for querybricks.
// These interfaces are separate from the main database package to avoid import cycles
// and to make them easily accessible for mocking and testing.
//
//nolint:revive // Package name "types" is intentionally generic to avoid circular
package types

import "context"

// Schema defines the DDL operations a gateway exposes. Migration runners issue their
// statements through the same connection but never through the expression compiler.
type Schema interface {
	CreateDatabase(ctx context.Context, name string) error
	DropDatabase(ctx context.Context, name string) error
	DatabaseExists(ctx context.Context, name string) (bool, error)

	CreateTable(ctx context.Context, name string, columns []ColumnDefinition) error
	DropTable(ctx context.Context, name string) error
	AlterTable(ctx context.Context, name string, changes []TableChange) error
	TableExists(ctx context.Context, name string) (bool, error)
	DropAllTables(ctx context.Context) error
}

// Gateway is the connection abstraction the query builder depends on.
// It owns pooling and concurrency control for the underlying backend; the gateway
// never depends on the query builder.
type Gateway interface {
	Executor
	Schema
	Transactor

	// Health checks backend connectivity.
	Health(ctx context.Context) error

	// Close releases every pooled resource.
	Close() error
}
