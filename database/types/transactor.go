// Package types contains the core database contracts for querybricks.
//
//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import "context"

// Transactor starts transaction scopes.
//
// Common usage pattern:
//
//	scope, err := gw.Begin(ctx)
//	if err != nil { return err }
//	defer scope.Rollback(ctx) // No-op if already committed
//	// ... execute requests on scope ...
//	return scope.Commit(ctx)
type Transactor interface {
	Begin(ctx context.Context) (Scope, error)
}

// Scope is an exclusively owned transaction. Requests executed on it become visible to
// other readers only after Commit.
type Scope interface {
	Executor

	Commit(ctx context.Context) error

	// Rollback discards every write of the scope. Calling it after Commit is a no-op.
	Rollback(ctx context.Context) error
}
