package orm

import (
	"context"
	"errors"

	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Transaction runs fn with a clone of the builder bound to a new transaction scope.
//
// The scope commits when fn returns nil and rolls back when fn returns an error or
// panics; the panic is re-raised after the rollback. Calling Transaction from inside fn
// on the scoped builder, on b, or on a clone taken inside fn fails with
// dbtypes.ErrNestedTransaction before anything reaches the backend.
func (b *Builder[M]) Transaction(ctx context.Context, fn func(tx *Builder[M]) error) error {
	if b.err != nil {
		return b.err
	}
	if b.scope != nil {
		return dbtypes.ErrNestedTransaction
	}
	if b.txGuard == nil {
		b.txGuard = &txGuard{}
	}
	if !b.txGuard.active.CompareAndSwap(false, true) {
		return dbtypes.ErrNestedTransaction
	}
	defer b.txGuard.active.Store(false)

	conn, err := b.connection(ctx)
	if err != nil {
		return err
	}

	scope, err := conn.Begin(ctx)
	if err != nil {
		return transactionError("begin", err)
	}

	tx := b.Clone()
	tx.scope = scope

	defer func() {
		if r := recover(); r != nil {
			b.rollback(ctx, scope, "panic")
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := b.rollback(ctx, scope, "callback error"); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	if err := scope.Commit(ctx); err != nil {
		b.log.Error().Err(err).Str("table", b.def.Table).Msg("Transaction commit failed")
		return transactionError("commit", err)
	}
	return nil
}

func (b *Builder[M]) rollback(ctx context.Context, scope dbtypes.Scope, reason string) error {
	b.log.Debug().Str("table", b.def.Table).Str("reason", reason).Msg("Rolling back transaction")
	if err := scope.Rollback(ctx); err != nil {
		b.log.Error().Err(err).Str("table", b.def.Table).Msg("Transaction rollback failed")
		return transactionError("rollback", err)
	}
	return nil
}

// transactionError wraps err unless a gateway already reported it as a transaction failure.
func transactionError(op string, err error) error {
	if errors.Is(err, dbtypes.ErrTransaction) {
		return err
	}
	return dbtypes.NewTransactionError(op, err)
}
