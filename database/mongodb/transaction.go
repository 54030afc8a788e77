package mongodb

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo"

	dbtypes "github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/logger"
)

// Transaction is a MongoDB transaction bound to its own session.
type Transaction struct {
	executor
	logger logger.Logger

	mu   sync.Mutex
	done bool
}

var _ dbtypes.Scope = (*Transaction)(nil)

// Commit commits the MongoDB transaction
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return dbtypes.NewTransactionError("commit", fmt.Errorf("transaction already finished"))
	}
	t.done = true

	sessionCtx := mongo.NewSessionContext(ctx, t.session)
	defer t.session.EndSession(sessionCtx)

	if err := t.session.CommitTransaction(sessionCtx); err != nil {
		t.logger.Error().Err(err).Msg("Failed to commit MongoDB transaction")
		return dbtypes.NewTransactionError("commit", err)
	}

	t.logger.Debug().Msg("MongoDB transaction committed successfully")
	return nil
}

// Rollback aborts the MongoDB transaction. It is a no-op once the transaction finished.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true

	sessionCtx := mongo.NewSessionContext(ctx, t.session)
	defer t.session.EndSession(sessionCtx)

	if err := t.session.AbortTransaction(sessionCtx); err != nil {
		t.logger.Error().Err(err).Msg("Failed to rollback MongoDB transaction")
		return dbtypes.NewTransactionError("rollback", err)
	}

	t.logger.Debug().Msg("MongoDB transaction rolled back successfully")
	return nil
}
