package testing

import (
	"context"
	"errors"
	"slices"
	"sync"

	dbtypes "github.com/gaborage/querybricks/database/types"
)

// TestTx is an in-memory fake transaction scope that implements dbtypes.Scope.
// It records requests executed within the scope and its commit/rollback outcome.
//
// Requests are answered by the scope's own expectations first, then by the parent
// TestDB's. Every request is also recorded in the parent's log with InTransaction set.
//
// Usage example:
//
//	db := NewTestDB(dbtypes.PostgreSQL)
//	tx := db.ExpectTransaction()
//	tx.ExpectInsert("orders").WillReturnRows(NewRowSet("id").AddRow(1))
//
//	err := orders.Transaction(ctx, func(b *orm.Builder[*Order]) error { ... })
//
//	AssertCommitted(t, tx)
type TestTx struct {
	parent       *TestDB
	expectations []*Expectation
	requestLog   []*dbtypes.Request
	beginErr     error
	commitErr    error
	committed    bool
	rolledBack   bool
	mu           sync.RWMutex
}

var _ dbtypes.Scope = (*TestTx)(nil)

var errTxDone = errors.New("transaction already finished")

func newTestTx(parent *TestDB) *TestTx {
	return &TestTx{parent: parent}
}

// Expect registers an expectation answered only inside this scope.
func (tx *TestTx) Expect(op dbtypes.Operation, table string) *Expectation {
	e := &Expectation{db: tx.parent, operation: op, table: table}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.expectations = append(tx.expectations, e)
	return e
}

// ExpectSelect is shorthand for Expect(dbtypes.OpSelect, table).
func (tx *TestTx) ExpectSelect(table string) *Expectation {
	return tx.Expect(dbtypes.OpSelect, table)
}

// ExpectInsert is shorthand for Expect(dbtypes.OpInsert, table).
func (tx *TestTx) ExpectInsert(table string) *Expectation {
	return tx.Expect(dbtypes.OpInsert, table)
}

// ExpectUpdate is shorthand for Expect(dbtypes.OpUpdate, table).
func (tx *TestTx) ExpectUpdate(table string) *Expectation {
	return tx.Expect(dbtypes.OpUpdate, table)
}

// ExpectDelete is shorthand for Expect(dbtypes.OpDelete, table).
func (tx *TestTx) ExpectDelete(table string) *Expectation {
	return tx.Expect(dbtypes.OpDelete, table)
}

// WillFailBegin makes the Begin call that hands out this scope fail with err.
func (tx *TestTx) WillFailBegin(err error) *TestTx {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.beginErr = err
	return tx
}

// WillFailCommit makes Commit fail with err. The scope counts as rolled back afterwards.
func (tx *TestTx) WillFailCommit(err error) *TestTx {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.commitErr = err
	return tx
}

// Execute implements dbtypes.Executor.
func (tx *TestTx) Execute(_ context.Context, req *dbtypes.Request) (*dbtypes.Result, error) {
	tx.mu.Lock()
	if req != nil {
		tx.requestLog = append(tx.requestLog, req)
	}
	own := slices.Clone(tx.expectations)
	tx.mu.Unlock()

	return tx.parent.execute(req, true, own)
}

// Raw implements dbtypes.Executor.
func (tx *TestTx) Raw(_ context.Context, query any, args ...any) (any, error) {
	return tx.parent.raw(query, args, true)
}

// Vendor implements dbtypes.Executor.
func (tx *TestTx) Vendor() dbtypes.Vendor {
	return tx.parent.Vendor()
}

// Capabilities implements dbtypes.Executor.
func (tx *TestTx) Capabilities() dbtypes.CapabilitySet {
	return tx.parent.Capabilities()
}

// Commit marks the scope committed, or fails with the error set by WillFailCommit.
func (tx *TestTx) Commit(_ context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.committed || tx.rolledBack {
		return dbtypes.NewTransactionError("commit", errTxDone)
	}
	if tx.commitErr != nil {
		tx.rolledBack = true
		return dbtypes.NewTransactionError("commit", tx.commitErr)
	}
	tx.committed = true
	return nil
}

// Rollback marks the scope rolled back. It is a no-op after Commit.
func (tx *TestTx) Rollback(_ context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.committed {
		return nil
	}
	tx.rolledBack = true
	return nil
}

// IsCommitted returns true if Commit succeeded.
func (tx *TestTx) IsCommitted() bool {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return tx.committed
}

// IsRolledBack returns true if the scope was rolled back.
func (tx *TestTx) IsRolledBack() bool {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return tx.rolledBack
}

// RequestLog returns the requests executed within the scope.
func (tx *TestTx) RequestLog() []*dbtypes.Request {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return slices.Clone(tx.requestLog)
}
