package fixtures

import (
	"database/sql"
	"errors"

	"github.com/stretchr/testify/mock"

	dbtesting "github.com/gaborage/querybricks/database/testing"
	"github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/testing/mocks"
)

// DatabaseFixtures provides helper functions for creating pre-configured connection mocks
// and result builders for consistent testing.

// ErrReadOnly is returned by NewReadOnlyConnection for every write.
var ErrReadOnly = errors.New("database is read-only")

// NewHealthyConnection creates a mock connection for vendor that compiles with the
// vendor's real compiler, passes health checks and closes cleanly.
func NewHealthyConnection(vendor types.Vendor) *mocks.MockConnection {
	conn := &mocks.MockConnection{}
	conn.ExpectVendor(vendor)
	conn.ExpectCompiler(dbtesting.NewTestDB(vendor).Compiler())
	conn.ExpectHealthCheck(true).Maybe()
	conn.On("Close").Return(nil).Maybe()
	return conn
}

// NewFailingConnection creates a mock connection whose requests, transactions and health
// checks all fail with err. A nil err defaults to sql.ErrConnDone.
func NewFailingConnection(vendor types.Vendor, err error) *mocks.MockConnection {
	if err == nil {
		err = sql.ErrConnDone
	}

	conn := &mocks.MockConnection{}
	conn.ExpectVendor(vendor)
	conn.ExpectCompiler(dbtesting.NewTestDB(vendor).Compiler())
	conn.On("Health", mock.Anything).Return(err).Maybe()
	conn.On("Execute", mock.Anything, mock.Anything).Return(nil, types.NewQueryExecutionError(nil, err)).Maybe()
	conn.On("Raw", mock.Anything, mock.Anything).Return(nil, err).Maybe()
	conn.ExpectBegin(nil, err).Maybe()
	return conn
}

// NewConnectionWithRows creates a healthy mock connection that answers every select on
// table with rows.
//
// Example:
//
//	conn := fixtures.NewConnectionWithRows(types.PostgreSQL, "users",
//	  types.Row{"id": int64(1), "name": "John"},
//	  types.Row{"id": int64(2), "name": "Jane"},
//	)
func NewConnectionWithRows(vendor types.Vendor, table string, rows ...types.Row) *mocks.MockConnection {
	conn := NewHealthyConnection(vendor)
	conn.On("Execute", mock.Anything, mock.MatchedBy(func(req *types.Request) bool {
		return req != nil && req.Operation == types.OpSelect && req.Table == table
	})).Return(NewRowsResult(rows...), nil)
	return conn
}

// NewReadOnlyConnection creates a mock connection whose reads return no rows and whose
// writes and transactions fail with ErrReadOnly.
func NewReadOnlyConnection(vendor types.Vendor) *mocks.MockConnection {
	conn := NewHealthyConnection(vendor)
	conn.On("Execute", mock.Anything, mock.MatchedBy(func(req *types.Request) bool {
		return req != nil && req.Operation.Reads()
	})).Return(NewRowsResult(), nil).Maybe()
	conn.On("Execute", mock.Anything, mock.Anything).Return(nil, ErrReadOnly).Maybe()
	conn.ExpectBegin(nil, ErrReadOnly).Maybe()
	return conn
}

// Result Builders

// NewRowsResult creates a read result carrying rows.
func NewRowsResult(rows ...types.Row) *types.Result {
	if rows == nil {
		rows = []types.Row{}
	}
	return &types.Result{Rows: rows, RowsAffected: int64(len(rows))}
}

// NewWriteResult creates a write result, e.g. fixtures.NewWriteResult(1, 5) for
// lastInsertID=1, rowsAffected=5. A zero lastInsertID reports no insert id.
func NewWriteResult(lastInsertID, rowsAffected int64) *types.Result {
	return &types.Result{
		RowsAffected:    rowsAffected,
		LastInsertID:    lastInsertID,
		HasLastInsertID: lastInsertID != 0,
	}
}

// Scope Helpers

// NewSuccessfulScope creates a mock scope that commits and accepts any request.
func NewSuccessfulScope(vendor types.Vendor) *mocks.MockScope {
	scope := &mocks.MockScope{}
	scope.ExpectVendor(vendor)
	scope.ExpectSuccessfulTransaction()
	scope.On("Execute", mock.Anything, mock.Anything).Return(NewWriteResult(0, 1), nil).Maybe()
	return scope
}

// NewFailedCommitScope creates a mock scope whose commit fails with commitErr.
func NewFailedCommitScope(vendor types.Vendor, commitErr error) *mocks.MockScope {
	if commitErr == nil {
		commitErr = errors.New("transaction commit failed")
	}

	scope := &mocks.MockScope{}
	scope.ExpectVendor(vendor)
	scope.ExpectCommit(commitErr)
	scope.On("Execute", mock.Anything, mock.Anything).Return(NewWriteResult(0, 1), nil).Maybe()
	return scope
}

// NewFailedRollbackScope creates a mock scope whose rollback fails with rollbackErr.
func NewFailedRollbackScope(vendor types.Vendor, rollbackErr error) *mocks.MockScope {
	if rollbackErr == nil {
		rollbackErr = sql.ErrTxDone
	}

	scope := &mocks.MockScope{}
	scope.ExpectVendor(vendor)
	scope.ExpectRollback(rollbackErr)
	scope.On("Execute", mock.Anything, mock.Anything).Return(NewWriteResult(0, 1), nil).Maybe()
	return scope
}
