package mocks

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/querybricks/database/expression"
	"github.com/gaborage/querybricks/database/types"
)

// MockConnection provides a testify-based mock implementation of database.Connection.
// Use it when a test needs to script gateway failures the recording fake in
// database/testing cannot express, such as a failing rollback or health check.
//
// Example usage:
//
//	conn := &mocks.MockConnection{}
//	conn.ExpectVendor(types.PostgreSQL)
//	conn.ExpectCompiler(postgresql.NewCompiler())
//	conn.ExpectBegin(scope, nil)
type MockConnection struct {
	mock.Mock
}

// Execute implements types.Executor
func (m *MockConnection) Execute(ctx context.Context, req *types.Request) (*types.Result, error) {
	arguments := m.Called(ctx, req)
	if arguments.Get(0) == nil {
		return nil, arguments.Error(1)
	}
	return arguments.Get(0).(*types.Result), arguments.Error(1)
}

// Raw implements types.Executor
func (m *MockConnection) Raw(ctx context.Context, query any, args ...any) (any, error) {
	callArgs := append([]any{ctx, query}, args...)
	arguments := m.Called(callArgs...)
	return arguments.Get(0), arguments.Error(1)
}

// Vendor implements types.Executor
func (m *MockConnection) Vendor() types.Vendor {
	return m.Called().String(0)
}

// Capabilities implements types.Executor
func (m *MockConnection) Capabilities() types.CapabilitySet {
	return m.Called().Get(0).(types.CapabilitySet)
}

// Compiler implements database.Connection
func (m *MockConnection) Compiler() expression.Compiler {
	return m.Called().Get(0).(expression.Compiler)
}

// Begin implements types.Transactor
func (m *MockConnection) Begin(ctx context.Context) (types.Scope, error) {
	arguments := m.Called(ctx)
	if arguments.Get(0) == nil {
		return nil, arguments.Error(1)
	}
	return arguments.Get(0).(types.Scope), arguments.Error(1)
}

// noopWithError is shared by Health and the schema operations that take a name
func (m *MockConnection) noopWithError(method string, args ...any) error {
	return m.MethodCalled(method, args...).Error(0)
}

// Health implements types.Gateway
func (m *MockConnection) Health(ctx context.Context) error {
	return m.noopWithError("Health", ctx)
}

// Close implements types.Gateway
func (m *MockConnection) Close() error {
	return m.Called().Error(0)
}

// CreateDatabase implements types.Schema
func (m *MockConnection) CreateDatabase(ctx context.Context, name string) error {
	return m.noopWithError("CreateDatabase", ctx, name)
}

// DropDatabase implements types.Schema
func (m *MockConnection) DropDatabase(ctx context.Context, name string) error {
	return m.noopWithError("DropDatabase", ctx, name)
}

// DatabaseExists implements types.Schema
func (m *MockConnection) DatabaseExists(ctx context.Context, name string) (bool, error) {
	arguments := m.Called(ctx, name)
	return arguments.Bool(0), arguments.Error(1)
}

// CreateTable implements types.Schema
func (m *MockConnection) CreateTable(ctx context.Context, name string, columns []types.ColumnDefinition) error {
	return m.noopWithError("CreateTable", ctx, name, columns)
}

// DropTable implements types.Schema
func (m *MockConnection) DropTable(ctx context.Context, name string) error {
	return m.noopWithError("DropTable", ctx, name)
}

// AlterTable implements types.Schema
func (m *MockConnection) AlterTable(ctx context.Context, name string, changes []types.TableChange) error {
	return m.noopWithError("AlterTable", ctx, name, changes)
}

// TableExists implements types.Schema
func (m *MockConnection) TableExists(ctx context.Context, name string) (bool, error) {
	arguments := m.Called(ctx, name)
	return arguments.Bool(0), arguments.Error(1)
}

// DropAllTables implements types.Schema
func (m *MockConnection) DropAllTables(ctx context.Context) error {
	return m.noopWithError("DropAllTables", ctx)
}

// Helper methods for common testing scenarios

// ExpectVendor sets up the vendor and its default capabilities
func (m *MockConnection) ExpectVendor(vendor types.Vendor) {
	m.On("Vendor").Return(vendor).Maybe()
	m.On("Capabilities").Return(types.DefaultCapabilities(vendor)).Maybe()
}

// ExpectCompiler sets up the compiler handed to query builders
func (m *MockConnection) ExpectCompiler(c expression.Compiler) *mock.Call {
	return m.On("Compiler").Return(c).Maybe()
}

// ExpectHealthCheck sets up a health check expectation
func (m *MockConnection) ExpectHealthCheck(healthy bool) *mock.Call {
	if healthy {
		return m.On("Health", mock.Anything).Return(nil)
	}
	return m.On("Health", mock.Anything).Return(sql.ErrConnDone)
}

// ExpectExecute sets up an Execute expectation for every request of the given operation
func (m *MockConnection) ExpectExecute(op types.Operation, result *types.Result, err error) *mock.Call {
	return m.On("Execute", mock.Anything, mock.MatchedBy(func(req *types.Request) bool {
		return req != nil && req.Operation == op
	})).Return(result, err)
}

// ExpectBegin sets up a transaction expectation with the provided scope
func (m *MockConnection) ExpectBegin(scope types.Scope, err error) *mock.Call {
	return m.On("Begin", mock.Anything).Return(scope, err)
}
