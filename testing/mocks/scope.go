package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/querybricks/database/types"
)

// MockScope provides a testify-based mock implementation of types.Scope.
// It allows for testing transaction scenarios including commit, rollback, and error conditions.
//
// Example usage:
//
//	scope := &mocks.MockScope{}
//	scope.ExpectVendor(types.PostgreSQL)
//	scope.ExpectRollback(errors.New("connection reset"))
type MockScope struct {
	mock.Mock
}

// Execute implements types.Executor
func (m *MockScope) Execute(ctx context.Context, req *types.Request) (*types.Result, error) {
	arguments := m.Called(ctx, req)
	if arguments.Get(0) == nil {
		return nil, arguments.Error(1)
	}
	return arguments.Get(0).(*types.Result), arguments.Error(1)
}

// Raw implements types.Executor
func (m *MockScope) Raw(ctx context.Context, query any, args ...any) (any, error) {
	callArgs := append([]any{ctx, query}, args...)
	arguments := m.Called(callArgs...)
	return arguments.Get(0), arguments.Error(1)
}

// Vendor implements types.Executor
func (m *MockScope) Vendor() types.Vendor {
	return m.Called().String(0)
}

// Capabilities implements types.Executor
func (m *MockScope) Capabilities() types.CapabilitySet {
	return m.Called().Get(0).(types.CapabilitySet)
}

// Commit implements types.Scope
func (m *MockScope) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Rollback implements types.Scope
func (m *MockScope) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Helper methods for common testing scenarios

// ExpectVendor sets up the vendor and its default capabilities
func (m *MockScope) ExpectVendor(vendor types.Vendor) {
	m.On("Vendor").Return(vendor).Maybe()
	m.On("Capabilities").Return(types.DefaultCapabilities(vendor)).Maybe()
}

// ExpectExecute sets up an Execute expectation for every request of the given operation
func (m *MockScope) ExpectExecute(op types.Operation, result *types.Result, err error) *mock.Call {
	return m.On("Execute", mock.Anything, mock.MatchedBy(func(req *types.Request) bool {
		return req != nil && req.Operation == op
	})).Return(result, err)
}

// ExpectCommit sets up a commit expectation with the provided error
func (m *MockScope) ExpectCommit(err error) *mock.Call {
	return m.On("Commit", mock.Anything).Return(err)
}

// ExpectRollback sets up a rollback expectation with the provided error
func (m *MockScope) ExpectRollback(err error) *mock.Call {
	return m.On("Rollback", mock.Anything).Return(err)
}

// ExpectSuccessfulTransaction sets up expectations for a transaction that commits
func (m *MockScope) ExpectSuccessfulTransaction() {
	m.ExpectCommit(nil)
}
