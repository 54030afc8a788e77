package database

import (
	"context"
	"sync"

	"github.com/gaborage/querybricks/database/expression"
	"github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/logger"
	testconsts "github.com/gaborage/querybricks/testing"
)

// newErrorTestLogger creates an error-level logger for manager tests.
// Used when testing error conditions where only error logs should appear.
func newErrorTestLogger() logger.Logger {
	return logger.New(testconsts.TestLoggerLevelError, false)
}

// stubConn is a minimal Connection that only records Close.
type stubConn struct {
	key      string
	vendor   types.Vendor
	closedMu sync.Mutex
	closed   bool
	onClosed func(string)
}

var _ Connection = (*stubConn)(nil)

func (s *stubConn) Execute(context.Context, *types.Request) (*types.Result, error) {
	return &types.Result{}, nil
}
func (s *stubConn) Raw(context.Context, any, ...any) (any, error) { return nil, nil }
func (s *stubConn) Vendor() types.Vendor                          { return s.vendor }
func (s *stubConn) Capabilities() types.CapabilitySet {
	return types.DefaultCapabilities(s.vendor)
}
func (s *stubConn) Compiler() expression.Compiler                        { return nil }
func (s *stubConn) Begin(context.Context) (types.Scope, error)           { return nil, types.ErrUnsupported }
func (s *stubConn) Health(context.Context) error                         { return nil }
func (s *stubConn) CreateDatabase(context.Context, string) error         { return nil }
func (s *stubConn) DropDatabase(context.Context, string) error           { return nil }
func (s *stubConn) DatabaseExists(context.Context, string) (bool, error) { return false, nil }
func (s *stubConn) CreateTable(context.Context, string, []types.ColumnDefinition) error {
	return nil
}
func (s *stubConn) DropTable(context.Context, string) error { return nil }
func (s *stubConn) AlterTable(context.Context, string, []types.TableChange) error {
	return nil
}
func (s *stubConn) TableExists(context.Context, string) (bool, error) { return false, nil }
func (s *stubConn) DropAllTables(context.Context) error               { return nil }

func (s *stubConn) Close() error {
	s.closedMu.Lock()
	s.closed = true
	callback := s.onClosed
	key := s.key
	s.closedMu.Unlock()
	if callback != nil {
		callback(key)
	}
	return nil
}
