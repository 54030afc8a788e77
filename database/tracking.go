package database

import (
	"github.com/gaborage/querybricks/config"
	"github.com/gaborage/querybricks/database/expression"
	"github.com/gaborage/querybricks/database/internal/tracking"
	"github.com/gaborage/querybricks/logger"
)

// TrackingOption customizes how a connection reports spans and metrics.
type TrackingOption = tracking.Option

// Re-export the tracking options and defaults as the public API
var (
	WithTracerProvider = tracking.WithTracerProvider
	WithMeterProvider  = tracking.WithMeterProvider
)

const (
	DefaultSlowQueryThreshold = tracking.DefaultSlowQueryThreshold
	DefaultMaxQueryLength     = tracking.DefaultMaxQueryLength
)

// TrackedConnection is a Connection whose requests, transactions and schema operations
// are logged, traced and measured.
type TrackedConnection struct {
	*tracking.Gateway
	compiler expression.Compiler
	conn     Connection
}

var _ Connection = (*TrackedConnection)(nil)

// Track wraps conn with performance tracking configured from cfg. Tracking an already
// tracked connection returns it unchanged.
func Track(conn Connection, log logger.Logger, cfg *config.DatabaseConfig, opts ...TrackingOption) Connection {
	if tracked, ok := conn.(*TrackedConnection); ok {
		return tracked
	}
	tracker := tracking.NewTracker(log, conn.Vendor(), cfg, opts...)
	return &TrackedConnection{
		Gateway:  tracking.NewGateway(conn, tracker),
		compiler: conn.Compiler(),
		conn:     conn,
	}
}

// Compiler returns the compiler of the wrapped connection.
func (c *TrackedConnection) Compiler() expression.Compiler {
	return c.compiler
}

// Unwrap returns the untracked connection, e.g. to reach a vendor-specific client.
func (c *TrackedConnection) Unwrap() Connection {
	return c.conn
}
