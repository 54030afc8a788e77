package tracking

import (
	"context"
	"time"

	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Gateway wraps a dbtypes.Gateway and tracks every request, transaction step and
// schema operation that goes through it.
type Gateway struct {
	inner   dbtypes.Gateway
	tracker *Tracker

	unregisterPool func()
}

var _ dbtypes.Gateway = (*Gateway)(nil)

// NewGateway wraps inner. When inner exposes pool statistics they are reported as
// observable gauges until Close.
func NewGateway(inner dbtypes.Gateway, tracker *Tracker) *Gateway {
	g := &Gateway{inner: inner, tracker: tracker, unregisterPool: func() {}}
	if src, ok := inner.(StatsSource); ok {
		g.unregisterPool = tracker.RegisterPoolMetrics(src)
	}
	return g
}

// Unwrap returns the tracked gateway.
func (g *Gateway) Unwrap() dbtypes.Gateway {
	return g.inner
}

// Tracker returns the tracker shared by the gateway and its scopes.
func (g *Gateway) Tracker() *Tracker {
	return g.tracker
}

func (g *Gateway) Vendor() dbtypes.Vendor {
	return g.inner.Vendor()
}

func (g *Gateway) Capabilities() dbtypes.CapabilitySet {
	return g.inner.Capabilities()
}

// Execute runs a compiled request and tracks it
func (g *Gateway) Execute(ctx context.Context, req *dbtypes.Request) (*dbtypes.Result, error) {
	return trackExecute(ctx, g.tracker, g.inner, req)
}

// Raw runs a backend-native request and tracks it
func (g *Gateway) Raw(ctx context.Context, query any, args ...any) (any, error) {
	return trackRaw(ctx, g.tracker, g.inner, query, args)
}

// Begin starts a tracked transaction scope.
func (g *Gateway) Begin(ctx context.Context) (dbtypes.Scope, error) {
	start := time.Now()
	scope, err := g.inner.Begin(ctx)
	g.tracker.Track(ctx, Operation{Name: "begin", Query: "BEGIN"}, start, 0, err)
	if err != nil {
		return nil, err
	}
	return &Scope{inner: scope, tracker: g.tracker}, nil
}

func (g *Gateway) Health(ctx context.Context) error {
	return g.inner.Health(ctx)
}

// Stats returns the pool statistics of the wrapped gateway, or nil if it has none.
func (g *Gateway) Stats() map[string]any {
	if src, ok := g.inner.(StatsSource); ok {
		return src.Stats()
	}
	return nil
}

// Close unregisters pool metrics and closes the wrapped gateway.
func (g *Gateway) Close() error {
	g.unregisterPool()
	return g.inner.Close()
}

func (g *Gateway) CreateDatabase(ctx context.Context, name string) error {
	return g.trackSchema(ctx, "create_database", "", func() error { return g.inner.CreateDatabase(ctx, name) })
}

func (g *Gateway) DropDatabase(ctx context.Context, name string) error {
	return g.trackSchema(ctx, "drop_database", "", func() error { return g.inner.DropDatabase(ctx, name) })
}

func (g *Gateway) DatabaseExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := g.trackSchema(ctx, "database_exists", "", func() (err error) {
		exists, err = g.inner.DatabaseExists(ctx, name)
		return err
	})
	return exists, err
}

func (g *Gateway) CreateTable(ctx context.Context, name string, columns []dbtypes.ColumnDefinition) error {
	return g.trackSchema(ctx, "create_table", name, func() error { return g.inner.CreateTable(ctx, name, columns) })
}

func (g *Gateway) DropTable(ctx context.Context, name string) error {
	return g.trackSchema(ctx, "drop_table", name, func() error { return g.inner.DropTable(ctx, name) })
}

func (g *Gateway) AlterTable(ctx context.Context, name string, changes []dbtypes.TableChange) error {
	return g.trackSchema(ctx, "alter_table", name, func() error { return g.inner.AlterTable(ctx, name, changes) })
}

func (g *Gateway) TableExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := g.trackSchema(ctx, "table_exists", name, func() (err error) {
		exists, err = g.inner.TableExists(ctx, name)
		return err
	})
	return exists, err
}

func (g *Gateway) DropAllTables(ctx context.Context) error {
	return g.trackSchema(ctx, "drop_all_tables", "", func() error { return g.inner.DropAllTables(ctx) })
}

func (g *Gateway) trackSchema(ctx context.Context, op, table string, fn func() error) error {
	start := time.Now()
	err := fn()
	g.tracker.Track(ctx, Operation{Name: op, Table: table}, start, 0, err)
	return err
}

func trackExecute(ctx context.Context, tracker *Tracker, exec dbtypes.Executor, req *dbtypes.Request) (*dbtypes.Result, error) {
	start := time.Now()
	res, err := exec.Execute(ctx, req)

	var rows int64
	if err == nil && res != nil && req != nil && !req.Operation.Reads() {
		rows = res.RowsAffected
	}
	tracker.Track(ctx, RequestOperation(req), start, rows, err)
	return res, err
}

func trackRaw(ctx context.Context, tracker *Tracker, exec dbtypes.Executor, query any, args []any) (any, error) {
	start := time.Now()
	out, err := exec.Raw(ctx, query, args...)
	tracker.Track(ctx, RawOperation(query, args), start, 0, err)
	return out, err
}
