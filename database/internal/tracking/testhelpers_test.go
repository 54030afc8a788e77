package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/gaborage/querybricks/config"
	dbtypes "github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/logger"
	testconsts "github.com/gaborage/querybricks/testing"
)

// harness captures everything a Tracker emits.
type harness struct {
	tracker *Tracker
	logs    *bytes.Buffer
	spans   *tracetest.InMemoryExporter
	reader  *sdkmetric.ManualReader
}

func newHarness(t *testing.T, vendor string, cfg *config.DatabaseConfig) *harness {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	buf := &bytes.Buffer{}
	log := logger.NewWithWriter(buf, testconsts.TestLoggerLevelDebug, false, nil)

	return &harness{
		tracker: NewTracker(log, vendor, cfg, WithTracerProvider(tp), WithMeterProvider(mp)),
		logs:    buf,
		spans:   exporter,
		reader:  reader,
	}
}

func (h *harness) entries(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(h.logs.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func (h *harness) collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

type stubGateway struct {
	result *dbtypes.Result
	raw    any
	err    error
	stats  map[string]any

	requests []*dbtypes.Request
	scope    *stubScope
	closed   bool
	tables   map[string]bool
}

func newStubGateway() *stubGateway {
	return &stubGateway{result: &dbtypes.Result{}, tables: map[string]bool{}}
}

func (s *stubGateway) Vendor() dbtypes.Vendor { return dbtypes.PostgreSQL }

func (s *stubGateway) Capabilities() dbtypes.CapabilitySet {
	return dbtypes.DefaultCapabilities(dbtypes.PostgreSQL)
}

func (s *stubGateway) Execute(_ context.Context, req *dbtypes.Request) (*dbtypes.Result, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, dbtypes.NewQueryExecutionError(req, s.err)
	}
	return s.result, nil
}

func (s *stubGateway) Raw(context.Context, any, ...any) (any, error) {
	return s.raw, s.err
}

func (s *stubGateway) Begin(context.Context) (dbtypes.Scope, error) {
	if s.err != nil {
		return nil, dbtypes.NewTransactionError("begin", s.err)
	}
	s.scope = &stubScope{gw: s}
	return s.scope, nil
}

func (s *stubGateway) Health(context.Context) error { return s.err }

func (s *stubGateway) Close() error {
	s.closed = true
	return nil
}

func (s *stubGateway) CreateDatabase(context.Context, string) error { return dbtypes.ErrUnsupported }
func (s *stubGateway) DropDatabase(context.Context, string) error   { return dbtypes.ErrUnsupported }

func (s *stubGateway) DatabaseExists(context.Context, string) (bool, error) { return true, nil }

func (s *stubGateway) CreateTable(_ context.Context, name string, _ []dbtypes.ColumnDefinition) error {
	s.tables[name] = true
	return nil
}

func (s *stubGateway) DropTable(_ context.Context, name string) error {
	delete(s.tables, name)
	return nil
}

func (s *stubGateway) AlterTable(context.Context, string, []dbtypes.TableChange) error { return nil }

func (s *stubGateway) TableExists(_ context.Context, name string) (bool, error) {
	return s.tables[name], nil
}

func (s *stubGateway) DropAllTables(context.Context) error {
	s.tables = map[string]bool{}
	return nil
}

// statsGateway also reports pool statistics.
type statsGateway struct {
	*stubGateway
}

func (s statsGateway) Stats() map[string]any { return s.stats }

type stubScope struct {
	gw         *stubGateway
	committed  bool
	rolledBack bool
	commitErr  error
}

func (s *stubScope) Vendor() dbtypes.Vendor              { return s.gw.Vendor() }
func (s *stubScope) Capabilities() dbtypes.CapabilitySet { return s.gw.Capabilities() }

func (s *stubScope) Execute(ctx context.Context, req *dbtypes.Request) (*dbtypes.Result, error) {
	return s.gw.Execute(ctx, req)
}

func (s *stubScope) Raw(ctx context.Context, query any, args ...any) (any, error) {
	return s.gw.Raw(ctx, query, args...)
}

func (s *stubScope) Commit(context.Context) error {
	if s.commitErr != nil {
		return dbtypes.NewTransactionError("commit", s.commitErr)
	}
	s.committed = true
	return nil
}

func (s *stubScope) Rollback(context.Context) error {
	if !s.committed {
		s.rolledBack = true
	}
	return nil
}
