package tracking

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Meter name for database metrics instrumentation
	dbMeterName = "querybricks/database"

	metricDBDuration   = "db.client.operation.duration"
	metricDBErrors     = "db.client.operation.errors"
	metricRowsAffected = "db.rows.affected"

	// Connection pool metrics
	metricPoolActive = "db.connection.pool.active"
	metricPoolIdle   = "db.connection.pool.idle"
	metricPoolTotal  = "db.connection.pool.total"

	metricDbSystem = "db.system"
)

// logMetricError logs a metric registration error to stderr. Metrics failures never
// break request execution.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", metricName, err)
	}
}

type instruments struct {
	meter    metric.Meter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	rows     metric.Int64Counter
}

func newInstruments(meter metric.Meter) *instruments {
	in := &instruments{meter: meter}

	var err error
	in.duration, err = meter.Float64Histogram(
		metricDBDuration,
		metric.WithDescription("Duration of database operations in milliseconds"),
		metric.WithUnit("ms"),
	)
	logMetricError(metricDBDuration, err)

	in.errors, err = meter.Int64Counter(
		metricDBErrors,
		metric.WithDescription("Number of failed database operations"),
	)
	logMetricError(metricDBErrors, err)

	in.rows, err = meter.Int64Counter(
		metricRowsAffected,
		metric.WithDescription("Number of rows affected by database operations"),
	)
	logMetricError(metricRowsAffected, err)

	return in
}

// record emits the duration histogram for every call, the error counter for failed
// calls and the rows counter for successful writes.
func (in *instruments) record(ctx context.Context, attrs []attribute.KeyValue, duration time.Duration, rowsAffected int64, err error) {
	if in == nil {
		return
	}
	opt := metric.WithAttributes(attrs...)

	if in.duration != nil {
		in.duration.Record(ctx, float64(duration.Nanoseconds())/1e6, opt)
	}
	if err != nil {
		if in.errors != nil {
			in.errors.Add(ctx, 1, opt)
		}
		return
	}
	if in.rows != nil && rowsAffected > 0 {
		in.rows.Add(ctx, rowsAffected, opt)
	}
}

// StatsSource exposes pool statistics; SQL gateways implement it.
type StatsSource interface {
	Stats() map[string]any
}

// asInt64 converts the numeric kinds drivers put into stats maps.
//
//nolint:gocyclo // Type switch for numeric conversion requires many cases by nature
func asInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		if uint64(val) <= math.MaxInt64 {
			return int64(val), true
		}
		return 0, false
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val), true
		}
		return 0, false
	case float32:
		return int64(val), true
	case float64:
		return int64(val), true
	default:
		return 0, false
	}
}

// extractPoolStats returns in-use, idle and max-open connection counts.
func extractPoolStats(stats map[string]any) (inUse, idle, maxOpen int64) {
	if val, ok := asInt64(stats["in_use"]); ok {
		inUse = val
	}
	if val, ok := asInt64(stats["idle"]); ok {
		idle = val
	}
	if val, ok := asInt64(stats["max_open_connections"]); ok {
		maxOpen = val
	}
	return
}

type poolMetricsRegistration struct {
	src         StatsSource
	activeGauge metric.Int64ObservableGauge
	idleGauge   metric.Int64ObservableGauge
	totalGauge  metric.Int64ObservableGauge
	attrs       []attribute.KeyValue
}

func (r *poolMetricsRegistration) observePoolStats(_ context.Context, observer metric.Observer) error {
	stats := r.src.Stats()
	if stats == nil {
		return nil
	}

	inUse, idle, maxOpen := extractPoolStats(stats)
	opt := metric.WithAttributes(r.attrs...)
	observer.ObserveInt64(r.activeGauge, inUse, opt)
	observer.ObserveInt64(r.idleGauge, idle, opt)
	observer.ObserveInt64(r.totalGauge, maxOpen, opt)
	return nil
}

// RegisterPoolMetrics registers observable gauges reading src on every collection:
// db.connection.pool.active, db.connection.pool.idle and db.connection.pool.total.
// The returned function unregisters the callback.
func (t *Tracker) RegisterPoolMetrics(src StatsSource) func() {
	noop := func() {}
	if t == nil || t.meter == nil || src == nil {
		return noop
	}
	meter := t.meter

	reg := &poolMetricsRegistration{
		src:   src,
		attrs: []attribute.KeyValue{attribute.String(metricDbSystem, normalizeDBVendor(t.vendor))},
	}

	var err error
	if reg.activeGauge, err = meter.Int64ObservableGauge(metricPoolActive,
		metric.WithDescription("Number of active database connections")); err != nil {
		logMetricError(metricPoolActive, err)
		return noop
	}
	if reg.idleGauge, err = meter.Int64ObservableGauge(metricPoolIdle,
		metric.WithDescription("Number of idle database connections")); err != nil {
		logMetricError(metricPoolIdle, err)
		return noop
	}
	if reg.totalGauge, err = meter.Int64ObservableGauge(metricPoolTotal,
		metric.WithDescription("Maximum number of database connections configured")); err != nil {
		logMetricError(metricPoolTotal, err)
		return noop
	}

	registration, err := meter.RegisterCallback(reg.observePoolStats, reg.activeGauge, reg.idleGauge, reg.totalGauge)
	if err != nil {
		logMetricError("pool_metrics_callback", err)
		return noop
	}

	return func() {
		if err := registration.Unregister(); err != nil {
			logMetricError("pool_metrics_unregister", err)
		}
	}
}
