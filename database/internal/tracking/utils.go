package tracking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/querybricks/config"
	dbtypes "github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/logger"
)

const (
	// Default operation type for unidentified requests
	defaultOperation = "query"

	// OpenTelemetry instrumentation constants
	dbTracerName      = "querybricks/database"
	maxDBQueryAttrLen = 2000 // Maximum length for db.query.text attribute
)

// Operation describes one tracked gateway call.
type Operation struct {
	// Name is the lower-case operation (select, insert, begin, create_table, ...).
	Name  string
	Table string
	Query string
	Args  []any
}

// RequestOperation describes the execution of a compiled request.
func RequestOperation(req *dbtypes.Request) Operation {
	if req == nil {
		return Operation{Name: defaultOperation}
	}
	op := Operation{Name: string(req.Operation), Table: req.Table, Args: req.Args}
	if req.SQL != "" {
		op.Query = req.SQL
	} else {
		op.Query = req.String()
	}
	return op
}

// RawOperation describes a backend-native request.
func RawOperation(query any, args []any) Operation {
	op := Operation{Name: string(dbtypes.OpRaw), Args: args}
	if s, ok := query.(string); ok {
		op.Query = s
		if name := extractDBOperation(s); name != defaultOperation {
			op.Name = name
		}
	} else {
		op.Query = fmt.Sprintf("%+v", query)
	}
	return op
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Tracker) {
		t.tracer = tp.Tracer(dbTracerName)
	}
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(t *Tracker) {
		t.meter = mp.Meter(dbMeterName)
	}
}

// Tracker records logs, spans and metrics for the gateway calls of one connection.
type Tracker struct {
	logger   logger.Logger
	vendor   string
	settings Settings

	tracer  trace.Tracer
	meter   metric.Meter
	metrics *instruments
}

// NewTracker builds a tracker for one connection. Spans and metrics go to the global
// OpenTelemetry providers unless overridden by opts.
func NewTracker(log logger.Logger, vendor string, cfg *config.DatabaseConfig, opts ...Option) *Tracker {
	t := &Tracker{
		logger:   log,
		vendor:   vendor,
		settings: NewSettings(cfg),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.tracer == nil {
		t.tracer = otel.Tracer(dbTracerName)
	}
	if t.meter == nil {
		t.meter = otel.Meter(dbMeterName)
	}
	t.metrics = newInstruments(t.meter)
	return t
}

// Settings returns the tracking settings in effect.
func (t *Tracker) Settings() Settings {
	return t.settings
}

// Track records a completed operation.
//
// The elapsed time is added to the request-scoped DB counters, a client span is emitted
// with the real start time, and duration/error/row metrics are recorded. The log event is
// written at error level on failure, warn level when the call was slow and debug otherwise.
// rowsAffected is only meaningful for writes; pass 0 for reads.
func (t *Tracker) Track(ctx context.Context, op Operation, start time.Time, rowsAffected int64, err error) {
	if t == nil || t.logger == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if op.Name == "" {
		op.Name = extractDBOperation(op.Query)
	}

	elapsed := time.Since(start)

	logger.RecordDBRequest(ctx, elapsed)

	t.createDBSpan(ctx, op, start, err)
	t.metrics.record(ctx, t.attributes(op), elapsed, rowsAffected, err)

	fields := map[string]any{
		"vendor":      t.vendor,
		"operation":   op.Name,
		"duration_ms": elapsed.Milliseconds(),
		"duration_ns": elapsed.Nanoseconds(),
		"query":       TruncateString(op.Query, t.settings.MaxQueryLength()),
	}
	if op.Table != "" {
		fields["table"] = op.Table
	}
	if t.settings.LogQueryParameters() && len(op.Args) > 0 {
		fields["args"] = SanitizeArgs(op.Args, t.settings.MaxQueryLength())
	}
	if rowsAffected > 0 {
		fields["rows_affected"] = rowsAffected
	}
	logEvent := t.logger.WithContext(ctx).WithFields(fields)

	switch {
	case err != nil:
		logEvent.Error().Err(err).Msg("Database operation error")
	case t.settings.isSlow(elapsed):
		logEvent.Warn().Msgf("Slow database operation detected (%s)", elapsed)
	default:
		logEvent.Debug().Msg("Database operation executed")
	}
}

func (t *Tracker) attributes(op Operation) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(metricDbSystem, normalizeDBVendor(t.vendor)),
		semconv.DBOperationName(op.Name),
	}
	if op.Table != "" {
		attrs = append(attrs, semconv.DBCollectionName(op.Table))
	}
	return attrs
}

// createDBSpan creates a client span that starts at the operation's real start time.
func (t *Tracker) createDBSpan(ctx context.Context, op Operation, start time.Time, err error) {
	_, span := t.tracer.Start(ctx, "db."+op.Name,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	attrs := t.attributes(op)
	if op.Query != "" {
		attrs = append(attrs, semconv.DBQueryText(TruncateString(op.Query, maxDBQueryAttrLen)))
	}
	span.SetAttributes(attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

// TruncateString truncates value to at most maxLen runes, adding "..." when space allows.
// A non-positive maxLen leaves value unchanged; for maxLen <= 3 no ellipsis is added.
func TruncateString(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	r := []rune(value)
	if len(r) <= maxLen {
		return value
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SanitizeArgs returns a copy of args suitable for logging.
// Strings are truncated, byte slices become "<bytes len=N>" and everything else is
// formatted with %v and truncated. Empty input yields nil.
func SanitizeArgs(args []any, maxLen int) []any {
	if len(args) == 0 {
		return nil
	}
	sanitized := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			sanitized[i] = TruncateString(v, maxLen)
		case []byte:
			sanitized[i] = fmt.Sprintf("<bytes len=%d>", len(v))
		default:
			sanitized[i] = TruncateString(fmt.Sprintf("%v", v), maxLen)
		}
	}
	return sanitized
}

// extractDBOperation extracts the lower-case statement keyword of a raw SQL query.
func extractDBOperation(query string) string {
	parts := strings.Fields(query)
	if len(parts) == 0 {
		return defaultOperation
	}

	operation := strings.ToLower(parts[0])
	switch operation {
	case "select", "insert", "update", "delete", "create", "drop", "alter", "truncate", "pragma", "set":
		return operation
	default:
		return defaultOperation
	}
}

// normalizeDBVendor maps vendor names onto OpenTelemetry db.system values.
func normalizeDBVendor(vendor string) string {
	vendor = strings.ToLower(vendor)
	switch vendor {
	case "postgres", dbtypes.PostgreSQL:
		return dbtypes.PostgreSQL
	case dbtypes.Oracle:
		return dbtypes.Oracle
	case "mongo", dbtypes.MongoDB:
		return dbtypes.MongoDB
	case "mariadb", dbtypes.MySQL:
		return dbtypes.MySQL
	case "sqlite3", dbtypes.SQLite:
		return dbtypes.SQLite
	default:
		return vendor
	}
}
