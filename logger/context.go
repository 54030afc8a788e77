package logger

import (
	"context"
	"sync/atomic"
	"time"
)

type contextKey string

const dbStatsKey contextKey = "db_request_stats"

// DBStats accumulates the database requests executed under one context.
// It is safe for concurrent use.
type DBStats struct {
	requests atomic.Int64
	elapsed  atomic.Int64
}

// Requests returns how many requests were recorded.
func (s *DBStats) Requests() int64 {
	if s == nil {
		return 0
	}
	return s.requests.Load()
}

// Elapsed returns the summed request duration.
func (s *DBStats) Elapsed() time.Duration {
	if s == nil {
		return 0
	}
	return time.Duration(s.elapsed.Load())
}

// WithDBStats returns a context that accumulates request counts and durations, along with
// the accumulator itself. An existing accumulator on ctx is reused.
func WithDBStats(ctx context.Context) (context.Context, *DBStats) {
	if s := DBStatsFromContext(ctx); s != nil {
		return ctx, s
	}
	s := &DBStats{}
	return context.WithValue(ctx, dbStatsKey, s), s
}

// DBStatsFromContext returns nil when ctx carries no accumulator.
func DBStatsFromContext(ctx context.Context) *DBStats {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(dbStatsKey).(*DBStats)
	return s
}

// RecordDBRequest adds one request of duration elapsed to the accumulator on ctx, if any.
func RecordDBRequest(ctx context.Context, elapsed time.Duration) {
	if s := DBStatsFromContext(ctx); s != nil {
		s.requests.Add(1)
		s.elapsed.Add(int64(elapsed))
	}
}
