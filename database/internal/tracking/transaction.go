package tracking

import (
	"context"
	"time"

	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Scope wraps a transaction scope so requests, commit and rollback are tracked
// like the requests of the owning gateway.
type Scope struct {
	inner   dbtypes.Scope
	tracker *Tracker
}

var _ dbtypes.Scope = (*Scope)(nil)

// NewScope wraps a scope started outside a tracked gateway.
func NewScope(inner dbtypes.Scope, tracker *Tracker) *Scope {
	return &Scope{inner: inner, tracker: tracker}
}

func (s *Scope) Vendor() dbtypes.Vendor {
	return s.inner.Vendor()
}

func (s *Scope) Capabilities() dbtypes.CapabilitySet {
	return s.inner.Capabilities()
}

// Execute runs a compiled request within the transaction with performance tracking
func (s *Scope) Execute(ctx context.Context, req *dbtypes.Request) (*dbtypes.Result, error) {
	return trackExecute(ctx, s.tracker, s.inner, req)
}

// Raw runs a backend-native request within the transaction with performance tracking
func (s *Scope) Raw(ctx context.Context, query any, args ...any) (any, error) {
	return trackRaw(ctx, s.tracker, s.inner, query, args)
}

// Commit commits the transaction with performance tracking
func (s *Scope) Commit(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Commit(ctx)
	s.tracker.Track(ctx, Operation{Name: "commit", Query: "COMMIT"}, start, 0, err)
	return err
}

// Rollback rolls back the transaction with performance tracking
func (s *Scope) Rollback(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Rollback(ctx)
	s.tracker.Track(ctx, Operation{Name: "rollback", Query: "ROLLBACK"}, start, 0, err)
	return err
}
