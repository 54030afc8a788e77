// Package types contains the core database contracts for querybricks.
//
//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import "context"

// Executor runs compiled requests. It is implemented by gateways and by transaction scopes,
// so a builder bound to a scope executes exactly like one bound to a connection.
//
// Executor is designed for easy mocking in unit tests; see database/testing for a
// recording fake that scripts results per request.
type Executor interface {
	// Execute runs a compiled request. Backend failures are returned as
	// *QueryExecutionError carrying the request.
	Execute(ctx context.Context, req *Request) (*Result, error)

	// Raw runs a backend-native request and returns the backend-native result
	// (rows as []Row for SQL backends, a decoded document for document stores).
	// The caller owns injection safety for query and args.
	Raw(ctx context.Context, query any, args ...any) (any, error)

	// Vendor returns the backend identifier.
	Vendor() Vendor

	// Capabilities returns the declared feature set of the backend.
	Capabilities() CapabilitySet
}
