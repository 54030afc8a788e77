// Package testing provides shared test utilities for querybricks.
//
// # Mocks
//
// The mocks subpackage provides testify-based mock implementations of the
// connection contracts:
//   - database.Connection (gateway, schema operations and compiler)
//   - types.Scope (transaction scopes)
//
// # Fixtures
//
// The fixtures subpackage provides pre-configured mocks for common scenarios:
//   - Connections that are healthy, failing, read-only or preloaded with rows
//   - Scopes whose commit or rollback fails
//   - Result builders for reads and writes
//
// # Containers
//
// The containers subpackage (build tag "integration") starts PostgreSQL and MongoDB
// with testcontainers and skips the test when Docker is unavailable.
//
// For request-level assertions without testify mocks, see the recording fake in
// database/testing.
package testing
