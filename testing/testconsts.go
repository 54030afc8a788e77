package testing

import "time"

// Logger Constants
// These constants define common logger configurations used across test files.
const (
	// TestLoggerLevelDebug is the debug log level used in most tests
	TestLoggerLevelDebug = "debug"
	// TestLoggerLevelError is the error log level for tests requiring minimal output
	TestLoggerLevelError = "error"
	// TestLoggerLevelDisabled completely disables logging in tests
	TestLoggerLevelDisabled = "disabled"
)

// Database Constants
// Common database-related test strings (table names, credentials, connection names).
const (
	TestTableUsers      = "users"
	TestTablePosts      = "posts"
	TestUsername        = "testuser"
	TestDatabaseName    = "testdb"
	TestHostLocalhost   = "localhost"
	TestPasswordDefault = "testpass"
	TestConnectionName  = "default"
)

// Test User Data
// Common test user data used across multiple test suites.
const (
	TestNameAlice = "Alice"
	TestNameBob   = "Bob"
)

// Time Duration Constants
// Common time durations used in test synchronization and timeouts.
const (
	// TestEventuallyTimeout is the timeout for require.Eventually assertions (500ms)
	TestEventuallyTimeout = 500 * time.Millisecond
	// TestEventuallyTick is the polling interval for require.Eventually (50ms)
	TestEventuallyTick = 50 * time.Millisecond
)
