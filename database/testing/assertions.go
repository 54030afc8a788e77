package testing

import (
	"fmt"
	"strings"
	"testing"

	dbtypes "github.com/gaborage/querybricks/database/types"
)

// AssertRequestExecuted asserts that a request of op matching the SQL pattern was executed
// on the TestDB. Uses partial matching by default (can be changed with db.StrictSQLMatching()).
// An empty pattern matches any request of op.
//
// Example:
//
//	db := NewTestDB(dbtypes.PostgreSQL)
//	// ... execute test code ...
//	AssertRequestExecuted(t, db, dbtypes.OpSelect, `FROM "users"`)
func AssertRequestExecuted(t *testing.T, db *TestDB, op dbtypes.Operation, sqlPattern string) {
	t.Helper()
	log := db.RequestLog()
	for _, call := range log {
		if db.callMatches(call, op, sqlPattern) {
			return
		}
	}

	t.Errorf("expected %s request not executed: %q\nActual requests:\n%s",
		op, sqlPattern, formatRequestLog(log))
}

// AssertRequestNotExecuted asserts that no request of op matching the SQL pattern was executed.
//
// Example:
//
//	db := NewTestDB(dbtypes.PostgreSQL)
//	// ... execute test code ...
//	AssertRequestNotExecuted(t, db, dbtypes.OpDelete, "")
func AssertRequestNotExecuted(t *testing.T, db *TestDB, op dbtypes.Operation, sqlPattern string) {
	t.Helper()
	for _, call := range db.RequestLog() {
		if db.callMatches(call, op, sqlPattern) {
			t.Errorf("unexpected %s request executed: %q\nRequest: %s",
				op, sqlPattern, call.Request)
			return
		}
	}
}

// AssertRequestCount asserts that exactly N requests of op matching the SQL pattern were executed.
//
// Example:
//
//	db := NewTestDB(dbtypes.PostgreSQL)
//	// ... execute test code that should read twice ...
//	AssertRequestCount(t, db, dbtypes.OpSelect, "", 2)
func AssertRequestCount(t *testing.T, db *TestDB, op dbtypes.Operation, sqlPattern string, expected int) {
	t.Helper()
	log := db.RequestLog()
	count := 0
	for _, call := range log {
		if db.callMatches(call, op, sqlPattern) {
			count++
		}
	}

	if count != expected {
		t.Errorf("expected %d %s requests matching %q, got %d\nActual requests:\n%s",
			expected, op, sqlPattern, count, formatRequestLog(log))
	}
}

// AssertNoRequests asserts that nothing reached the backend, e.g. because a structural
// error was raised first.
func AssertNoRequests(t *testing.T, db *TestDB) {
	t.Helper()
	if log := db.RequestLog(); len(log) > 0 {
		t.Errorf("expected no requests, got %d\nActual requests:\n%s", len(log), formatRequestLog(log))
	}
}

// AssertCommitted asserts that the transaction was committed.
//
// Example:
//
//	tx := db.ExpectTransaction()
//	// ... execute test code ...
//	AssertCommitted(t, tx)
func AssertCommitted(t *testing.T, tx *TestTx) {
	t.Helper()
	if !tx.IsCommitted() {
		t.Errorf("expected transaction to be committed, but it was not\nRolled back: %v",
			tx.IsRolledBack())
	}
}

// AssertRolledBack asserts that the transaction was rolled back.
//
// Example:
//
//	tx := db.ExpectTransaction()
//	// ... execute test code that should fail and rollback ...
//	AssertRolledBack(t, tx)
func AssertRolledBack(t *testing.T, tx *TestTx) {
	t.Helper()
	if !tx.IsRolledBack() {
		t.Errorf("expected transaction to be rolled back, but it was not\nCommitted: %v",
			tx.IsCommitted())
	}
}

// AssertTransactionCommitted asserts that the last transaction started on the TestDB
// was committed.
func AssertTransactionCommitted(t *testing.T, db *TestDB) {
	t.Helper()
	txs := db.Transactions()
	if len(txs) == 0 {
		t.Error("no transaction was started")
		return
	}
	AssertCommitted(t, txs[len(txs)-1])
}

// AssertTransactionRolledBack asserts that the last transaction started on the TestDB
// was rolled back.
func AssertTransactionRolledBack(t *testing.T, db *TestDB) {
	t.Helper()
	txs := db.Transactions()
	if len(txs) == 0 {
		t.Error("no transaction was started")
		return
	}
	AssertRolledBack(t, txs[len(txs)-1])
}

// AssertNoTransaction asserts that no transaction was started on the TestDB.
func AssertNoTransaction(t *testing.T, db *TestDB) {
	t.Helper()
	if txs := db.Transactions(); len(txs) > 0 {
		t.Errorf("expected no transaction, got %d", len(txs))
	}
}

func (db *TestDB) callMatches(call RequestCall, op dbtypes.Operation, sqlPattern string) bool {
	if call.Request.Operation != op {
		return false
	}
	return sqlPattern == "" || db.matchSQL(sqlPattern, requestText(call.Request))
}

// formatRequestLog formats the request log for error messages.
func formatRequestLog(log []RequestCall) string {
	if len(log) == 0 {
		return "  (no requests executed)"
	}

	var sb strings.Builder
	for i, call := range log {
		fmt.Fprintf(&sb, "  %d. [%s] %s\n", i+1, call.Request.Operation, requestText(call.Request))
		if len(call.Request.Args) > 0 {
			fmt.Fprintf(&sb, "     Args: %v\n", call.Request.Args)
		}
	}
	return sb.String()
}
