// Package testing provides an in-memory fake connection for unit tests of code built on
// the query builder. It follows the fluent expectation style of the database test helpers:
// script what each request returns, run the code under test, then assert on the recorded
// requests.
//
// The primary type is TestDB, which implements database.Connection. It compiles with the
// real compiler of its vendor, so recorded requests carry the exact SQL (or MongoDB command)
// a live connection would receive. Use TestDB for unit tests where you want to verify
// what reaches the backend without running one.
//
// For integration tests requiring actual database behavior, see the container helpers
// which wrap testcontainers for PostgreSQL and MongoDB, or open an in-memory SQLite
// connection.
package testing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gaborage/querybricks/database"
	"github.com/gaborage/querybricks/database/expression"
	"github.com/gaborage/querybricks/database/internal/builder"
	"github.com/gaborage/querybricks/database/mongodb"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// ErrUnexpectedRequest is returned for requests no expectation matches.
var ErrUnexpectedRequest = errors.New("unexpected request")

// TestDB is an in-memory fake connection.
// It provides a fluent API for setting up expectations and records every call for assertions.
//
// TestDB supports two SQL matching modes:
//   - Partial matching (default): Matches if expected SQL is a substring of actual SQL
//   - Strict matching: Requires exact SQL match (enable with StrictSQLMatching())
//
// Reads with no matching expectation return no rows, writes report zero affected rows.
// Call Strict() to turn unmatched requests into ErrUnexpectedRequest instead.
//
// Usage example:
//
//	db := NewTestDB(dbtypes.PostgreSQL)
//	db.ExpectSelect("users").
//	    WillReturnRows(NewRowSet("id", "name").AddRow(1, "Alice"))
//	db.ExpectInsert("users").WithSQL("RETURNING").
//	    WillReturnRows(NewRowSet("id", "name").AddRow(2, "Bob"))
//
//	users := orm.NewBuilder[*User](db)
//
// For assertion helpers, see AssertRequestExecuted and AssertTransactionCommitted.
type TestDB struct {
	vendor   dbtypes.Vendor
	compiler expression.Compiler
	caps     dbtypes.CapabilitySet

	expectations []*Expectation
	raws         []*RawExpectation
	requestLog   []RequestCall
	rawLog       []RawCall
	strictMatch  bool
	strict       bool

	txExpectations      []*TestTx
	startedTransactions []*TestTx

	databases map[string]bool
	tables    map[string][]dbtypes.ColumnDefinition
	schemaLog []SchemaCall

	healthErr error
	closed    bool
	mu        sync.RWMutex
}

var _ database.Connection = (*TestDB)(nil)

// RequestCall represents a single Execute invocation.
type RequestCall struct {
	Request *dbtypes.Request
	// InTransaction is set when the request ran on a TestTx scope.
	InTransaction bool
}

// RawCall represents a single Raw invocation.
type RawCall struct {
	Query         any
	Args          []any
	InTransaction bool
}

// SchemaCall represents a single DDL invocation.
type SchemaCall struct {
	Op   string
	Name string
}

// Expectation scripts the result of requests matching an operation and table.
type Expectation struct {
	db        *TestDB
	operation dbtypes.Operation
	table     string
	sql       string
	rows      *RowSet
	result    dbtypes.Result
	err       error
	times     int
	calls     int
}

// RawExpectation scripts the result of Raw calls.
type RawExpectation struct {
	db      *TestDB
	pattern string
	result  any
	err     error
}

// NewTestDB creates a fake connection for vendor. Unknown vendors fall back to PostgreSQL.
func NewTestDB(vendor dbtypes.Vendor) *TestDB {
	var compiler expression.Compiler
	switch vendor {
	case dbtypes.MongoDB:
		compiler = mongodb.NewCompiler()
	case dbtypes.PostgreSQL, dbtypes.MySQL, dbtypes.SQLite, dbtypes.Oracle:
		compiler = builder.MustCompiler(vendor)
	default:
		vendor = dbtypes.PostgreSQL
		compiler = builder.MustCompiler(vendor)
	}

	return &TestDB{
		vendor:    vendor,
		compiler:  compiler,
		caps:      dbtypes.DefaultCapabilities(vendor),
		databases: make(map[string]bool),
		tables:    make(map[string][]dbtypes.ColumnDefinition),
	}
}

// StrictSQLMatching enables exact SQL matching instead of substring matching.
func (db *TestDB) StrictSQLMatching() *TestDB {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.strictMatch = true
	return db
}

// Strict makes requests without a matching expectation fail with ErrUnexpectedRequest.
func (db *TestDB) Strict() *TestDB {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.strict = true
	return db
}

// WithCapabilities replaces the declared capability set, e.g. to exercise the re-fetch
// path of inserts on a vendor that normally supports RETURNING.
func (db *TestDB) WithCapabilities(caps ...dbtypes.Capability) *TestDB {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.caps = dbtypes.NewCapabilitySet(caps...)
	return db
}

// WithHealthError makes Health return err.
func (db *TestDB) WithHealthError(err error) *TestDB {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.healthErr = err
	return db
}

// Expect registers an expectation for requests of op on table. An empty table matches
// any table. Expectations are matched in registration order; the first match wins.
func (db *TestDB) Expect(op dbtypes.Operation, table string) *Expectation {
	db.mu.Lock()
	defer db.mu.Unlock()
	e := &Expectation{db: db, operation: op, table: table}
	db.expectations = append(db.expectations, e)
	return e
}

// ExpectSelect is shorthand for Expect(dbtypes.OpSelect, table).
func (db *TestDB) ExpectSelect(table string) *Expectation {
	return db.Expect(dbtypes.OpSelect, table)
}

// ExpectAggregate is shorthand for Expect(dbtypes.OpAggregate, table).
func (db *TestDB) ExpectAggregate(table string) *Expectation {
	return db.Expect(dbtypes.OpAggregate, table)
}

// ExpectInsert is shorthand for Expect(dbtypes.OpInsert, table).
func (db *TestDB) ExpectInsert(table string) *Expectation {
	return db.Expect(dbtypes.OpInsert, table)
}

// ExpectUpdate is shorthand for Expect(dbtypes.OpUpdate, table).
func (db *TestDB) ExpectUpdate(table string) *Expectation {
	return db.Expect(dbtypes.OpUpdate, table)
}

// ExpectDelete is shorthand for Expect(dbtypes.OpDelete, table).
func (db *TestDB) ExpectDelete(table string) *Expectation {
	return db.Expect(dbtypes.OpDelete, table)
}

// ExpectRaw registers an expectation for Raw calls whose query contains pattern.
// Non-string queries are matched on their %v rendering.
func (db *TestDB) ExpectRaw(pattern string) *RawExpectation {
	db.mu.Lock()
	defer db.mu.Unlock()
	e := &RawExpectation{db: db, pattern: pattern}
	db.raws = append(db.raws, e)
	return e
}

// ExpectTransaction sets up the scope returned by the next Begin call.
func (db *TestDB) ExpectTransaction() *TestTx {
	db.mu.Lock()
	defer db.mu.Unlock()
	tx := newTestTx(db)
	db.txExpectations = append(db.txExpectations, tx)
	return tx
}

// RequestLog returns a copy of every executed request in execution order, scopes included.
func (db *TestDB) RequestLog() []RequestCall {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Clone(db.requestLog)
}

// RawLog returns a copy of every Raw call in execution order.
func (db *TestDB) RawLog() []RawCall {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Clone(db.rawLog)
}

// SchemaLog returns a copy of every DDL call in execution order.
func (db *TestDB) SchemaLog() []SchemaCall {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Clone(db.schemaLog)
}

// Transactions returns the scopes handed out by Begin, oldest first.
func (db *TestDB) Transactions() []*TestTx {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Clone(db.startedTransactions)
}

// IsClosed reports whether Close was called.
func (db *TestDB) IsClosed() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.closed
}

// matchSQL checks if the actual SQL matches the expected pattern
func (db *TestDB) matchSQL(expected, actual string) bool {
	if db.strictMatch {
		return expected == actual
	}
	return strings.Contains(actual, expected)
}

func (db *TestDB) matches(e *Expectation, req *dbtypes.Request) bool {
	if e.times > 0 && e.calls >= e.times {
		return false
	}
	if e.operation != req.Operation {
		return false
	}
	if e.table != "" && e.table != req.Table {
		return false
	}
	if e.sql != "" && !db.matchSQL(e.sql, requestText(req)) {
		return false
	}
	return true
}

// requestText is the SQL of a request, or the rendering of its command.
func requestText(req *dbtypes.Request) string {
	if req.SQL != "" {
		return req.SQL
	}
	return req.String()
}

func (db *TestDB) execute(req *dbtypes.Request, inTx bool, own []*Expectation) (*dbtypes.Result, error) {
	if req == nil {
		return nil, dbtypes.InvalidArgumentf("request cannot be nil")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.requestLog = append(db.requestLog, RequestCall{Request: req, InTransaction: inTx})

	var found *Expectation
	for _, e := range slices.Concat(own, db.expectations) {
		if db.matches(e, req) {
			found = e
			break
		}
	}

	if found == nil {
		if db.strict {
			return nil, dbtypes.NewQueryExecutionError(req, fmt.Errorf("%w: %s", ErrUnexpectedRequest, req))
		}
		return &dbtypes.Result{}, nil
	}

	found.calls++
	if found.err != nil {
		return nil, dbtypes.NewQueryExecutionError(req, found.err)
	}
	return found.build(), nil
}

func (db *TestDB) raw(query any, args []any, inTx bool) (any, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.rawLog = append(db.rawLog, RawCall{Query: query, Args: slices.Clone(args), InTransaction: inTx})

	text := fmt.Sprintf("%v", query)
	for _, e := range db.raws {
		if !db.matchSQL(e.pattern, text) {
			continue
		}
		if e.err != nil {
			return nil, dbtypes.NewQueryExecutionError(&dbtypes.Request{Operation: dbtypes.OpRaw, SQL: text, Args: args}, e.err)
		}
		return e.result, nil
	}

	if db.strict {
		return nil, fmt.Errorf("%w: raw %s", ErrUnexpectedRequest, text)
	}
	return []dbtypes.Row{}, nil
}

func (db *TestDB) schema(op, name string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.schemaLog = append(db.schemaLog, SchemaCall{Op: op, Name: name})
}

// Execute implements dbtypes.Executor.
func (db *TestDB) Execute(_ context.Context, req *dbtypes.Request) (*dbtypes.Result, error) {
	return db.execute(req, false, nil)
}

// Raw implements dbtypes.Executor.
func (db *TestDB) Raw(_ context.Context, query any, args ...any) (any, error) {
	return db.raw(query, args, false)
}

// Vendor implements dbtypes.Executor.
func (db *TestDB) Vendor() dbtypes.Vendor {
	return db.vendor
}

// Capabilities implements dbtypes.Executor.
func (db *TestDB) Capabilities() dbtypes.CapabilitySet {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.caps
}

// Compiler implements database.Connection with the vendor's real compiler.
func (db *TestDB) Compiler() expression.Compiler {
	return db.compiler
}

// Begin returns the next scope set up with ExpectTransaction, or a fresh one.
func (db *TestDB) Begin(_ context.Context) (dbtypes.Scope, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var tx *TestTx
	if len(db.txExpectations) > 0 {
		tx = db.txExpectations[0]
		db.txExpectations = db.txExpectations[1:]
	} else {
		tx = newTestTx(db)
	}

	if tx.beginErr != nil {
		return nil, dbtypes.NewTransactionError("begin", tx.beginErr)
	}

	db.startedTransactions = append(db.startedTransactions, tx)
	return tx, nil
}

// Health implements dbtypes.Gateway.
func (db *TestDB) Health(_ context.Context) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.healthErr
}

// Close implements dbtypes.Gateway.
func (db *TestDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
	return nil
}

// CreateDatabase records the database as existing.
func (db *TestDB) CreateDatabase(_ context.Context, name string) error {
	db.schema("create_database", name)
	db.mu.Lock()
	defer db.mu.Unlock()
	db.databases[name] = true
	return nil
}

// DropDatabase forgets the database.
func (db *TestDB) DropDatabase(_ context.Context, name string) error {
	db.schema("drop_database", name)
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.databases, name)
	return nil
}

// DatabaseExists reports whether CreateDatabase was called for name.
func (db *TestDB) DatabaseExists(_ context.Context, name string) (bool, error) {
	db.schema("database_exists", name)
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.databases[name], nil
}

// CreateTable stores the column definitions of the table.
func (db *TestDB) CreateTable(_ context.Context, name string, columns []dbtypes.ColumnDefinition) error {
	db.schema("create_table", name)
	if name == "" {
		return dbtypes.ErrMissingTable
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.tables[name]; exists {
		return fmt.Errorf("table %q already exists", name)
	}
	db.tables[name] = slices.Clone(columns)
	return nil
}

// DropTable removes the table. Dropping a missing table is not an error.
func (db *TestDB) DropTable(_ context.Context, name string) error {
	db.schema("drop_table", name)
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.tables, name)
	return nil
}

// AlterTable applies the changes to the stored column definitions.
func (db *TestDB) AlterTable(_ context.Context, name string, changes []dbtypes.TableChange) error {
	db.schema("alter_table", name)
	db.mu.Lock()
	defer db.mu.Unlock()

	cols, ok := db.tables[name]
	if !ok {
		return fmt.Errorf("table %q does not exist", name)
	}
	for _, change := range changes {
		idx := slices.IndexFunc(cols, func(c dbtypes.ColumnDefinition) bool { return c.Name == change.Column.Name })
		switch change.Kind {
		case dbtypes.AddColumn:
			if idx >= 0 {
				return fmt.Errorf("column %q already exists in %q", change.Column.Name, name)
			}
			cols = append(cols, change.Column)
		case dbtypes.DropColumn:
			if idx < 0 {
				return fmt.Errorf("column %q does not exist in %q", change.Column.Name, name)
			}
			cols = slices.Delete(cols, idx, idx+1)
		case dbtypes.RenameColumn:
			if idx < 0 {
				return fmt.Errorf("column %q does not exist in %q", change.Column.Name, name)
			}
			cols[idx].Name = change.NewName
		default:
			return dbtypes.InvalidArgumentf("unknown table change %q", change.Kind)
		}
	}
	db.tables[name] = cols
	return nil
}

// TableExists reports whether the table was created and not dropped.
func (db *TestDB) TableExists(_ context.Context, name string) (bool, error) {
	db.schema("table_exists", name)
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.tables[name]
	return ok, nil
}

// DropAllTables removes every table.
func (db *TestDB) DropAllTables(_ context.Context) error {
	db.schema("drop_all_tables", "")
	db.mu.Lock()
	defer db.mu.Unlock()
	clear(db.tables)
	return nil
}

// TableColumns returns the current column definitions of a table created through the fake.
func (db *TestDB) TableColumns(name string) ([]dbtypes.ColumnDefinition, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	cols, ok := db.tables[name]
	return slices.Clone(cols), ok
}

// WithSQL restricts the expectation to requests whose SQL contains (or, with strict
// matching, equals) pattern. MongoDB requests are matched on their rendered command.
func (e *Expectation) WithSQL(pattern string) *Expectation {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	e.sql = pattern
	return e
}

// Times limits how many requests the expectation answers. Zero means unlimited.
func (e *Expectation) Times(n int) *Expectation {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	e.times = n
	return e
}

// WillReturnRows sets the rows returned by the request.
func (e *Expectation) WillReturnRows(rows *RowSet) *Expectation {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	e.rows = rows
	return e
}

// WillReturnRowsAffected sets the affected row count.
func (e *Expectation) WillReturnRowsAffected(n int64) *Expectation {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	e.result.RowsAffected = n
	return e
}

// WillReturnLastInsertID sets the driver-assigned identifier of an insert.
func (e *Expectation) WillReturnLastInsertID(id int64) *Expectation {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	e.result.LastInsertID = id
	e.result.HasLastInsertID = true
	return e
}

// WillReturnInsertedIDs sets the identifiers a document store assigned on insert.
func (e *Expectation) WillReturnInsertedIDs(ids ...any) *Expectation {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	e.result.InsertedIDs = slices.Clone(ids)
	return e
}

// WillReturnError makes matching requests fail. The error is wrapped the same way a
// real gateway wraps backend failures.
func (e *Expectation) WillReturnError(err error) *Expectation {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	e.err = err
	return e
}

// Calls returns how many requests the expectation answered.
func (e *Expectation) Calls() int {
	e.db.mu.RLock()
	defer e.db.mu.RUnlock()
	return e.calls
}

// build returns a fresh result so callers never share scripted rows.
func (e *Expectation) build() *dbtypes.Result {
	out := e.result
	out.InsertedIDs = slices.Clone(e.result.InsertedIDs)
	if e.rows != nil {
		out.Rows = e.rows.Rows()
		if out.RowsAffected == 0 && !e.operation.Reads() {
			out.RowsAffected = int64(len(out.Rows))
		}
	}
	return &out
}

// WillReturn sets the native result of matching Raw calls.
func (e *RawExpectation) WillReturn(result any) *RawExpectation {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	e.result = result
	return e
}

// WillReturnRows sets matching Raw calls to return rows.
func (e *RawExpectation) WillReturnRows(rows *RowSet) *RawExpectation {
	return e.WillReturn(rows.Rows())
}

// WillReturnError makes matching Raw calls fail.
func (e *RawExpectation) WillReturnError(err error) *RawExpectation {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	e.err = err
	return e
}
