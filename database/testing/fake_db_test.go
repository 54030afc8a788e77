package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

const tableUsers = "users"

func compileSelect(t *testing.T, db *TestDB, wheres ...expression.Where) *dbtypes.Request {
	t.Helper()
	tree := expression.NewTree(tableUsers)
	for _, w := range wheres {
		tree.AddWhere(w)
	}
	req, err := db.Compiler().Select(tree)
	require.NoError(t, err)
	return req
}

// TestTestDBExecute tests the Execute method of TestDB.
func TestTestDBExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("returns expected rows", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL)
		db.ExpectSelect(tableUsers).
			WillReturnRows(NewRowSet("id", "name").AddRow(int64(123), "Alice"))

		res, err := db.Execute(ctx, compileSelect(t, db, expression.Where{Column: "id", Operator: expression.Eq, Value: 123}))
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, dbtypes.Row{"id": int64(123), "name": "Alice"}, res.Rows[0])
	})

	t.Run("logs the compiled request", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL)
		req := compileSelect(t, db, expression.Where{Column: "id", Operator: expression.Eq, Value: 1})

		_, err := db.Execute(ctx, req)
		require.NoError(t, err)

		log := db.RequestLog()
		require.Len(t, log, 1)
		assert.Equal(t, `SELECT * FROM "users" WHERE "id" = $1`, log[0].Request.SQL)
		assert.Equal(t, []any{1}, log[0].Request.Args)
		assert.False(t, log[0].InTransaction)
	})

	t.Run("unmatched requests are empty by default", func(t *testing.T) {
		db := NewTestDB(dbtypes.SQLite)
		res, err := db.Execute(ctx, compileSelect(t, db))
		require.NoError(t, err)
		assert.Empty(t, res.Rows)
		assert.Zero(t, res.RowsAffected)
	})

	t.Run("unmatched requests fail in strict mode", func(t *testing.T) {
		db := NewTestDB(dbtypes.SQLite).Strict()
		_, err := db.Execute(ctx, compileSelect(t, db))
		assert.ErrorIs(t, err, ErrUnexpectedRequest)
		assert.ErrorIs(t, err, dbtypes.ErrQueryExecution)
	})

	t.Run("scripted errors are wrapped like backend failures", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL)
		boom := errors.New("connection reset")
		db.ExpectSelect(tableUsers).WillReturnError(boom)

		_, err := db.Execute(ctx, compileSelect(t, db))
		require.ErrorIs(t, err, boom)

		var qe *dbtypes.QueryExecutionError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, tableUsers, qe.Request.Table)
	})

	t.Run("nil request", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL)
		_, err := db.Execute(ctx, nil)
		assert.ErrorIs(t, err, dbtypes.ErrInvalidArgument)
	})

	t.Run("writes report their scripted results", func(t *testing.T) {
		db := NewTestDB(dbtypes.MySQL)
		db.ExpectInsert(tableUsers).WillReturnRowsAffected(1).WillReturnLastInsertID(42)

		req, err := db.Compiler().Insert(tableUsers, []dbtypes.Row{{"name": "Ann"}}, false)
		require.NoError(t, err)

		res, err := db.Execute(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.RowsAffected)
		assert.True(t, res.HasLastInsertID)
		assert.Equal(t, int64(42), res.LastInsertID)
	})

	t.Run("returning rows count as affected", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL)
		db.ExpectInsert(tableUsers).WithSQL("RETURNING").
			WillReturnRows(NewRowSet("id").AddRow(1).AddRow(2))

		req, err := db.Compiler().Insert(tableUsers, []dbtypes.Row{{"id": 1}, {"id": 2}}, true)
		require.NoError(t, err)

		res, err := db.Execute(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.RowsAffected)
		assert.Len(t, res.Rows, 2)
	})

	t.Run("mongodb requests compile to commands", func(t *testing.T) {
		db := NewTestDB(dbtypes.MongoDB)
		db.ExpectInsert(tableUsers).WillReturnInsertedIDs("a", "b")

		req, err := db.Compiler().Insert(tableUsers, []dbtypes.Row{{"name": "Ann"}, {"name": "Bob"}}, false)
		require.NoError(t, err)
		assert.Empty(t, req.SQL)

		res, err := db.Execute(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, res.InsertedIDs)
		assert.True(t, db.Capabilities().Has(dbtypes.CapDocumentStore))
	})
}

// TestDeterministicExpectationMatching verifies that expectations are matched
// in insertion order (first-match wins) when multiple patterns could match.
func TestDeterministicExpectationMatching(t *testing.T) {
	ctx := context.Background()

	t.Run("first expectation wins with overlapping patterns", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL)
		db.ExpectSelect(tableUsers).WithSQL("SELECT").
			WillReturnRows(NewRowSet("id").AddRow(int64(1)))
		db.ExpectSelect(tableUsers).WithSQL("SELECT * FROM").
			WillReturnRows(NewRowSet("id").AddRow(int64(2)))

		res, err := db.Execute(ctx, compileSelect(t, db))
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Rows[0]["id"], "first expectation should match")
	})

	t.Run("operation and table must match", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL)
		db.ExpectSelect("orders").WillReturnRows(NewRowSet("id").AddRow(int64(9)))
		db.ExpectAggregate(tableUsers).WillReturnRows(NewRowSet("aggregate").AddRow(int64(3)))
		db.ExpectSelect("").WillReturnRows(NewRowSet("id").AddRow(int64(1)))

		res, err := db.Execute(ctx, compileSelect(t, db))
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Rows[0]["id"])
	})

	t.Run("times limits an expectation", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL)
		first := db.ExpectSelect(tableUsers).Times(1).WillReturnRows(NewRowSet("id").AddRow(int64(1)))
		db.ExpectSelect(tableUsers).WillReturnRows(NewRowSet("id").AddRow(int64(2)))

		var ids []any
		for range 3 {
			res, err := db.Execute(ctx, compileSelect(t, db))
			require.NoError(t, err)
			ids = append(ids, res.Rows[0]["id"])
		}
		assert.Equal(t, []any{int64(1), int64(2), int64(2)}, ids)
		assert.Equal(t, 1, first.Calls())
	})

	t.Run("strict SQL matching requires the exact statement", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL).StrictSQLMatching().Strict()
		db.ExpectSelect(tableUsers).WithSQL("SELECT *")

		_, err := db.Execute(ctx, compileSelect(t, db))
		require.ErrorIs(t, err, ErrUnexpectedRequest)

		db.ExpectSelect(tableUsers).WithSQL(`SELECT * FROM "users"`)
		_, err = db.Execute(ctx, compileSelect(t, db))
		require.NoError(t, err)
	})

	t.Run("returned rows are independent copies", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL)
		db.ExpectSelect(tableUsers).WillReturnRows(NewRowSet("name").AddRow("Alice"))

		res, err := db.Execute(ctx, compileSelect(t, db))
		require.NoError(t, err)
		res.Rows[0]["name"] = "mutated"

		res, err = db.Execute(ctx, compileSelect(t, db))
		require.NoError(t, err)
		assert.Equal(t, "Alice", res.Rows[0]["name"])
	})
}

func TestTestDBRaw(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(dbtypes.PostgreSQL)
	db.ExpectRaw("SELECT 1").WillReturnRows(NewRowSet("n").AddRow(int64(1)))
	db.ExpectRaw("DROP").WillReturnError(errors.New("permission denied"))

	out, err := db.Raw(ctx, "SELECT 1 AS n")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"n": int64(1)}}, out)

	_, err = db.Raw(ctx, "DROP TABLE users")
	assert.ErrorIs(t, err, dbtypes.ErrQueryExecution)

	out, err = db.Raw(ctx, "VACUUM", 1)
	require.NoError(t, err)
	assert.Empty(t, out)

	log := db.RawLog()
	require.Len(t, log, 3)
	assert.Equal(t, []any{1}, log[2].Args)
}

// TestTestTxCommitRollback tests transaction commit and rollback.
func TestTestTxCommitRollback(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL)
		tx := db.ExpectTransaction()
		tx.ExpectSelect(tableUsers).WillReturnRows(NewRowSet("id").AddRow(int64(5)))

		scope, err := db.Begin(ctx)
		require.NoError(t, err)
		assert.Same(t, tx, scope)

		res, err := scope.Execute(ctx, compileSelect(t, db))
		require.NoError(t, err)
		assert.Equal(t, int64(5), res.Rows[0]["id"])
		require.NoError(t, scope.Commit(ctx))
		require.NoError(t, scope.Rollback(ctx), "rollback after commit is a no-op")

		AssertCommitted(t, tx)
		AssertTransactionCommitted(t, db)
		assert.False(t, tx.IsRolledBack())
		assert.Len(t, tx.RequestLog(), 1)
		assert.True(t, db.RequestLog()[0].InTransaction)
	})

	t.Run("scope expectations do not leak outside", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL)
		tx := db.ExpectTransaction()
		tx.ExpectSelect(tableUsers).WillReturnRows(NewRowSet("id").AddRow(int64(5)))

		res, err := db.Execute(ctx, compileSelect(t, db))
		require.NoError(t, err)
		assert.Empty(t, res.Rows)
	})

	t.Run("rollback", func(t *testing.T) {
		db := NewTestDB(dbtypes.SQLite)
		scope, err := db.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, scope.Rollback(ctx))

		AssertTransactionRolledBack(t, db)
		assert.ErrorIs(t, scope.Commit(ctx), dbtypes.ErrTransaction)
	})

	t.Run("commit failure", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL)
		tx := db.ExpectTransaction().WillFailCommit(errors.New("serialization failure"))

		scope, err := db.Begin(ctx)
		require.NoError(t, err)
		err = scope.Commit(ctx)
		assert.ErrorIs(t, err, dbtypes.ErrTransaction)

		var txErr *dbtypes.TransactionError
		require.ErrorAs(t, err, &txErr)
		assert.Equal(t, "commit", txErr.Op)
		AssertRolledBack(t, tx)
	})

	t.Run("begin failure", func(t *testing.T) {
		db := NewTestDB(dbtypes.PostgreSQL)
		db.ExpectTransaction().WillFailBegin(errors.New("too many connections"))

		_, err := db.Begin(ctx)
		assert.ErrorIs(t, err, dbtypes.ErrTransaction)
		AssertNoTransaction(t, db)
	})
}

func TestTestDBSchema(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(dbtypes.PostgreSQL)

	cols := []dbtypes.ColumnDefinition{
		{Name: "id", Type: dbtypes.ColumnInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "name", Type: dbtypes.ColumnString},
	}
	require.NoError(t, db.CreateTable(ctx, tableUsers, cols))
	require.Error(t, db.CreateTable(ctx, tableUsers, cols))
	assert.ErrorIs(t, db.CreateTable(ctx, "", cols), dbtypes.ErrMissingTable)

	require.NoError(t, db.AlterTable(ctx, tableUsers, []dbtypes.TableChange{
		{Kind: dbtypes.AddColumn, Column: dbtypes.ColumnDefinition{Name: "email", Type: dbtypes.ColumnString, Nullable: true}},
		{Kind: dbtypes.RenameColumn, Column: dbtypes.ColumnDefinition{Name: "name"}, NewName: "full_name"},
		{Kind: dbtypes.DropColumn, Column: dbtypes.ColumnDefinition{Name: "email"}},
	}))
	got, ok := db.TableColumns(tableUsers)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "full_name", got[1].Name)

	assert.Error(t, db.AlterTable(ctx, "missing", nil))

	exists, err := db.TableExists(ctx, tableUsers)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, db.DropAllTables(ctx))
	exists, err = db.TableExists(ctx, tableUsers)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, db.CreateDatabase(ctx, "shop"))
	dbExists, err := db.DatabaseExists(ctx, "shop")
	require.NoError(t, err)
	assert.True(t, dbExists)
	require.NoError(t, db.DropDatabase(ctx, "shop"))

	assert.Equal(t, SchemaCall{Op: "create_table", Name: tableUsers}, db.SchemaLog()[0])
}

func TestTestDBLifecycle(t *testing.T) {
	db := NewTestDB("unknown")
	assert.Equal(t, dbtypes.PostgreSQL, db.Vendor())

	require.NoError(t, db.Health(context.Background()))
	db.WithHealthError(errors.New("down"))
	assert.Error(t, db.Health(context.Background()))

	db.WithCapabilities(dbtypes.CapRawSQL)
	assert.False(t, db.Capabilities().Has(dbtypes.CapReturning))

	require.NoError(t, db.Close())
	assert.True(t, db.IsClosed())
}

// TestAssertions tests the assertion helper functions.
func TestAssertions(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(dbtypes.PostgreSQL)
	AssertNoRequests(t, db)

	_, err := db.Execute(ctx, compileSelect(t, db))
	require.NoError(t, err)
	_, err = db.Execute(ctx, compileSelect(t, db, expression.Where{Column: "age", Operator: expression.Gt, Value: 18}))
	require.NoError(t, err)

	AssertRequestExecuted(t, db, dbtypes.OpSelect, `"age" > $1`)
	AssertRequestNotExecuted(t, db, dbtypes.OpDelete, "")
	AssertRequestCount(t, db, dbtypes.OpSelect, `FROM "users"`, 2)
	AssertNoTransaction(t, db)
}

// TestRowSet tests the RowSet struct and its methods.
func TestRowSet(t *testing.T) {
	t.Run("AddRow builds rows", func(t *testing.T) {
		rs := NewRowSet("id", "name", "email").
			AddRow(int64(1), "Alice", "alice@example.com").
			AddRow(int64(2), "Bob", "bob@example.com")

		assert.Equal(t, 2, rs.RowCount())
		assert.Equal(t, []string{"id", "name", "email"}, rs.Columns())
		assert.Equal(t, "Bob", rs.Rows()[1]["name"])
	})

	t.Run("AddRow panics on arity mismatch", func(t *testing.T) {
		assert.Panics(t, func() { NewRowSet("id", "name").AddRow(1) })
	})

	t.Run("AddRows with generator", func(t *testing.T) {
		rs := NewRowSet("id", "name").
			AddRows(3, func(i int) []any {
				return []any{int64(i + 1), "User" + string(rune('A'+i))}
			})

		assert.Equal(t, 3, rs.RowCount())
		assert.Equal(t, "UserC", rs.Rows()[2]["name"])
	})

	t.Run("AddRowsFromStructs uses db tags", func(t *testing.T) {
		type user struct {
			ID   int64  `db:"id"`
			Name string `db:"name"`
			Skip string `db:"-"`
		}
		rs := NewRowSet("name", "id").AddRowsFromStructs(&user{ID: 1, Name: "Alice"}, user{ID: 2, Name: "Bob"})

		assert.Equal(t, []map[string]any{
			{"id": int64(1), "name": "Alice"},
			{"id": int64(2), "name": "Bob"},
		}, rs.Rows())
		assert.Panics(t, func() { NewRowSet("email").AddRowsFromStructs(&user{}) })
	})

	t.Run("AddMaps fills missing columns with nil", func(t *testing.T) {
		rs := NewRowSet("id", "name").AddMaps(map[string]any{"id": 1})
		assert.Equal(t, []map[string]any{{"id": 1, "name": nil}}, rs.Rows())
	})

	t.Run("dereferences pointer values", func(t *testing.T) {
		name := "Alice"
		var nilName *string
		age := int64(30)

		row := NewRowSet("name", "age", "email").AddRow(&name, &age, nilName).Rows()[0]
		assert.Equal(t, "Alice", row["name"])
		assert.Equal(t, int64(30), row["age"])
		assert.Nil(t, row["email"])
	})
}
