//go:build integration

package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

func TestConnectionCRUD(t *testing.T) {
	conn, ctx := setupTestContainer(t)
	c := conn.Compiler()
	coll := uniqueCollectionName("people")

	require.NoError(t, conn.CreateTable(ctx, coll, nil))
	exists, err := conn.TableExists(ctx, coll)
	require.NoError(t, err)
	assert.True(t, exists)

	insert, err := c.Insert(coll, []dbtypes.Row{
		{"name": "Ann", "age": 31},
		{"name": "Bob", "age": 17},
		{"name": "Cid", "age": 45},
	}, false)
	require.NoError(t, err)
	res, err := conn.Execute(ctx, insert)
	require.NoError(t, err)
	require.Len(t, res.InsertedIDs, 3)
	_, isOID := res.InsertedIDs[0].(bson.ObjectID)
	assert.True(t, isOID)

	adults := expression.NewTree(coll).
		AddWhere(expression.Where{Column: "age", Operator: expression.Gte, Value: 18}).
		AddOrderBy(expression.OrderBy{Column: "age", Direction: expression.Desc})
	sel, err := c.Select(adults)
	require.NoError(t, err)
	res, err = conn.Execute(ctx, sel)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Cid", res.Rows[0]["name"])

	count, err := c.Aggregate(adults, expression.Count, "")
	require.NoError(t, err)
	res, err = conn.Execute(ctx, count)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.EqualValues(t, 2, res.Rows[0][dbtypes.AggregateAlias])

	like, err := c.Select(expression.NewTree(coll).
		AddWhere(expression.Where{Column: "name", Operator: expression.Like, Value: "a%"}))
	require.NoError(t, err)
	res, err = conn.Execute(ctx, like)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Ann", res.Rows[0]["name"])

	upd, err := c.Update(expression.NewTree(coll).
		AddWhere(expression.Where{Column: "name", Operator: expression.Eq, Value: "Bob"}), dbtypes.Row{"age": 18})
	require.NoError(t, err)
	res, err = conn.Execute(ctx, upd)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)

	del, err := c.Delete(expression.NewTree(coll).
		AddWhere(expression.Where{Column: "age", Operator: expression.Lt, Value: 40}))
	require.NoError(t, err)
	res, err = conn.Execute(ctx, del)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)

	require.NoError(t, conn.DropTable(ctx, coll))
}

func TestConnectionLookupJoin(t *testing.T) {
	conn, ctx := setupTestContainer(t)
	c := conn.Compiler()
	users, posts := uniqueCollectionName("users"), uniqueCollectionName("posts")

	uid := bson.NewObjectID()
	insertUsers, err := c.Insert(users, []dbtypes.Row{{"_id": uid, "name": "Ann"}}, false)
	require.NoError(t, err)
	_, err = conn.Execute(ctx, insertUsers)
	require.NoError(t, err)

	insertPosts, err := c.Insert(posts, []dbtypes.Row{{"title": "Hello", "authorId": uid}, {"title": "Orphan"}}, false)
	require.NoError(t, err)
	_, err = conn.Execute(ctx, insertPosts)
	require.NoError(t, err)

	tree := expression.NewTree(posts).
		AddJoin(expression.Join{
			Kind: expression.LeftJoin, LocalTable: posts, RelatedTable: users,
			LocalColumn: "authorId", RelatedColumn: "_id", Target: "author",
		}).
		AddOrderBy(expression.OrderBy{Column: "title", Direction: expression.Asc})
	sel, err := c.Select(tree)
	require.NoError(t, err)
	res, err := conn.Execute(ctx, sel)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	author, ok := res.Rows[0]["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ann", author["name"])
	assert.Nil(t, res.Rows[1]["author"])

	require.NoError(t, conn.DropAllTables(ctx))
	exists, err := conn.TableExists(ctx, posts)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConnectionTransactions(t *testing.T) {
	conn, ctx := setupTestContainer(t)
	c := conn.Compiler()
	coll := uniqueCollectionName("accounts")
	require.NoError(t, conn.CreateTable(ctx, coll, nil))

	insert, err := c.Insert(coll, []dbtypes.Row{{"name": "rolled back"}}, false)
	require.NoError(t, err)

	scope, err := conn.Begin(ctx)
	require.NoError(t, err)
	_, err = scope.Execute(ctx, insert)
	require.NoError(t, err)
	require.NoError(t, scope.Rollback(ctx))
	assert.NoError(t, scope.Rollback(ctx), "rollback after finish is a no-op")

	count, err := c.Aggregate(expression.NewTree(coll), expression.Count, "")
	require.NoError(t, err)
	res, err := conn.Execute(ctx, count)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)

	insert, err = c.Insert(coll, []dbtypes.Row{{"name": "committed"}}, false)
	require.NoError(t, err)
	scope, err = conn.Begin(ctx)
	require.NoError(t, err)
	_, err = scope.Execute(ctx, insert)
	require.NoError(t, err)
	require.NoError(t, scope.Commit(ctx))
	assert.ErrorIs(t, scope.Commit(ctx), dbtypes.ErrTransaction)

	res, err = conn.Execute(ctx, count)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.EqualValues(t, 1, res.Rows[0][dbtypes.AggregateAlias])
}

func TestConnectionSchema(t *testing.T) {
	conn, ctx := setupTestContainer(t)
	dbName := uniqueCollectionName("schema")

	require.NoError(t, conn.CreateDatabase(ctx, dbName))
	exists, err := conn.DatabaseExists(ctx, dbName)
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, conn.DropDatabase(ctx, dbName))

	coll := uniqueCollectionName("items")
	require.NoError(t, conn.CreateTable(ctx, coll, []dbtypes.ColumnDefinition{
		{Name: "id", Type: dbtypes.ColumnString, PrimaryKey: true},
		{Name: "sku", Type: dbtypes.ColumnString, PrimaryKey: true},
	}))

	insert, err := conn.Compiler().Insert(coll, []dbtypes.Row{{"sku": "a-1", "old": 1}}, false)
	require.NoError(t, err)
	_, err = conn.Execute(ctx, insert)
	require.NoError(t, err)

	_, err = conn.Execute(ctx, insert)
	assert.ErrorIs(t, err, dbtypes.ErrQueryExecution, "sku has a unique index")

	require.NoError(t, conn.AlterTable(ctx, coll, []dbtypes.TableChange{
		{Kind: dbtypes.RenameColumn, Column: dbtypes.ColumnDefinition{Name: "old"}, NewName: "renamed"},
	}))

	rows, err := conn.Raw(ctx, Pipeline{Collection: coll, Stages: []bson.D{
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}}}},
	}})
	require.NoError(t, err)
	assert.Equal(t, []dbtypes.Row{{"sku": "a-1", "renamed": int32(1)}}, rows)

	out, err := conn.Raw(ctx, bson.D{{Key: "ping", Value: 1}})
	require.NoError(t, err)
	assert.NotNil(t, out)
}
