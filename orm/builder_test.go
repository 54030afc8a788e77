package orm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/gaborage/querybricks/database"
	"github.com/gaborage/querybricks/database/expression"
	dbtesting "github.com/gaborage/querybricks/database/testing"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

type notAStruct int

func (notAStruct) Definition() *Definition { return &Definition{Table: "numbers"} }
func (notAStruct) Attributes() Attributes { return nil }
func (notAStruct) Fill(Attributes) {}
func (notAStruct) Set(string, any) {}

type fakeProvider struct {
	conns map[string]database.Connection
	calls []string
}

func (p *fakeProvider) Get(_ context.Context, name string) (database.Connection, error) {
	p.calls = append(p.calls, name)
	conn, ok := p.conns[name]
	if !ok {
		return nil, errors.New("unknown connection " + name)
	}
	return conn, nil
}

func TestNewBuilderBindsDefinition(t *testing.T) {
	b := newUsers(dbtesting.NewTestDB(dbtypes.PostgreSQL))
	require.NoError(t, b.Err())
	assert.Equal(t, usersTable, b.Table())
	assert.Same(t, userDefinition, b.Definition())
	assert.Equal(t, dbtypes.DefaultCapabilities(dbtypes.PostgreSQL).List(), b.Capabilities().List())
}

func TestNewBuilderErrors(t *testing.T) {
	b := NewBuilder[*User](nil)
	require.Error(t, b.Err())
	assert.Contains(t, b.Err().Error(), "User builder requires a connection")

	nb := NewBuilder[notAStruct](dbtesting.NewTestDB(dbtypes.PostgreSQL))
	assert.ErrorContains(t, nb.Err(), "must be a pointer to a struct")
	_, err := nb.Get(context.Background())
	assert.Error(t, err)
}

func TestFromProviderResolvesLazily(t *testing.T) {
	primary := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	reporting := dbtesting.NewTestDB(dbtypes.MySQL)
	p := &fakeProvider{conns: map[string]database.Connection{"": primary, "reporting": reporting}}

	b := FromProvider[*User](p, "")
	assert.Empty(t, p.calls)
	assert.Empty(t, b.Capabilities().List())

	_, err := b.Get(context.Background())
	require.NoError(t, err)
	_, err = b.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{""}, p.calls)
	dbtesting.AssertRequestCount(t, primary, dbtypes.OpSelect, "", 1)

	b.SetConnectionName("reporting")
	assert.Equal(t, "reporting", b.ConnectionName())
	_, err = b.Get(context.Background())
	require.NoError(t, err)
	dbtesting.AssertRequestExecuted(t, reporting, dbtypes.OpSelect, "SELECT * FROM `users`")

	_, err = FromProvider[*User](p, "missing").Get(context.Background())
	assert.ErrorContains(t, err, "unknown connection missing")

	assert.Error(t, FromProvider[*User](nil, "").Err())
}

func TestSelectOverridesAndKeepsIdentity(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectSelect(usersTable).WillReturnRows(dbtesting.NewRowSet("id", "age").AddRow(int64(1), int64(30)))

	b := newUsers(db).Select("name").Select("age")
	users, err := b.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, `SELECT "id", "age" FROM "users"`, lastSQL(t, db))
	require.Equal(t, 1, users.Count())
	assert.Equal(t, Attributes{"id": int64(1), "age": int64(30)}, users.First().Attributes())

	// the builder's own projection is untouched
	assert.Equal(t, []expression.Column{{Name: "age"}}, b.Expression().Columns())

	_, err = newUsers(db).Select("name").Select("*").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users"`, lastSQL(t, db))
}

func TestSelectParsesAliasesAndDistinct(t *testing.T) {
	b := newUsers(dbtesting.NewTestDB(dbtypes.PostgreSQL)).
		Select("users.name AS fullName", "age").
		Distinct("age")
	require.NoError(t, b.Err())
	assert.Equal(t, []expression.Column{
		{Table: usersTable, Name: "name", As: "fullName"},
		{Name: "age"},
	}, b.Expression().Columns())
	assert.Equal(t, &expression.Distinct{Columns: []expression.Column{{Name: "age"}}}, b.Expression().Distinct())

	b.Distinct()
	assert.True(t, b.Expression().Distinct().All)
}

func TestCloneIsIndependent(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	base := newUsers(db).Where("age", ">", 18).With("posts")
	branch := base.Clone().Where("name", "Alice").OrderBy("name")

	assert.Len(t, base.Expression().Wheres(), 1)
	assert.Empty(t, base.Expression().OrderBy())
	assert.Len(t, branch.Expression().Wheres(), 2)

	branch.With("posts")
	branch.ResetExpression()
	assert.Empty(t, branch.Expression().Wheres())
	assert.Len(t, base.Expression().Wheres(), 1)
	assert.Equal(t, []string{"posts"}, base.with)
	assert.Empty(t, branch.with)
}

func TestExpressionAccessors(t *testing.T) {
	b := newUsers(dbtesting.NewTestDB(dbtypes.PostgreSQL)).Where("age", 30)

	copied := b.CloneExpression()
	copied.AddWhere(expression.Where{Column: "name", Operator: expression.Eq, Value: "x"})
	assert.Len(t, b.Expression().Wheres(), 1)

	b.SetExpression(copied)
	assert.Len(t, b.Expression().Wheres(), 2)
	copied.SetWheres(nil)
	assert.Len(t, b.Expression().Wheres(), 2)

	assert.ErrorIs(t, newUsers(dbtesting.NewTestDB(dbtypes.PostgreSQL)).SetExpression(nil).Err(), dbtypes.ErrInvalidArgument)
}

func TestUseTableReturnsClone(t *testing.T) {
	b := newUsers(dbtesting.NewTestDB(dbtypes.PostgreSQL))
	archived := b.UseTable("users_archive")
	assert.Equal(t, "users_archive", archived.Table())
	assert.Equal(t, usersTable, b.Table())

	assert.ErrorIs(t, b.Clone().SetTable("").Err(), dbtypes.ErrMissingTable)
}

func TestAllIgnoresWheresAndPaging(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectSelect(usersTable).WillReturnRows(userRows())

	b := newUsers(db).Where("age", ">", 100).Limit(1).Offset(3).OrderBy("name")
	users, err := b.All(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, users.Count())
	assert.Equal(t, `SELECT * FROM "users" ORDER BY "name" ASC`, lastSQL(t, db))
	assert.Len(t, b.Expression().Wheres(), 1)
}

func TestGetHydratesWithCasts(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectSelect(usersTable).WillReturnRows(dbtesting.NewRowSet("id", "name", "age").
		AddRow(int64(1), "Alice", "30").
		AddRow(int64(2), "Bob", nil))

	users, err := newUsers(db).Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, users.Count())
	assert.Equal(t, int64(30), users.At(0).Get("age"))
	assert.Nil(t, users.At(1).Get("age"))
	assert.Equal(t, []any{"Alice", "Bob"}, users.Pluck("name"))
}

func TestFirstAndLast(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectSelect(usersTable).WillReturnRows(dbtesting.NewRowSet("id", "name").AddRow(int64(2), "Bob"))

	b := newUsers(db).OrderBy("name").OrderBy("age", "desc")
	first, err := b.First(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bob", first.Get("name"))
	assert.Equal(t, `SELECT * FROM "users" ORDER BY "name" ASC, "age" DESC LIMIT 1`, lastSQL(t, db))

	_, err = b.Last(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" ORDER BY "name" DESC, "age" ASC LIMIT 1`, lastSQL(t, db))

	_, err = newUsers(db).Last(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" ORDER BY "id" DESC LIMIT 1`, lastSQL(t, db))

	// the builder keeps its own ordering
	assert.Equal(t, expression.Asc, b.Expression().OrderBy()[0].Direction)
}

func TestFirstOrFailAndLastOrFail(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)

	first, err := newUsers(db).First(context.Background())
	require.NoError(t, err)
	assert.Nil(t, first)

	_, err = newUsers(db).FirstOrFail(context.Background())
	var notFound *dbtypes.ModelNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, usersTable, notFound.Table)
	assert.ErrorIs(t, err, dbtypes.ErrModelNotFound)

	_, err = newUsers(db).LastOrFail(context.Background())
	assert.ErrorIs(t, err, dbtypes.ErrModelNotFound)
}

func TestFindIgnoresPendingClauses(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectSelect(usersTable).WithSQL(`"id" = $1`).WillReturnRows(dbtesting.NewRowSet("id", "name").AddRow(int64(7), "Jane"))

	b := newUsers(db).Where("age", ">", 99).OrderBy("name").Offset(5)
	user, err := b.Find(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(7), user.ID())

	assert.Equal(t, `SELECT * FROM "users" WHERE "id" = $1 LIMIT 1`, lastSQL(t, db))
	assert.Equal(t, []any{7}, lastRequest(t, db).Args)
	assert.Len(t, b.Expression().Wheres(), 1)
}

func TestFindMiss(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)

	user, err := newUsers(db).Find(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, user)

	_, err = newUsers(db).FindOrFail(context.Background(), 404)
	var notFound *dbtypes.ModelNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 404, notFound.ID)
}

func TestQueryErrorsAreWrapped(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	boom := errors.New("connection reset")
	db.ExpectSelect(usersTable).WillReturnError(boom)

	_, err := newUsers(db).Get(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, dbtypes.ErrQueryExecution)
}

func TestCountLeavesExpressionUntouched(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectAggregate(usersTable).WillReturnRows(dbtesting.NewRowSet(dbtypes.AggregateAlias).AddRow(int64(4)))

	b := newUsers(db).Where("age", ">", 18).Limit(2)
	n, err := b.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, `SELECT COUNT(*) AS "aggregate" FROM "users" WHERE "age" > $1`, lastSQL(t, db))

	assert.Len(t, b.Expression().Wheres(), 1)
	require.NotNil(t, b.Expression().Limit())
	assert.Equal(t, uint64(2), *b.Expression().Limit())
}

func TestNumericAggregates(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectAggregate(usersTable).WithSQL("MAX").WillReturnRows(dbtesting.NewRowSet(dbtypes.AggregateAlias).AddRow(int64(64)))
	db.ExpectAggregate(usersTable).WithSQL("AVG").WillReturnRows(dbtesting.NewRowSet(dbtypes.AggregateAlias).AddRow("27.5"))
	db.ExpectAggregate(usersTable).WithSQL("SUM").WillReturnRows(dbtesting.NewRowSet(dbtypes.AggregateAlias).AddRow(nil))

	ctx := context.Background()
	maxAge, err := newUsers(db).Max(ctx, "age")
	require.NoError(t, err)
	assert.InDelta(t, 64.0, maxAge, 0.0001)

	avg, err := newUsers(db).Avg(ctx, "age")
	require.NoError(t, err)
	assert.InDelta(t, 27.5, avg, 0.0001)

	sum, err := newUsers(db).Sum(ctx, "age")
	require.NoError(t, err)
	assert.Zero(t, sum)

	// no row at all
	minAge, err := newUsers(db).Min(ctx, "age")
	require.NoError(t, err)
	assert.Zero(t, minAge)
	dbtesting.AssertRequestExecuted(t, db, dbtypes.OpAggregate, `MIN("age")`)

	_, err = newUsers(db).Sum(ctx, " ")
	assert.ErrorIs(t, err, dbtypes.ErrInvalidArgument)
}

func TestInsertWithReturning(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectInsert(usersTable).WithSQL("RETURNING *").WillReturnRows(dbtesting.NewRowSet("id", "name", "age").
		AddRow(int64(1), "Alice", int64(30)).
		AddRow(int64(2), "Bob", int64(25)))

	users, err := newUsers(db).Insert(context.Background(),
		Attributes{"name": "Alice", "age": "30"},
		Attributes{"id": nil, "name": "Bob", "age": 25},
	)
	require.NoError(t, err)
	require.Equal(t, 2, users.Count())
	assert.Equal(t, []any{int64(1), int64(2)}, users.Pluck("id"))

	assert.Equal(t, `INSERT INTO "users" ("age","name") VALUES ($1,$2),($3,$4) RETURNING *`, lastSQL(t, db))
	assert.Equal(t, []any{int64(30), "Alice", int64(25), "Bob"}, lastRequest(t, db).Args)
	dbtesting.AssertRequestCount(t, db, dbtypes.OpSelect, "", 0)
}

func TestInsertRereadsByLastInsertID(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.MySQL)
	db.ExpectInsert(usersTable).WillReturnLastInsertID(10)
	// storage order differs from insert order
	db.ExpectSelect(usersTable).WillReturnRows(dbtesting.NewRowSet("id", "name").
		AddRow(int64(11), "Bob").
		AddRow(int64(10), "Alice"))

	users, err := newUsers(db).Insert(context.Background(), Attributes{"name": "Alice"}, Attributes{"name": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, []any{"Alice", "Bob"}, users.Pluck("name"))

	assert.Equal(t, "SELECT * FROM `users` WHERE `id` IN (?,?)", lastSQL(t, db))
	assert.Equal(t, []any{int64(10), int64(11)}, lastRequest(t, db).Args)
}

func TestInsertUsesIDGenerator(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.MySQL)
	db.ExpectSelect(usersTable).WillReturnRows(dbtesting.NewRowSet("id", "name").AddRow("fixed-id", "Alice"))

	b := newUsers(db).SetIDGenerator(IDGeneratorFunc(func() any { return "fixed-id" }))
	users, err := b.Insert(context.Background(), Attributes{"name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", users.First().ID())

	dbtesting.AssertRequestExecuted(t, db, dbtypes.OpInsert, "INSERT INTO `users` (`id`,`name`) VALUES (?,?)")
	assert.Equal(t, []any{"fixed-id"}, lastRequest(t, db).Args)
}

func TestInsertEchoesWithoutIdentity(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.Oracle)

	users, err := newUsers(db).Insert(context.Background(), Attributes{"name": "Alice", "age": 30})
	require.NoError(t, err)
	require.Equal(t, 1, users.Count())
	assert.Equal(t, Attributes{"name": "Alice", "age": int64(30)}, users.First().Attributes())
	dbtesting.AssertRequestCount(t, db, dbtypes.OpSelect, "", 0)

	_, err = newUsers(db).Insert(context.Background())
	assert.ErrorIs(t, err, dbtypes.ErrInvalidArgument)
}

func TestUpdateByIdentity(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectSelect(usersTable).WillReturnRows(dbtesting.NewRowSet("id", "name", "age").AddRow(int64(1), "Alice", int64(31)))

	users, err := newUsers(db).Update(context.Background(), Attributes{"id": 1, "age": 31})
	require.NoError(t, err)
	require.Equal(t, 1, users.Count())
	assert.Equal(t, int64(31), users.First().Get("age"))

	dbtesting.AssertRequestExecuted(t, db, dbtypes.OpUpdate, `UPDATE "users" SET "age" = $1 WHERE "id" = $2`)
	assert.Equal(t, `SELECT * FROM "users" WHERE "id" IN ($1)`, lastSQL(t, db))
}

func TestUpdateWithoutIdentityTouchesMatches(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectSelect(usersTable).WithSQL(`SELECT "id" FROM`).Times(1).
		WillReturnRows(dbtesting.NewRowSet("id").AddRow(int64(1)).AddRow(int64(2)))
	db.ExpectSelect(usersTable).WithSQL(`IN ($1,$2)`).WillReturnRows(userRows())

	users, err := newUsers(db).Where("age", ">", 18).OrderBy("name").Update(context.Background(), Attributes{"name": "Same"})
	require.NoError(t, err)
	assert.Equal(t, 2, users.Count())

	dbtesting.AssertRequestExecuted(t, db, dbtypes.OpSelect, `SELECT "id" FROM "users" WHERE "age" > $1`)
	dbtesting.AssertRequestExecuted(t, db, dbtypes.OpUpdate, `UPDATE "users" SET "name" = $1 WHERE "age" > $2`)

	_, err = newUsers(db).Update(context.Background(), Attributes{"id": 1})
	assert.ErrorIs(t, err, dbtypes.ErrInvalidArgument)
	_, err = newUsers(db).Update(context.Background())
	assert.ErrorIs(t, err, dbtypes.ErrInvalidArgument)
}

func TestUpdateAll(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectSelect(usersTable).WithSQL(`SELECT "id" FROM`).Times(1).
		WillReturnRows(dbtesting.NewRowSet("id").AddRow(int64(2)))
	db.ExpectSelect(usersTable).WillReturnRows(dbtesting.NewRowSet("id", "name").AddRow(int64(2), "Bob"))

	users, err := newUsers(db).Where("name", "Bob").UpdateAll(context.Background(), Attributes{"id": 9, "age": 40})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2)}, users.Pluck("id"))
	dbtesting.AssertRequestExecuted(t, db, dbtypes.OpUpdate, `UPDATE "users" SET "age" = $1 WHERE "name" = $2`)
}

func TestUpdateAllRestrictsPagedExpression(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectSelect(usersTable).WithSQL(`SELECT "id" FROM "users" WHERE "age" > $1 ORDER BY "age" ASC LIMIT 2`).Times(1).
		WillReturnRows(dbtesting.NewRowSet("id").AddRow(int64(1)).AddRow(int64(2)))
	db.ExpectSelect(usersTable).WillReturnRows(dbtesting.NewRowSet("id", "age").
		AddRow(int64(1), int64(99)).
		AddRow(int64(2), int64(99)))

	users, err := newUsers(db).Where("age", ">", 20).OrderBy("age", "asc").Limit(2).
		UpdateAll(context.Background(), Attributes{"age": 99})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, users.Pluck("id"))
	dbtesting.AssertRequestExecuted(t, db, dbtypes.OpUpdate, `UPDATE "users" SET "age" = $1 WHERE "id" IN ($2,$3)`)
	dbtesting.AssertRequestNotExecuted(t, db, dbtypes.OpUpdate, `"age" > `)
}

func TestUpdateAllSkipsEmptyPage(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.MySQL)

	users, err := newUsers(db).Where("age", ">", 20).Skip(50).Take(10).
		UpdateAll(context.Background(), Attributes{"age": 99})
	require.NoError(t, err)
	assert.True(t, users.IsEmpty())
	dbtesting.AssertRequestNotExecuted(t, db, dbtypes.OpUpdate, "")
}

func TestDelete(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectDelete(usersTable).WillReturnRowsAffected(3)

	b := newUsers(db).Where("age", "<", 18)
	same, err := b.Delete(context.Background())
	require.NoError(t, err)
	assert.Same(t, b, same)
	assert.Equal(t, `DELETE FROM "users" WHERE "age" < $1`, lastSQL(t, db))

	_, err = newUsers(db).Join(&Post{}, "id", "userId", "").Delete(context.Background())
	assert.ErrorIs(t, err, dbtypes.ErrUnsupported)
}

func TestJoinNestsRelatedColumns(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectSelect(postsTable).WillReturnRows(dbtesting.NewRowSet("id", "title", "userId", "author__id", "author__name", "author__age").
		AddRow(int64(5), "Hello", int64(1), int64(1), "Alice", "30").
		AddRow(int64(6), "Orphan", nil, nil, nil, nil))

	posts, err := NewBuilder[*Post](db).
		LeftJoin(&User{}, "userId", "id", "author").
		Get(context.Background())
	require.NoError(t, err)

	sql := lastSQL(t, db)
	assert.Contains(t, sql, `SELECT "posts".*, "author"."id" AS "author__id", "author"."name" AS "author__name", "author"."age" AS "author__age"`)
	assert.Contains(t, sql, `LEFT JOIN "users" AS "author"`)

	require.Equal(t, 2, posts.Count())
	assert.Equal(t, map[string]any{"id": int64(1), "name": "Alice", "age": int64(30)}, posts.At(0).Get("author"))
	assert.Nil(t, posts.At(1).Get("author"))
	_, flattened := posts.At(0).Attributes()["author__name"]
	assert.False(t, flattened)
}

func TestWithEagerLoadsRelationships(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectSelect(usersTable).WillReturnRows(userRows())
	db.ExpectSelect(postsTable).WithSQL(`"userId" = $1`).WillReturnRows(dbtesting.NewRowSet("id", "title", "userId").
		AddRow(int64(5), "Hello", int64(1)))

	users, err := newUsers(db).With("posts", "posts").Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, users.Count())

	posts, ok := users.At(0).Get("posts").([]Attributes)
	require.True(t, ok)
	require.Len(t, posts, 1)
	assert.Equal(t, "Hello", posts[0]["title"])
	dbtesting.AssertRequestCount(t, db, dbtypes.OpSelect, `FROM "posts"`, 2)
}

func TestWithCustomResolver(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectSelect(usersTable).WillReturnRows(userRows())

	resolver := &stubResolver{value: []Attributes{}}
	users, err := newUsers(db).SetResolver(resolver).With("posts").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"posts", "posts"}, resolver.calls)
	assert.Equal(t, []Attributes{}, users.At(1).Get("posts"))

	failing := &stubResolver{err: errors.New("lookup failed")}
	_, err = newUsers(db).SetResolver(failing).With("posts").Get(context.Background())
	assert.ErrorContains(t, err, "resolve users.posts: lookup failed")
}

func TestDocumentStoreMapsIdentity(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.MongoDB)
	oid := bson.NewObjectID()
	db.ExpectSelect("documents").WillReturnRows(dbtesting.NewRowSet("_id", "title", "tags").
		AddRow(oid, "Guide", bson.A{"go", "db"}))

	b := NewBuilder[*Document](db).Where("id", oid.Hex()).Select("title").OrderBy("id", "desc")
	doc, err := b.First(context.Background())
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, oid.Hex(), doc.ID())
	assert.Equal(t, "Guide", doc.Get("title"))

	req := lastRequest(t, db)
	assert.Equal(t, "documents", req.Table)
	assert.Contains(t, req.String(), "_id")
	assert.Equal(t, []string{"id"}, whereColumns(b.Expression()))
}

func TestDocumentStoreInsertUsesInsertedIDs(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.MongoDB)
	first, second := bson.NewObjectID(), bson.NewObjectID()
	db.ExpectInsert("documents").WillReturnInsertedIDs(first, second)
	db.ExpectSelect("documents").WillReturnRows(dbtesting.NewRowSet("_id", "title").
		AddRow(second, "B").
		AddRow(first, "A"))

	docs, err := NewBuilder[*Document](db).Insert(context.Background(),
		Attributes{"title": "A", "tags": []string{"x"}},
		Attributes{"title": "B"},
	)
	require.NoError(t, err)
	assert.Equal(t, []any{"A", "B"}, docs.Pluck("title"))
	assert.Equal(t, []any{first.Hex(), second.Hex()}, docs.Pluck("id"))
}

func TestRawRunsOnSessionExecutor(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	db.ExpectRaw("SELECT 1").WillReturn([]dbtypes.Row{{"one": int64(1)}})

	out, err := newUsers(db).Raw(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, []dbtypes.Row{{"one": int64(1)}}, out)

	err = newUsers(db).Transaction(context.Background(), func(tx *Builder[*User]) error {
		_, err := tx.Raw(context.Background(), "SELECT 1")
		return err
	})
	require.NoError(t, err)
	raws := db.RawLog()
	require.Len(t, raws, 2)
	assert.False(t, raws[0].InTransaction)
	assert.True(t, raws[1].InTransaction)
}

func TestSchemaPassthroughs(t *testing.T) {
	db := dbtesting.NewTestDB(dbtypes.PostgreSQL)
	b := newUsers(db)
	ctx := context.Background()

	require.NoError(t, b.CreateDatabase(ctx, "shop"))
	exists, err := b.DatabaseExists(ctx, "shop")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, b.CreateTable(ctx, "", []dbtypes.ColumnDefinition{
		{Name: "id", Type: dbtypes.ColumnInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "name", Type: dbtypes.ColumnString},
	}))
	exists, err = b.TableExists(ctx, "")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, b.AlterTable(ctx, "", []dbtypes.TableChange{
		{Kind: dbtypes.AddColumn, Column: dbtypes.ColumnDefinition{Name: "age", Type: dbtypes.ColumnInteger, Nullable: true}},
	}))
	cols, ok := db.TableColumns(usersTable)
	require.True(t, ok)
	assert.Len(t, cols, 3)

	require.NoError(t, b.DropTable(ctx, ""))
	exists, err = b.TableExists(ctx, usersTable)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, b.DropAllTables(ctx))
	require.NoError(t, b.DropDatabase(ctx, "shop"))

	var ops []string
	for _, call := range db.SchemaLog() {
		ops = append(ops, call.Op)
	}
	assert.Contains(t, ops, "create_table")
	assert.Contains(t, ops, "drop_database")
}
