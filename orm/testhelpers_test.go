package orm

import (
	"context"
	"testing"

	"github.com/gaborage/querybricks/database/expression"
	dbtesting "github.com/gaborage/querybricks/database/testing"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

const (
	usersTable = "users"
	postsTable = "posts"
)

type User struct {
	BaseModel
}

var userDefinition = &Definition{
	Table:  usersTable,
	Fields: []string{"name", "age"},
	Casts:  map[string]Cast{"age": CastInt},
	Relationships: map[string]Relationship{
		"posts": {Kind: HasMany, Related: (*Post)(nil), ForeignKey: "userId"},
	},
}

func (*User) Definition() *Definition { return userDefinition }

type Post struct {
	BaseModel
}

var postDefinition = &Definition{
	Table:  postsTable,
	Fields: []string{"title", "userId"},
	Relationships: map[string]Relationship{
		"author": {Kind: BelongsTo, Related: (*User)(nil), LocalKey: "userId"},
	},
}

func (*Post) Definition() *Definition { return postDefinition }

// Document is bound to a document store in the MongoDB tests.
type Document struct {
	BaseModel
}

var documentDefinition = &Definition{
	Table:  "documents",
	Fields: []string{"title", "tags"},
	Casts:  map[string]Cast{"tags": CastArray},
}

func (*Document) Definition() *Definition { return documentDefinition }

func newUsers(db *dbtesting.TestDB) *Builder[*User] {
	return NewBuilder[*User](db)
}

func userRows() *dbtesting.RowSet {
	return dbtesting.NewRowSet("id", "name", "age").
		AddRow(int64(1), "Alice", int64(30)).
		AddRow(int64(2), "Bob", int64(25))
}

// lastSQL returns the SQL of the most recent request recorded by db.
func lastSQL(t *testing.T, db *dbtesting.TestDB) string {
	t.Helper()
	log := db.RequestLog()
	if len(log) == 0 {
		t.Fatal("no request was executed")
	}
	return log[len(log)-1].Request.SQL
}

func lastRequest(t *testing.T, db *dbtesting.TestDB) *dbtypes.Request {
	t.Helper()
	log := db.RequestLog()
	if len(log) == 0 {
		t.Fatal("no request was executed")
	}
	return log[len(log)-1].Request
}

// stubResolver answers every relationship with a fixed value.
type stubResolver struct {
	value any
	err   error
	calls []string
}

func (r *stubResolver) Resolve(_ context.Context, _ Model, name string) (any, error) {
	r.calls = append(r.calls, name)
	return r.value, r.err
}

func whereColumns(tree *expression.Tree) []string {
	var out []string
	for _, w := range tree.Wheres() {
		out = append(out, w.Column)
	}
	return out
}
