package expression

import "github.com/gaborage/querybricks/database/types"

// AggregateFunc is an aggregate computed by Compiler.Aggregate.
type AggregateFunc string

const (
	Count AggregateFunc = "count"
	Max   AggregateFunc = "max"
	Min   AggregateFunc = "min"
	Avg   AggregateFunc = "avg"
	Sum   AggregateFunc = "sum"
)

// Compiler translates a tree snapshot into a backend-executable request.
//
// Implementations must be pure and deterministic: identical trees compile to identical
// requests. Trees with no table are rejected with types.ErrMissingTable before anything
// else is compiled.
type Compiler interface {
	Vendor() types.Vendor

	Select(tree *Tree) (*types.Request, error)

	// Aggregate ignores ordering and paging. An empty column means "*" for Count.
	Aggregate(tree *Tree, fn AggregateFunc, column string) (*types.Request, error)

	// Insert compiles every row into one request. Column order is the sorted union
	// of the rows' keys; rows missing a key bind NULL.
	Insert(table string, rows []types.Row, returning bool) (*types.Request, error)

	Update(tree *Tree, values types.Row) (*types.Request, error)
	Delete(tree *Tree) (*types.Request, error)
}
