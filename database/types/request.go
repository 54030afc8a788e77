//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"fmt"
	"strings"
)

// Operation classifies a compiled request.
type Operation string

const (
	OpSelect    Operation = "select"
	OpAggregate Operation = "aggregate"
	OpInsert    Operation = "insert"
	OpUpdate    Operation = "update"
	OpDelete    Operation = "delete"
	OpRaw       Operation = "raw"
)

// Reads reports whether the operation produces rows.
func (o Operation) Reads() bool {
	return o == OpSelect || o == OpAggregate
}

// AggregateAlias is the output column every aggregate request projects its value into.
const AggregateAlias = "aggregate"

// Row is a single storage row keyed by column name.
type Row = map[string]any

// Request is the backend-executable form of an expression tree.
// SQL backends fill SQL and Args; document stores carry their native payload in Command.
type Request struct {
	Operation Operation
	Table     string
	SQL       string
	Args      []any
	Command   any

	// Returning is set on inserts compiled with a RETURNING clause.
	Returning bool
}

func (r *Request) String() string {
	if r == nil {
		return "<nil>"
	}
	if r.SQL != "" {
		if len(r.Args) == 0 {
			return r.SQL
		}
		return fmt.Sprintf("%s %v", r.SQL, r.Args)
	}
	if r.Command != nil {
		return fmt.Sprintf("%s %s %+v", strings.ToUpper(string(r.Operation)), r.Table, r.Command)
	}
	return fmt.Sprintf("%s %s", strings.ToUpper(string(r.Operation)), r.Table)
}

// Result is what a gateway returns for an executed request.
type Result struct {
	Rows         []Row
	RowsAffected int64

	// LastInsertID is only meaningful when HasLastInsertID is true.
	LastInsertID    int64
	HasLastInsertID bool

	// InsertedIDs holds identifiers assigned by document stores.
	InsertedIDs []any
}
