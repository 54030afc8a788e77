package builder

import (
	"fmt"

	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// columnComparison is a sqlizer comparing two already-quoted columns.
// Unlike squirrel.Eq it never turns the right side into a placeholder.
type columnComparison struct {
	leftColumn  string
	operator    string
	rightColumn string
}

//nolint:revive // ToSql is required by squirrel.Sqlizer interface (lowercase 's')
func (cc columnComparison) ToSql() (sql string, args []any, err error) {
	return fmt.Sprintf("%s %s %s", cc.leftColumn, cc.operator, cc.rightColumn), []any{}, nil
}

var joinKeywords = map[expression.JoinKind]string{
	expression.InnerJoin: "INNER JOIN",
	expression.LeftJoin:  "LEFT JOIN",
	expression.RightJoin: "RIGHT JOIN",
	expression.FullJoin:  "FULL OUTER JOIN",
	expression.CrossJoin: "CROSS JOIN",
}

// joinClause renders one join. ref is the tree's own table reference, used when the join
// does not name its local table.
func (c *Compiler) joinClause(j expression.Join, ref string) (string, []any, error) {
	keyword, ok := joinKeywords[j.Kind]
	if !ok {
		return "", nil, dbtypes.InvalidArgumentf("unsupported join kind %q", j.Kind)
	}
	if j.Kind == expression.RightJoin && !c.dialect.caps.Has(dbtypes.CapRightJoin) ||
		j.Kind == expression.FullJoin && !c.dialect.caps.Has(dbtypes.CapFullJoin) {
		return "", nil, fmt.Errorf("%w: %s join on %s", dbtypes.ErrUnsupported, j.Kind, c.dialect.vendor)
	}

	related := c.tableWithAlias(j.RelatedTable, j.RelatedAlias)
	if j.Kind == expression.CrossJoin {
		return keyword + " " + related, nil, nil
	}

	local := j.LocalRef()
	if local == "" {
		local = ref
	}
	left := c.EscapeIdentifier(qualify(j.LocalColumn, local))
	if j.Cast != "" {
		left = castSQL(left, j.Cast)
	}
	on, args, err := columnComparison{
		leftColumn:  left,
		operator:    "=",
		rightColumn: c.EscapeIdentifier(qualify(j.RelatedColumn, j.RelatedRef())),
	}.ToSql()
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s %s ON %s", keyword, related, on), args, nil
}
