package builder

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// whereChain folds the clauses left to right. Each clause is joined to everything
// before it by its own logical operator, so the first clause's operator is ignored.
// There is no AND-over-OR precedence.
//
// Placeholders stay as "?" here; squirrel's StatementBuilder rewrites them once the full
// statement is built so numbering is sequential across every clause.
func (c *Compiler) whereChain(wheres []expression.Where, ref string) (squirrel.Sqlizer, error) {
	var acc squirrel.Sqlizer
	for _, w := range wheres {
		next, err := c.filter(w, ref)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = next
			continue
		}
		if w.Logical == expression.Or {
			acc = squirrel.Or{acc, next}
		} else {
			acc = squirrel.And{acc, next}
		}
	}
	return acc, nil
}

// filter compiles a single clause into a sqlizer.
func (c *Compiler) filter(w expression.Where, ref string) (squirrel.Sqlizer, error) {
	if w.IsRaw() {
		sql, ok := w.Raw.SQL.(string)
		if !ok || strings.TrimSpace(sql) == "" {
			return nil, dbtypes.InvalidArgumentf("raw where for %s must be a non-empty string, got %T", c.dialect.vendor, w.Raw.SQL)
		}
		return squirrel.Expr("("+sql+")", w.Raw.Args...), nil
	}
	if err := expression.ValidateWhere(w); err != nil {
		return nil, err
	}

	table := w.Table
	if table == "" {
		table = ref
	}
	col := c.EscapeIdentifier(qualify(w.Column, table))
	if w.Cast != "" {
		col = castSQL(col, w.Cast)
	}

	switch op := w.Operator; {
	case op == expression.IsNull:
		return squirrel.Expr(col + " IS NULL"), nil
	case op == expression.IsNotNull:
		return squirrel.Expr(col + " IS NOT NULL"), nil
	case op == expression.Eq && w.Value == nil:
		return squirrel.Expr(col + " IS NULL"), nil
	case (op == expression.NotEq || op == expression.NotEqAlt) && w.Value == nil:
		return squirrel.Expr(col + " IS NOT NULL"), nil
	case op.IsSet():
		values, _ := expression.Values(w.Value)
		return squirrel.Expr(fmt.Sprintf("%s %s (%s)", col, strings.ToUpper(string(op)), placeholders(len(values))), values...), nil
	case op.IsRange():
		values, _ := expression.Values(w.Value)
		return squirrel.Expr(fmt.Sprintf("%s %s ? AND ?", col, strings.ToUpper(string(op))), values[0], values[1]), nil
	default:
		return squirrel.Expr(fmt.Sprintf("%s %s ?", col, strings.ToUpper(string(op))), w.Value), nil
	}
}
