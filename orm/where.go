package orm

import (
	"slices"
	"strings"

	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// whereCall is a where invocation resolved to its canonical shape before it touches
// the tree.
type whereCall struct {
	column   string
	operator expression.Operator
	value    any
	logical  expression.Logical
}

// resolveWhere accepts (value), (operator, value) and (operator, value, logical).
func resolveWhere(column string, args []any) (whereCall, error) {
	call := whereCall{column: column, operator: expression.Eq, logical: expression.And}
	if strings.TrimSpace(column) == "" {
		return call, dbtypes.InvalidArgumentf("where requires a column")
	}

	switch len(args) {
	case 1:
		call.value = args[0]
	case 2, 3:
		op, err := toOperator(args[0])
		if err != nil {
			return call, err
		}
		call.operator = op
		call.value = args[1]
		if len(args) == 3 {
			logical, err := toLogical(args[2])
			if err != nil {
				return call, err
			}
			call.logical = logical
		}
	default:
		return call, dbtypes.InvalidArgumentf("where on %q takes 1 to 3 arguments after the column, got %d", column, len(args))
	}
	return call, nil
}

func toOperator(v any) (expression.Operator, error) {
	switch op := v.(type) {
	case expression.Operator:
		if !op.Valid() {
			return "", dbtypes.InvalidArgumentf("unsupported operator %q", op)
		}
		return op, nil
	case string:
		parsed, ok := expression.ParseOperator(op)
		if !ok {
			return "", dbtypes.InvalidArgumentf("unsupported operator %q", op)
		}
		return parsed, nil
	default:
		return "", dbtypes.InvalidArgumentf("operator must be a string, got %T", v)
	}
}

func toLogical(v any) (expression.Logical, error) {
	var s string
	switch l := v.(type) {
	case expression.Logical:
		s = string(l)
	case string:
		s = l
	default:
		return "", dbtypes.InvalidArgumentf("logical operator must be a string, got %T", v)
	}
	switch expression.Logical(strings.ToLower(strings.TrimSpace(s))) {
	case expression.And:
		return expression.And, nil
	case expression.Or:
		return expression.Or, nil
	}
	return "", dbtypes.InvalidArgumentf("unsupported logical operator %q", s)
}

// addWhere validates the clause and appends it to the chain.
func (b *Builder[M]) addWhere(call whereCall) *Builder[M] {
	w := expression.Where{
		Column:   call.column,
		Operator: call.operator,
		Value:    call.value,
		Logical:  call.logical,
	}
	if err := expression.ValidateWhere(w); err != nil {
		return b.fail(err)
	}
	b.tree.AddWhere(w)
	return b
}

func (b *Builder[M]) where(column string, op expression.Operator, value any) *Builder[M] {
	return b.addWhere(whereCall{column: column, operator: op, value: value, logical: expression.And})
}

// Where adds a clause joined with "and":
//
//	Where("name", "Alice")             // name = 'Alice'
//	Where("age", ">", 30)              // age > 30
//	Where("age", "<", 18, "or")        // ... OR age < 18
func (b *Builder[M]) Where(column string, args ...any) *Builder[M] {
	call, err := resolveWhere(column, args)
	if err != nil {
		return b.fail(err)
	}
	return b.addWhere(call)
}

// OrWhere is Where joined with "or".
func (b *Builder[M]) OrWhere(column string, args ...any) *Builder[M] {
	call, err := resolveWhere(column, args)
	if err != nil {
		return b.fail(err)
	}
	call.logical = expression.Or
	return b.addWhere(call)
}

// WhereMap adds one clause per key, in key order, joined with "and". The operator
// defaults to "=".
func (b *Builder[M]) WhereMap(filters map[string]any, operator ...string) *Builder[M] {
	op := expression.Eq
	if len(operator) > 0 {
		parsed, err := toOperator(operator[0])
		if err != nil {
			return b.fail(err)
		}
		op = parsed
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.where(k, op, filters[k])
	}
	return b
}

// WhereIn requires a non-empty slice of values.
func (b *Builder[M]) WhereIn(column string, values any) *Builder[M] {
	return b.where(column, expression.In, values)
}

// WhereNotIn requires a non-empty slice of values.
func (b *Builder[M]) WhereNotIn(column string, values any) *Builder[M] {
	return b.where(column, expression.NotIn, values)
}

// WhereLike matches a LIKE pattern where % is any run of characters and _ one character.
func (b *Builder[M]) WhereLike(column, pattern string) *Builder[M] {
	return b.where(column, expression.Like, pattern)
}

// WhereNotLike is the negation of WhereLike.
func (b *Builder[M]) WhereNotLike(column, pattern string) *Builder[M] {
	return b.where(column, expression.NotLike, pattern)
}

// WhereNull matches rows where column is null.
func (b *Builder[M]) WhereNull(column string) *Builder[M] {
	return b.where(column, expression.IsNull, nil)
}

// WhereNotNull matches rows where column is not null.
func (b *Builder[M]) WhereNotNull(column string) *Builder[M] {
	return b.where(column, expression.IsNotNull, nil)
}

// WhereBetween requires a range of exactly two values, bounds inclusive.
func (b *Builder[M]) WhereBetween(column string, bounds any) *Builder[M] {
	return b.where(column, expression.Between, bounds)
}

// WhereNotBetween requires a range of exactly two values.
func (b *Builder[M]) WhereNotBetween(column string, bounds any) *Builder[M] {
	return b.where(column, expression.NotBetween, bounds)
}

// WhereRaw injects an opaque predicate with positional bindings. The fragment is not
// validated; callers own the safety of what they pass.
func (b *Builder[M]) WhereRaw(fragment any, args ...any) *Builder[M] {
	if fragment == nil {
		return b.fail(dbtypes.InvalidArgumentf("raw where cannot be nil"))
	}
	b.tree.AddWhere(expression.Where{Raw: &expression.Raw{SQL: fragment, Args: args}, Logical: expression.And})
	return b
}

// Join adds an inner join on related. Columns of the related model are nested under
// target on hydration; an empty target uses the related table name.
func (b *Builder[M]) Join(related Definer, localColumn, relatedColumn, target string) *Builder[M] {
	return b.join(expression.InnerJoin, related, localColumn, relatedColumn, target)
}

// LeftJoin is Join keeping rows without a related match.
func (b *Builder[M]) LeftJoin(related Definer, localColumn, relatedColumn, target string) *Builder[M] {
	return b.join(expression.LeftJoin, related, localColumn, relatedColumn, target)
}

// RightJoin is Join keeping related rows without a local match.
func (b *Builder[M]) RightJoin(related Definer, localColumn, relatedColumn, target string) *Builder[M] {
	return b.join(expression.RightJoin, related, localColumn, relatedColumn, target)
}

// FullJoin keeps unmatched rows of both sides.
func (b *Builder[M]) FullJoin(related Definer, localColumn, relatedColumn, target string) *Builder[M] {
	return b.join(expression.FullJoin, related, localColumn, relatedColumn, target)
}

// CrossJoin joins every row of related. Nothing is nested on hydration.
func (b *Builder[M]) CrossJoin(related Definer) *Builder[M] {
	def, err := relatedDefinition(related)
	if err != nil {
		return b.fail(err)
	}
	b.tree.AddJoin(expression.Join{
		Kind:         expression.CrossJoin,
		LocalTable:   b.tree.Table(),
		LocalAlias:   b.tree.Alias(),
		RelatedTable: def.Table,
	})
	return b
}

func (b *Builder[M]) join(kind expression.JoinKind, related Definer, localColumn, relatedColumn, target string) *Builder[M] {
	def, err := relatedDefinition(related)
	if err != nil {
		return b.fail(err)
	}
	if localColumn == "" || relatedColumn == "" {
		return b.fail(dbtypes.InvalidArgumentf("%s join on %q requires local and related columns", kind, def.Table))
	}
	if target == "" {
		target = def.Table
	}
	if _, taken := b.joined[target]; taken {
		return b.fail(dbtypes.InvalidArgumentf("join target %q is already used", target))
	}

	j := expression.Join{
		Kind:          kind,
		LocalTable:    b.tree.Table(),
		LocalAlias:    b.tree.Alias(),
		RelatedTable:  def.Table,
		LocalColumn:   localColumn,
		RelatedColumn: relatedColumn,
		Target:        target,
	}
	if target != def.Table {
		// the target is also the table alias
		j.RelatedAlias = target
	}
	b.tree.AddJoin(j)
	b.joined[target] = def
	return b
}

func relatedDefinition(related Definer) (*Definition, error) {
	if related == nil {
		return nil, dbtypes.InvalidArgumentf("join requires a related model")
	}
	def := related.Definition()
	if def == nil || def.Table == "" {
		return nil, dbtypes.ErrMissingTable
	}
	return def, nil
}

// With eager loads the named relationships on every hydrated model.
func (b *Builder[M]) With(relationships ...string) *Builder[M] {
	for _, name := range relationships {
		if _, ok := b.def.Relationships[name]; !ok {
			return b.fail(dbtypes.InvalidArgumentf("%s has no relationship %q", b.def.Table, name))
		}
		if !slices.Contains(b.with, name) {
			b.with = append(b.with, name)
		}
	}
	return b
}

// OrderBy appends an ordering key. The direction defaults to ascending.
func (b *Builder[M]) OrderBy(column string, direction ...string) *Builder[M] {
	if strings.TrimSpace(column) == "" {
		return b.fail(dbtypes.InvalidArgumentf("order by requires a column"))
	}
	dir := expression.Asc
	if len(direction) > 0 {
		d := strings.ToLower(strings.TrimSpace(direction[0]))
		if d != string(expression.Asc) && d != string(expression.Desc) {
			return b.fail(dbtypes.InvalidArgumentf("unsupported order direction %q", direction[0]))
		}
		dir = expression.ParseDirection(d)
	}
	b.tree.AddOrderBy(expression.OrderBy{Column: column, Direction: dir})
	return b
}

// Latest orders by column, or the model's timestamp attribute, descending.
func (b *Builder[M]) Latest(column ...string) *Builder[M] {
	return b.OrderBy(b.timestampColumn(column), string(expression.Desc))
}

// Newest is Latest.
func (b *Builder[M]) Newest(column ...string) *Builder[M] {
	return b.Latest(column...)
}

// Oldest orders by column, or the model's timestamp attribute, ascending.
func (b *Builder[M]) Oldest(column ...string) *Builder[M] {
	return b.OrderBy(b.timestampColumn(column), string(expression.Asc))
}

func (b *Builder[M]) timestampColumn(column []string) string {
	if len(column) > 0 && column[0] != "" {
		return column[0]
	}
	return b.def.TimestampName()
}

// GroupBy appends grouping keys.
func (b *Builder[M]) GroupBy(columns ...string) *Builder[M] {
	for _, c := range columns {
		if strings.TrimSpace(c) == "" {
			return b.fail(dbtypes.InvalidArgumentf("group by requires a column"))
		}
		g := expression.GroupBy{Column: c}
		if table, column, ok := strings.Cut(c, "."); ok {
			g.Table, g.Column = table, column
		}
		b.tree.AddGroupBy(g)
	}
	return b
}

// Limit caps the number of rows, replacing any previous cap.
func (b *Builder[M]) Limit(n int) *Builder[M] {
	if n < 0 {
		return b.fail(dbtypes.InvalidArgumentf("limit must be non-negative, got %d", n))
	}
	v := uint64(n)
	b.tree.SetLimit(&v)
	return b
}

// Take is Limit.
func (b *Builder[M]) Take(n int) *Builder[M] {
	return b.Limit(n)
}

// Offset sets the first row returned, replacing any previous offset.
func (b *Builder[M]) Offset(n int) *Builder[M] {
	if n < 0 {
		return b.fail(dbtypes.InvalidArgumentf("offset must be non-negative, got %d", n))
	}
	v := uint64(n)
	b.tree.SetOffset(&v)
	return b
}

// Skip is Offset.
func (b *Builder[M]) Skip(n int) *Builder[M] {
	return b.Offset(n)
}
