// Package builder compiles expression trees into vendor-specific SQL on top of squirrel.
package builder

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// dialect captures everything that differs between SQL backends.
type dialect struct {
	vendor     dbtypes.Vendor
	format     squirrel.PlaceholderFormat
	quoteOpen  byte
	quoteClose byte

	// tableAliasSep separates a table from its alias in FROM/JOIN clauses.
	tableAliasSep string
	caps          dbtypes.CapabilitySet

	paginate func(sb squirrel.SelectBuilder, limit, offset *uint64) squirrel.SelectBuilder
}

func (d dialect) quote(part string) string {
	closing := string(d.quoteClose)
	return string(d.quoteOpen) + strings.ReplaceAll(part, closing, closing+closing) + closing
}

// Compiler implements expression.Compiler for one SQL dialect.
// It is stateless and safe for concurrent use.
type Compiler struct {
	dialect dialect
	sb      squirrel.StatementBuilderType
}

var _ expression.Compiler = (*Compiler)(nil)

// NewCompiler creates a compiler for the given SQL vendor.
func NewCompiler(vendor dbtypes.Vendor) (*Compiler, error) {
	var d dialect
	switch vendor {
	case dbtypes.PostgreSQL:
		d = postgresDialect()
	case dbtypes.MySQL:
		d = mysqlDialect()
	case dbtypes.SQLite:
		d = sqliteDialect()
	case dbtypes.Oracle:
		d = oracleDialect()
	default:
		return nil, fmt.Errorf("%w: no SQL compiler for vendor %q", dbtypes.ErrUnsupported, vendor)
	}
	return &Compiler{
		dialect: d,
		sb:      squirrel.StatementBuilder.PlaceholderFormat(d.format),
	}, nil
}

// MustCompiler is NewCompiler for vendors known to be supported.
func MustCompiler(vendor dbtypes.Vendor) *Compiler {
	c, err := NewCompiler(vendor)
	if err != nil {
		panic(err)
	}
	return c
}

// Vendor returns the dialect's vendor.
func (c *Compiler) Vendor() dbtypes.Vendor {
	return c.dialect.vendor
}

// Capabilities returns what the dialect can express.
func (c *Compiler) Capabilities() dbtypes.CapabilitySet {
	return c.dialect.caps
}

// Select compiles a row-returning query.
func (c *Compiler) Select(tree *expression.Tree) (*dbtypes.Request, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}

	ref := c.qualifier(tree)
	columns, distinctOpts, distinct, err := c.projection(tree, ref)
	if err != nil {
		return nil, err
	}

	sb := c.sb.Select(columns...).From(c.tableWithAlias(tree.Table(), tree.Alias()))
	if distinctOpts != "" {
		sb = sb.Options(distinctOpts)
	} else if distinct {
		sb = sb.Distinct()
	}
	for _, raw := range tree.RawSelects() {
		sql, ok := raw.SQL.(string)
		if !ok {
			return nil, dbtypes.InvalidArgumentf("raw select for %s must be a string, got %T", c.dialect.vendor, raw.SQL)
		}
		sb = sb.Column(sql, raw.Args...)
	}

	sb, err = c.applyJoinsAndWheres(sb, tree, ref)
	if err != nil {
		return nil, err
	}
	for _, g := range tree.GroupBy() {
		table := g.Table
		if table == "" {
			table = ref
		}
		sb = sb.GroupBy(c.EscapeIdentifier(qualify(g.Column, table)))
	}
	for _, o := range tree.OrderBy() {
		sb = sb.OrderBy(c.orderKey(o, ref))
	}
	sb = c.dialect.paginate(sb, tree.Limit(), tree.Offset())

	return c.toRequest(dbtypes.OpSelect, tree.Table(), sb)
}

// Aggregate compiles fn(column) into a single-row query projecting AggregateAlias.
// Ordering, grouping and paging are dropped.
func (c *Compiler) Aggregate(tree *expression.Tree, fn expression.AggregateFunc, column string) (*dbtypes.Request, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}

	ref := c.qualifier(tree)
	var target string
	switch {
	case column == "" && fn == expression.Count:
		target = "*"
	case column == "":
		return nil, dbtypes.InvalidArgumentf("%s requires a column", fn)
	default:
		target = c.EscapeIdentifier(qualify(column, ref))
	}
	switch fn {
	case expression.Count, expression.Max, expression.Min, expression.Avg, expression.Sum:
	default:
		return nil, dbtypes.InvalidArgumentf("unsupported aggregate %q", fn)
	}

	projection := fmt.Sprintf("%s(%s) AS %s", strings.ToUpper(string(fn)), target, c.dialect.quote(dbtypes.AggregateAlias))
	sb := c.sb.Select(projection).From(c.tableWithAlias(tree.Table(), tree.Alias()))

	sb, err := c.applyJoinsAndWheres(sb, tree, ref)
	if err != nil {
		return nil, err
	}
	return c.toRequest(dbtypes.OpAggregate, tree.Table(), sb)
}

// Insert compiles a multi-row insert. Columns are the sorted union of the rows' keys.
func (c *Compiler) Insert(table string, rows []dbtypes.Row, returning bool) (*dbtypes.Request, error) {
	if table == "" {
		return nil, dbtypes.ErrMissingTable
	}
	if len(rows) == 0 {
		return nil, dbtypes.InvalidArgumentf("insert into %q requires at least one row", table)
	}
	keys := unionKeys(rows)
	if len(keys) == 0 {
		return nil, dbtypes.InvalidArgumentf("insert into %q requires at least one column", table)
	}

	ib := c.sb.Insert(c.EscapeIdentifier(table)).Columns(c.escapeIdentifiers(keys)...)
	for _, row := range rows {
		ib = ib.Values(valuesByKeyOrder(row, keys)...)
	}
	useReturning := returning && c.dialect.caps.Has(dbtypes.CapReturning)
	if useReturning {
		ib = ib.Suffix("RETURNING *")
	}

	sql, args, err := ib.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert for %s: %w", table, err)
	}
	return &dbtypes.Request{
		Operation: dbtypes.OpInsert,
		Table:     table,
		SQL:       sql,
		Args:      args,
		Returning: useReturning,
	}, nil
}

// Update compiles an update of every row matching the tree's where chain.
// SET columns are emitted in sorted order.
func (c *Compiler) Update(tree *expression.Tree, values dbtypes.Row) (*dbtypes.Request, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, dbtypes.InvalidArgumentf("update of %q requires at least one value", tree.Table())
	}
	if len(tree.Joins()) > 0 {
		return nil, fmt.Errorf("%w: update with joins on %s", dbtypes.ErrUnsupported, c.dialect.vendor)
	}

	ub := c.sb.Update(c.EscapeIdentifier(tree.Table()))
	for _, k := range sortedKeys(values) {
		ub = ub.Set(c.EscapeIdentifier(k), values[k])
	}
	where, err := c.whereChain(tree.Wheres(), "")
	if err != nil {
		return nil, err
	}
	if where != nil {
		ub = ub.Where(where)
	}

	return c.toRequest(dbtypes.OpUpdate, tree.Table(), ub)
}

// Delete compiles a delete of every row matching the tree's where chain.
func (c *Compiler) Delete(tree *expression.Tree) (*dbtypes.Request, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	if len(tree.Joins()) > 0 {
		return nil, fmt.Errorf("%w: delete with joins on %s", dbtypes.ErrUnsupported, c.dialect.vendor)
	}

	db := c.sb.Delete(c.EscapeIdentifier(tree.Table()))
	where, err := c.whereChain(tree.Wheres(), "")
	if err != nil {
		return nil, err
	}
	if where != nil {
		db = db.Where(where)
	}

	return c.toRequest(dbtypes.OpDelete, tree.Table(), db)
}

// qualifier is the reference used for unqualified columns. Only joined trees are qualified.
func (c *Compiler) qualifier(tree *expression.Tree) string {
	if len(tree.Joins()) == 0 {
		return ""
	}
	return tree.TableRef()
}

// projection returns the select list and how DISTINCT should be rendered.
func (c *Compiler) projection(tree *expression.Tree, ref string) (columns []string, distinctOpts string, distinct bool, err error) {
	for _, col := range tree.Columns() {
		columns = append(columns, c.columnSQL(col, ref))
	}

	if d := tree.Distinct(); d != nil {
		switch {
		case d.All || len(d.Columns) == 0:
			distinct = true
		case c.dialect.caps.Has(dbtypes.CapDistinctOn):
			keys := make([]string, len(d.Columns))
			for i, col := range d.Columns {
				col.As = ""
				keys[i] = c.columnSQL(col, ref)
			}
			distinctOpts = fmt.Sprintf("DISTINCT ON (%s)", strings.Join(keys, ", "))
		default:
			// Without DISTINCT ON the distinct columns become the projection.
			distinct = true
			columns = columns[:0]
			for _, col := range d.Columns {
				columns = append(columns, c.columnSQL(col, ref))
			}
		}
	}

	if len(columns) == 0 && len(tree.RawSelects()) == 0 {
		if ref != "" {
			columns = []string{c.EscapeIdentifier(ref) + ".*"}
		} else {
			columns = []string{"*"}
		}
	}
	return columns, distinctOpts, distinct, nil
}

func (c *Compiler) columnSQL(col expression.Column, ref string) string {
	var expr string
	switch {
	case col.Preformatted:
		expr = col.Name
	case col.Name == "*":
		table := col.Table
		if table == "" {
			table = ref
		}
		if table == "" {
			expr = "*"
		} else {
			expr = c.EscapeIdentifier(table) + ".*"
		}
	default:
		table := col.Table
		if table == "" {
			table = ref
		}
		expr = c.EscapeIdentifier(qualify(col.Name, table))
	}

	alias := col.As
	if col.Cast != "" {
		expr = castSQL(expr, col.Cast)
		if alias == "" && !col.Preformatted && col.Name != "*" {
			alias = col.Name[strings.LastIndex(col.Name, ".")+1:]
		}
	}
	if alias != "" {
		expr += " AS " + c.dialect.quote(alias)
	}
	return expr
}

func (c *Compiler) orderKey(o expression.OrderBy, ref string) string {
	dir := "ASC"
	if o.Direction == expression.Desc {
		dir = "DESC"
	}
	return c.EscapeIdentifier(qualify(o.Column, ref)) + " " + dir
}

func (c *Compiler) tableWithAlias(table, alias string) string {
	if alias == "" {
		return c.EscapeIdentifier(table)
	}
	return c.EscapeIdentifier(table) + c.dialect.tableAliasSep + c.dialect.quote(alias)
}

func (c *Compiler) applyJoinsAndWheres(sb squirrel.SelectBuilder, tree *expression.Tree, ref string) (squirrel.SelectBuilder, error) {
	for _, j := range tree.Joins() {
		clause, args, err := c.joinClause(j, ref)
		if err != nil {
			return sb, err
		}
		sb = sb.JoinClause(clause, args...)
	}
	where, err := c.whereChain(tree.Wheres(), ref)
	if err != nil {
		return sb, err
	}
	if where != nil {
		sb = sb.Where(where)
	}
	return sb, nil
}

type toSQLer interface {
	ToSql() (string, []any, error)
}

func (c *Compiler) toRequest(op dbtypes.Operation, table string, b toSQLer) (*dbtypes.Request, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s for %s: %w", op, table, err)
	}
	if args == nil {
		args = []any{}
	}
	return &dbtypes.Request{Operation: op, Table: table, SQL: sql, Args: args}, nil
}

func castSQL(expr, typ string) string {
	return fmt.Sprintf("CAST(%s AS %s)", expr, typ)
}
