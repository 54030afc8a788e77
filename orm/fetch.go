package orm

import (
	"context"
	"fmt"
	"strings"

	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// joinSeparator separates the join target from the column in aliases of joined columns.
const joinSeparator = "__"

// All returns every row of the table. Where clauses and paging are ignored; selection,
// joins and ordering still apply.
func (b *Builder[M]) All(ctx context.Context) (*Collection[M], error) {
	tree := b.tree.Clone().SetWheres(nil).SetLimit(nil).SetOffset(nil)
	return b.collect(ctx, tree)
}

// Get returns every row matching the expression.
func (b *Builder[M]) Get(ctx context.Context) (*Collection[M], error) {
	return b.collect(ctx, b.tree)
}

// First returns the first matching model in the current (or natural) order, or the zero
// M when nothing matches.
func (b *Builder[M]) First(ctx context.Context) (M, error) {
	return b.one(ctx, b.firstTree())
}

// Last returns the last matching model: the current ordering is reversed and one row is
// taken. Without ordering keys the identity attribute, descending, is used.
func (b *Builder[M]) Last(ctx context.Context) (M, error) {
	return b.one(ctx, b.lastTree())
}

// FirstOrFail is First returning a *dbtypes.ModelNotFoundError on a miss.
func (b *Builder[M]) FirstOrFail(ctx context.Context) (M, error) {
	return b.orFail(b.First(ctx))
}

// LastOrFail is Last returning a *dbtypes.ModelNotFoundError on a miss.
func (b *Builder[M]) LastOrFail(ctx context.Context) (M, error) {
	return b.orFail(b.Last(ctx))
}

// Find looks a model up by identity. Pending where clauses, ordering and paging are
// ignored. A miss returns the zero M and no error.
func (b *Builder[M]) Find(ctx context.Context, id any) (M, error) {
	return b.one(ctx, b.findTree(id))
}

// FindOrFail is Find returning a *dbtypes.ModelNotFoundError on a miss.
func (b *Builder[M]) FindOrFail(ctx context.Context, id any) (M, error) {
	m, err := b.Find(ctx, id)
	if err != nil {
		return m, err
	}
	if isZero(m) {
		return m, &dbtypes.ModelNotFoundError{Table: b.tree.Table(), ID: id}
	}
	return m, nil
}

func (b *Builder[M]) orFail(m M, err error) (M, error) {
	if err != nil {
		return m, err
	}
	if isZero(m) {
		return m, &dbtypes.ModelNotFoundError{Table: b.tree.Table()}
	}
	return m, nil
}

func isZero[M Model](m M) bool {
	var zero M
	return any(m) == any(zero)
}

func limitOne(tree *expression.Tree) *expression.Tree {
	one := uint64(1)
	return tree.SetLimit(&one)
}

func (b *Builder[M]) firstTree() *expression.Tree {
	return limitOne(b.tree.Clone())
}

func (b *Builder[M]) lastTree() *expression.Tree {
	tree := b.tree.Clone()
	orders := tree.OrderBy()
	if len(orders) == 0 {
		orders = []expression.OrderBy{{Column: b.def.IDName(), Direction: expression.Desc}}
	} else {
		for i := range orders {
			orders[i].Direction = orders[i].Direction.Reverse()
		}
	}
	return limitOne(tree.SetOrderBy(orders))
}

func (b *Builder[M]) findTree(id any) *expression.Tree {
	tree := b.tree.Clone().SetWheres(nil).SetOrderBy(nil).SetOffset(nil)
	tree.AddWhere(expression.Where{Column: b.def.IDName(), Operator: expression.Eq, Value: id})
	return limitOne(tree)
}

func (b *Builder[M]) one(ctx context.Context, tree *expression.Tree) (M, error) {
	var zero M
	models, err := b.fetch(ctx, tree)
	if err != nil || len(models) == 0 {
		return zero, err
	}
	return models[0], nil
}

func (b *Builder[M]) collect(ctx context.Context, tree *expression.Tree) (*Collection[M], error) {
	models, err := b.fetch(ctx, tree)
	if err != nil {
		return nil, err
	}
	return &Collection[M]{items: models}, nil
}

func (b *Builder[M]) fetch(ctx context.Context, tree *expression.Tree) ([]M, error) {
	s, err := b.session(ctx)
	if err != nil {
		return nil, err
	}
	return b.fetchWith(ctx, s, tree)
}

// fetchWith runs a select for tree on an already resolved session and hydrates the rows.
func (b *Builder[M]) fetchWith(ctx context.Context, s session, tree *expression.Tree) ([]M, error) {
	req, err := s.compiler.Select(b.prepare(s, tree))
	if err != nil {
		return nil, err
	}
	res, err := s.exec.Execute(ctx, req)
	if err != nil {
		return nil, dbtypes.NewQueryExecutionError(req, err)
	}
	return b.hydrate(ctx, s, res.Rows)
}

// prepare returns the tree that is actually compiled: the identity attribute is kept in
// explicit projections, joined models are selected under their target and attribute
// names are mapped to storage names.
func (b *Builder[M]) prepare(s session, tree *expression.Tree) *expression.Tree {
	out := storageTree(tree.Clone(), s.norm)
	cols := out.Columns()
	explicit := len(cols) > 0

	if explicit && out.Distinct() == nil && len(out.GroupBy()) == 0 {
		id := s.norm.NormalizeIDProperty(b.def.IDName())
		if !out.HasColumn(id) {
			out.SetColumns(append([]expression.Column{{Name: id}}, cols...))
		}
	}

	for _, j := range out.Joins() {
		related, ok := b.joined[j.Target]
		if !ok || j.Kind == expression.CrossJoin {
			continue
		}
		if s.documentStore() {
			// lookups already nest the related document under the target
			if explicit && !out.HasColumn(j.Target) {
				out.AddColumn(expression.Column{Name: j.Target, Preformatted: true})
			}
			continue
		}
		if !explicit && len(out.Columns()) == 0 {
			out.AddColumn(expression.Column{Name: "*", Table: out.TableRef()})
		}
		for _, field := range related.Columns() {
			out.AddColumn(expression.Column{Name: field, Table: j.RelatedRef(), As: j.Target + joinSeparator + field})
		}
	}
	return out
}

// storageTree renames the identity attribute of the tree's own table wherever it is
// referenced. It only changes anything on document stores.
func storageTree(tree *expression.Tree, norm *Normalizer) *expression.Tree {
	if !norm.documentStore() {
		return tree
	}
	ref := tree.TableRef()
	own := func(table string) bool { return table == "" || table == ref || table == tree.Table() }

	cols := tree.Columns()
	for i := range cols {
		if own(cols[i].Table) && !cols[i].Preformatted {
			cols[i].Name = norm.NormalizeIDProperty(cols[i].Name)
		}
	}
	tree.SetColumns(cols)

	wheres := tree.Wheres()
	for i := range wheres {
		if !wheres[i].IsRaw() && own(wheres[i].Table) {
			wheres[i].Column = norm.NormalizeIDProperty(wheres[i].Column)
		}
	}
	tree.SetWheres(wheres)

	orders := tree.OrderBy()
	for i := range orders {
		orders[i].Column = norm.NormalizeIDProperty(orders[i].Column)
	}
	tree.SetOrderBy(orders)

	groups := tree.GroupBy()
	for i := range groups {
		if own(groups[i].Table) {
			groups[i].Column = norm.NormalizeIDProperty(groups[i].Column)
		}
	}
	tree.SetGroupBy(groups)

	if d := tree.Distinct(); d != nil {
		for i := range d.Columns {
			if own(d.Columns[i].Table) {
				d.Columns[i].Name = norm.NormalizeIDProperty(d.Columns[i].Name)
			}
		}
		tree.SetDistinct(d)
	}
	return tree
}

// hydrate turns rows into models, nesting joined columns under their target and
// resolving eager loads.
func (b *Builder[M]) hydrate(ctx context.Context, s session, rows []dbtypes.Row) ([]M, error) {
	models := make([]M, 0, len(rows))
	for _, row := range rows {
		row = b.nestJoined(s, row)
		attrs := s.norm.DenormalizeDocuments(row)[0]
		m := b.newModel()
		m.Fill(attrs)
		models = append(models, m)
	}
	if err := b.resolveRelationships(ctx, s, models); err != nil {
		return nil, err
	}
	return models, nil
}

// nestJoined moves the columns of every joined model under its target and
// denormalizes them with the joined model's definition.
func (b *Builder[M]) nestJoined(s session, row dbtypes.Row) dbtypes.Row {
	if len(b.joined) == 0 {
		return row
	}
	out := make(dbtypes.Row, len(row))
	nested := make(map[string]dbtypes.Row, len(b.joined))

	for key, value := range row {
		target, column, ok := strings.Cut(key, joinSeparator)
		if _, joined := b.joined[target]; ok && joined && !s.documentStore() {
			if nested[target] == nil {
				nested[target] = dbtypes.Row{}
			}
			nested[target][column] = value
			continue
		}
		out[key] = value
	}

	for target, def := range b.joined {
		norm := NewNormalizer(def, s.exec.Capabilities())
		var related dbtypes.Row
		if s.documentStore() {
			related, _ = out[target].(map[string]any)
		} else {
			related = nested[target]
		}
		if allNil(related) {
			if _, present := out[target]; present || nested[target] != nil {
				out[target] = nil
			}
			continue
		}
		out[target] = map[string]any(norm.DenormalizeDocuments(related)[0])
	}
	return out
}

func allNil(row dbtypes.Row) bool {
	for _, v := range row {
		if v != nil {
			return false
		}
	}
	return true
}

func (b *Builder[M]) resolveRelationships(ctx context.Context, s session, models []M) error {
	if len(b.with) == 0 || len(models) == 0 {
		return nil
	}
	resolver := b.resolver
	if resolver == nil {
		resolver = NewQueryResolver(s.exec, s.compiler)
	}
	for _, m := range models {
		for _, name := range b.with {
			related, err := resolver.Resolve(ctx, m, name)
			if err != nil {
				b.log.Error().Err(err).
					Str("table", b.def.Table).
					Str("relationship", name).
					Msg("Failed to resolve relationship")
				return fmt.Errorf("resolve %s.%s: %w", b.def.Table, name, err)
			}
			m.Set(name, related)
		}
	}
	return nil
}

// Count counts matching rows, or the non-null values of column when one is given.
// The expression is left untouched.
func (b *Builder[M]) Count(ctx context.Context, column ...string) (int64, error) {
	col := ""
	if len(column) > 0 {
		col = column[0]
	}
	v, err := b.aggregate(ctx, expression.Count, col)
	if err != nil || v == nil {
		return 0, err
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("count result %v: %w", v, err)
	}
	return n, nil
}

// Max returns the largest value of column, 0 when no row matches.
func (b *Builder[M]) Max(ctx context.Context, column string) (float64, error) {
	return b.numericAggregate(ctx, expression.Max, column)
}

// Min returns the smallest value of column, 0 when no row matches.
func (b *Builder[M]) Min(ctx context.Context, column string) (float64, error) {
	return b.numericAggregate(ctx, expression.Min, column)
}

// Avg returns the mean of column, 0 when no row matches.
func (b *Builder[M]) Avg(ctx context.Context, column string) (float64, error) {
	return b.numericAggregate(ctx, expression.Avg, column)
}

// Sum returns the total of column, 0 when no row matches.
func (b *Builder[M]) Sum(ctx context.Context, column string) (float64, error) {
	return b.numericAggregate(ctx, expression.Sum, column)
}

func (b *Builder[M]) numericAggregate(ctx context.Context, fn expression.AggregateFunc, column string) (float64, error) {
	if strings.TrimSpace(column) == "" {
		return 0, dbtypes.InvalidArgumentf("%s requires a column", fn)
	}
	v, err := b.aggregate(ctx, fn, column)
	if err != nil || v == nil {
		return 0, err
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s result %v: %w", fn, v, err)
	}
	return f, nil
}

// aggregate compiles fn on a copy of the tree and returns the raw aggregate value.
func (b *Builder[M]) aggregate(ctx context.Context, fn expression.AggregateFunc, column string) (any, error) {
	s, err := b.session(ctx)
	if err != nil {
		return nil, err
	}
	if column != "" {
		column = s.norm.NormalizeIDProperty(column)
	}
	req, err := s.compiler.Aggregate(storageTree(b.tree.Clone(), s.norm), fn, column)
	if err != nil {
		return nil, err
	}
	res, err := s.exec.Execute(ctx, req)
	if err != nil {
		return nil, dbtypes.NewQueryExecutionError(req, err)
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	return res.Rows[0][dbtypes.AggregateAlias], nil
}
