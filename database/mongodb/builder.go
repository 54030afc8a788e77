package mongodb

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Command is the compiled form of a tree for MongoDB.
// Reads with a Pipeline run as an aggregation; every other read runs as a find with
// Filter, Sort, Projection, Skip and Limit.
type Command struct {
	Collection string
	Filter     bson.D
	Pipeline   []bson.D
	Sort       bson.D
	Projection bson.D
	Skip       *int64
	Limit      *int64
	Documents  []bson.D
	Update     bson.D
}

// Compiler turns expression trees into Commands.
type Compiler struct{}

var _ expression.Compiler = (*Compiler)(nil)

// NewCompiler creates a MongoDB compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Vendor returns dbtypes.MongoDB.
func (c *Compiler) Vendor() dbtypes.Vendor {
	return dbtypes.MongoDB
}

// Capabilities returns the features a document store supports.
func (c *Compiler) Capabilities() dbtypes.CapabilitySet {
	return dbtypes.DefaultCapabilities(dbtypes.MongoDB)
}

// Select compiles a read. Joins, distinct, group by and raw selects need the
// aggregation framework; plain reads compile to a find.
func (c *Compiler) Select(tree *expression.Tree) (*dbtypes.Request, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}

	paths := newPathResolver(tree)
	lookups, err := lookupStages(tree, paths)
	if err != nil {
		return nil, err
	}
	filter, err := compileChain(tree.Wheres(), paths)
	if err != nil {
		return nil, err
	}
	projection, err := projectionDoc(tree.Columns(), paths)
	if err != nil {
		return nil, err
	}

	cmd := &Command{
		Collection: tree.Table(),
		Filter:     filter,
		Sort:       sortDoc(tree.OrderBy(), paths),
		Skip:       toInt64(tree.Offset()),
		Limit:      toInt64(tree.Limit()),
	}

	grouping, err := groupingKeys(tree, paths)
	if err != nil {
		return nil, err
	}
	rawStages, err := rawSelectStages(tree.RawSelects())
	if err != nil {
		return nil, err
	}

	if len(lookups) == 0 && grouping == nil && len(rawStages) == 0 {
		cmd.Projection = projection
		return newRequest(dbtypes.OpSelect, cmd), nil
	}

	pipeline := make([]bson.D, 0, len(lookups)+6)
	pipeline = append(pipeline, lookups...)
	if len(filter) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: filter}})
	}
	pipeline = append(pipeline, rawStages...)
	if grouping != nil {
		pipeline = append(pipeline, groupStages(grouping)...)
	}
	if len(cmd.Sort) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: cmd.Sort}})
	}
	if cmd.Skip != nil {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: *cmd.Skip}})
	}
	if cmd.Limit != nil {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: *cmd.Limit}})
	}
	if grouping == nil && len(projection) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: projection}})
	}

	cmd.Pipeline = pipeline
	return newRequest(dbtypes.OpSelect, cmd), nil
}

// Aggregate compiles fn(column) into a single-document pipeline projecting "aggregate".
// Ordering, grouping and paging are ignored.
func (c *Compiler) Aggregate(tree *expression.Tree, fn expression.AggregateFunc, column string) (*dbtypes.Request, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}

	paths := newPathResolver(tree)
	lookups, err := lookupStages(tree, paths)
	if err != nil {
		return nil, err
	}
	filter, err := compileChain(tree.Wheres(), paths)
	if err != nil {
		return nil, err
	}

	field := ""
	if column != "" && column != "*" {
		field = paths.field(column, "")
	}

	var accumulator bson.D
	switch fn {
	case expression.Count:
		accumulator = bson.D{{Key: "$sum", Value: 1}}
	case expression.Max, expression.Min, expression.Avg, expression.Sum:
		if field == "" {
			return nil, dbtypes.InvalidArgumentf("%s requires a column", fn)
		}
		accumulator = bson.D{{Key: "$" + string(fn), Value: "$" + field}}
	default:
		return nil, dbtypes.InvalidArgumentf("unsupported aggregate %q", fn)
	}

	pipeline := make([]bson.D, 0, len(lookups)+4)
	pipeline = append(pipeline, lookups...)
	if len(filter) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: filter}})
	}
	if fn == expression.Count && field != "" {
		// COUNT(col) skips nulls
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.D{{Key: field, Value: bson.D{{Key: "$ne", Value: nil}}}}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: dbtypes.AggregateAlias, Value: accumulator},
		}}},
		bson.D{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}}}},
	)

	return newRequest(dbtypes.OpAggregate, &Command{Collection: tree.Table(), Filter: filter, Pipeline: pipeline}), nil
}

// Insert compiles one document per row. Keys are emitted in sorted order; a key
// missing from a row is omitted from that document.
func (c *Compiler) Insert(table string, rows []dbtypes.Row, _ bool) (*dbtypes.Request, error) {
	if table == "" {
		return nil, dbtypes.ErrMissingTable
	}
	if len(rows) == 0 {
		return nil, dbtypes.InvalidArgumentf("insert into %q requires at least one document", table)
	}

	docs := make([]bson.D, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			return nil, dbtypes.InvalidArgumentf("insert into %q requires at least one field", table)
		}
		docs = append(docs, document(row, ""))
	}

	return newRequest(dbtypes.OpInsert, &Command{Collection: table, Documents: docs}), nil
}

// Update compiles a $set of values over every document matching the where chain.
// The identity field is never rewritten.
func (c *Compiler) Update(tree *expression.Tree, values dbtypes.Row) (*dbtypes.Request, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	if len(tree.Joins()) > 0 {
		return nil, dbtypes.ErrUnsupported
	}

	set := document(values, idField)
	if len(set) == 0 {
		return nil, dbtypes.InvalidArgumentf("update of %q requires at least one value", tree.Table())
	}

	filter, err := compileChain(tree.Wheres(), newPathResolver(tree))
	if err != nil {
		return nil, err
	}

	return newRequest(dbtypes.OpUpdate, &Command{
		Collection: tree.Table(),
		Filter:     filter,
		Update:     bson.D{{Key: "$set", Value: set}},
	}), nil
}

// Delete compiles a delete of every document matching the where chain.
func (c *Compiler) Delete(tree *expression.Tree) (*dbtypes.Request, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	if len(tree.Joins()) > 0 {
		return nil, dbtypes.ErrUnsupported
	}

	filter, err := compileChain(tree.Wheres(), newPathResolver(tree))
	if err != nil {
		return nil, err
	}
	return newRequest(dbtypes.OpDelete, &Command{Collection: tree.Table(), Filter: filter}), nil
}

func newRequest(op dbtypes.Operation, cmd *Command) *dbtypes.Request {
	return &dbtypes.Request{Operation: op, Table: cmd.Collection, Command: cmd}
}

// lookupStages compiles joins into $lookup + $unwind pairs. Unmatched documents are
// kept for left and full joins.
func lookupStages(tree *expression.Tree, paths *pathResolver) ([]bson.D, error) {
	joins := tree.Joins()
	stages := make([]bson.D, 0, 2*len(joins))
	for _, j := range joins {
		switch j.Kind {
		case expression.CrossJoin, expression.RightJoin:
			return nil, dbtypes.ErrUnsupported
		}
		if j.Cast != "" {
			return nil, dbtypes.ErrUnsupported
		}

		as := joinTarget(j)
		stages = append(stages,
			bson.D{{Key: "$lookup", Value: bson.D{
				{Key: "from", Value: j.RelatedTable},
				{Key: "localField", Value: paths.field(j.LocalColumn, j.LocalRef())},
				{Key: "foreignField", Value: j.RelatedColumn},
				{Key: "as", Value: as},
			}}},
			bson.D{{Key: "$unwind", Value: bson.D{
				{Key: "path", Value: "$" + as},
				{Key: "preserveNullAndEmptyArrays", Value: j.Kind != expression.InnerJoin},
			}}},
		)
	}
	return stages, nil
}

func joinTarget(j expression.Join) string {
	if j.Target != "" {
		return j.Target
	}
	return j.RelatedRef()
}

// groupingKeys returns the fields a distinct or group by collapses on, nil when the
// tree does neither.
func groupingKeys(tree *expression.Tree, paths *pathResolver) ([]string, error) {
	var keys []string
	if d := tree.Distinct(); d != nil {
		cols := d.Columns
		if d.All {
			cols = tree.Columns()
		}
		for _, col := range cols {
			if col.Name == "*" {
				return nil, dbtypes.ErrUnsupported
			}
			keys = append(keys, paths.field(col.Name, col.Table))
		}
		if len(keys) == 0 {
			return nil, dbtypes.ErrUnsupported
		}
		return keys, nil
	}
	for _, g := range tree.GroupBy() {
		keys = append(keys, paths.field(g.Column, g.Table))
	}
	return keys, nil
}

// groupStages collapses documents on keys and lifts the keys back to the top level.
func groupStages(keys []string) []bson.D {
	id := make(bson.D, 0, len(keys))
	for _, k := range keys {
		id = append(id, bson.E{Key: groupKeyName(k), Value: "$" + k})
	}
	return []bson.D{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: id}}}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$_id"}}}},
	}
}

// groupKeyName flattens dotted paths; group keys cannot contain dots.
func groupKeyName(path string) string {
	return strings.ReplaceAll(path, ".", "_")
}

// rawSelectStages turns raw selects into $addFields stages.
func rawSelectStages(raws []expression.Raw) ([]bson.D, error) {
	stages := make([]bson.D, 0, len(raws))
	for _, r := range raws {
		doc, err := rawDocument(r.SQL)
		if err != nil {
			return nil, err
		}
		stages = append(stages, bson.D{{Key: "$addFields", Value: doc}})
	}
	return stages, nil
}

func projectionDoc(cols []expression.Column, paths *pathResolver) (bson.D, error) {
	if len(cols) == 0 {
		return nil, nil
	}
	out := make(bson.D, 0, len(cols))
	for _, col := range cols {
		if col.Cast != "" {
			return nil, dbtypes.ErrUnsupported
		}
		if col.Name == "*" {
			return nil, nil
		}
		field := col.Name
		if !col.Preformatted {
			field = paths.field(col.Name, col.Table)
		}
		if col.As != "" && col.As != field {
			out = append(out, bson.E{Key: col.As, Value: "$" + field})
			continue
		}
		out = append(out, bson.E{Key: field, Value: 1})
	}
	return out, nil
}

func sortDoc(orders []expression.OrderBy, paths *pathResolver) bson.D {
	if len(orders) == 0 {
		return nil
	}
	out := make(bson.D, 0, len(orders))
	for _, o := range orders {
		dir := 1
		if o.Direction == expression.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: paths.field(o.Column, ""), Value: dir})
	}
	return out
}

func toInt64(n *uint64) *int64 {
	if n == nil {
		return nil
	}
	v := int64(*n) //nolint:gosec // paging values never approach MaxInt64
	return &v
}

// pathResolver maps table-qualified columns onto document paths. Columns of the root
// collection are top-level fields; columns of a joined collection live under the join
// target.
type pathResolver struct {
	root    map[string]bool
	targets map[string]string
}

func newPathResolver(tree *expression.Tree) *pathResolver {
	p := &pathResolver{
		root:    map[string]bool{tree.Table(): true},
		targets: make(map[string]string),
	}
	if alias := tree.Alias(); alias != "" {
		p.root[alias] = true
	}
	for _, j := range tree.Joins() {
		as := joinTarget(j)
		p.targets[j.RelatedRef()] = as
		p.targets[j.RelatedTable] = as
	}
	return p
}

func (p *pathResolver) field(column, table string) string {
	if table == "" {
		if before, after, ok := strings.Cut(column, "."); ok {
			table, column = before, after
		} else {
			return column
		}
	}
	if p.root[table] {
		return column
	}
	if as, ok := p.targets[table]; ok {
		return as + "." + column
	}
	return table + "." + column
}
