package orm

import (
	"context"
	"fmt"
	"slices"

	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// RelationKind is the cardinality of a relationship.
type RelationKind string

const (
	// BelongsTo resolves to the single related model whose ForeignKey (default: its
	// identity) equals this model's LocalKey.
	BelongsTo RelationKind = "belongsTo"

	// HasMany resolves to every related model whose ForeignKey equals this model's
	// LocalKey (default: its identity).
	HasMany RelationKind = "hasMany"
)

// Relationship declares how a model reaches related rows.
type Relationship struct {
	Kind    RelationKind
	Related Definer

	LocalKey   string
	ForeignKey string

	// Filters are extra equality constraints on the related rows.
	Filters map[string]any
}

// RelationshipResolver loads a declared relationship for a hydrated model. It returns
// Attributes (or nil) for BelongsTo and []Attributes for HasMany.
type RelationshipResolver interface {
	Resolve(ctx context.Context, model Model, name string) (any, error)
}

// QueryResolver resolves relationships with one query per model through the same
// executor the parent rows came from, so it sees uncommitted writes of a transaction.
type QueryResolver struct {
	exec     dbtypes.Executor
	compiler expression.Compiler
}

var _ RelationshipResolver = (*QueryResolver)(nil)

// NewQueryResolver creates a resolver running on exec with requests compiled by compiler.
func NewQueryResolver(exec dbtypes.Executor, compiler expression.Compiler) *QueryResolver {
	return &QueryResolver{exec: exec, compiler: compiler}
}

// Resolve implements RelationshipResolver.
func (r *QueryResolver) Resolve(ctx context.Context, model Model, name string) (any, error) {
	def := model.Definition()
	rel, ok := def.Relationships[name]
	if !ok {
		return nil, dbtypes.InvalidArgumentf("%s has no relationship %q", def.Table, name)
	}
	if rel.Related == nil || rel.Related.Definition() == nil {
		return nil, dbtypes.InvalidArgumentf("relationship %q of %s has no related model", name, def.Table)
	}
	related := rel.Related.Definition()

	localKey, foreignKey, err := relationKeys(def, related, rel)
	if err != nil {
		return nil, fmt.Errorf("relationship %q: %w", name, err)
	}

	value := model.Attributes()[localKey]
	if value == nil {
		if rel.Kind == HasMany {
			return []Attributes{}, nil
		}
		return nil, nil
	}

	norm := NewNormalizer(related, r.exec.Capabilities())
	tree := expression.NewTree(related.Table).AddWhere(expression.Where{
		Column:   norm.NormalizeIDProperty(foreignKey),
		Operator: expression.Eq,
		Value:    value,
	})
	keys := make([]string, 0, len(rel.Filters))
	for k := range rel.Filters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		tree.AddWhere(expression.Where{Column: norm.NormalizeIDProperty(k), Operator: expression.Eq, Value: rel.Filters[k]})
	}
	if rel.Kind == BelongsTo {
		one := uint64(1)
		tree.SetLimit(&one)
	}

	req, err := r.compiler.Select(tree)
	if err != nil {
		return nil, err
	}
	res, err := r.exec.Execute(ctx, req)
	if err != nil {
		return nil, dbtypes.NewQueryExecutionError(req, err)
	}

	attrs := norm.DenormalizeDocuments(res.Rows...)
	if rel.Kind == BelongsTo {
		if len(attrs) == 0 {
			return nil, nil
		}
		return attrs[0], nil
	}
	return attrs, nil
}

func relationKeys(def, related *Definition, rel Relationship) (local, foreign string, err error) {
	switch rel.Kind {
	case BelongsTo:
		if rel.LocalKey == "" {
			return "", "", dbtypes.InvalidArgumentf("belongsTo requires a local key")
		}
		foreign = rel.ForeignKey
		if foreign == "" {
			foreign = related.IDName()
		}
		return rel.LocalKey, foreign, nil
	case HasMany:
		if rel.ForeignKey == "" {
			return "", "", dbtypes.InvalidArgumentf("hasMany requires a foreign key")
		}
		local = rel.LocalKey
		if local == "" {
			local = def.IDName()
		}
		return local, rel.ForeignKey, nil
	default:
		return "", "", dbtypes.InvalidArgumentf("unsupported relationship kind %q", rel.Kind)
	}
}
