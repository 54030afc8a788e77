package orm

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/gaborage/querybricks/database"
	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/internal/reflection"
	"github.com/gaborage/querybricks/logger"
)

// ConnectionProvider resolves named connections. *database.Manager satisfies it.
type ConnectionProvider interface {
	Get(ctx context.Context, name string) (database.Connection, error)
}

// Builder is the fluent query façade for model type M.
//
// Mutators change the owned expression tree in place and return the same builder.
// A structural error raised by a mutator is recorded (the first one wins) and returned
// by Err and by every terminal operation before anything reaches the backend.
//
// A Builder is not safe for concurrent use; Clone it to branch a query.
type Builder[M Model] struct {
	def      *Definition
	newModel func() M
	tree     *expression.Tree

	conn     database.Connection
	provider ConnectionProvider
	connName string
	scope    dbtypes.Scope
	txGuard  *txGuard

	idGen    IDGenerator
	resolver RelationshipResolver
	with     []string

	// joined definitions keyed by join target
	joined map[string]*Definition

	log logger.Logger
	err error
}

// NewBuilder creates a builder for M bound to conn. M must be a pointer to a struct
// implementing Model.
func NewBuilder[M Model](conn database.Connection) *Builder[M] {
	b := newBuilder[M]()
	b.conn = conn
	if conn == nil {
		b.fail(fmt.Errorf("orm: %s builder requires a connection", b.modelName()))
	}
	return b
}

// FromProvider creates a builder for M whose connection is resolved from p by name on
// first use. An empty name selects the provider's default connection.
func FromProvider[M Model](p ConnectionProvider, name string) *Builder[M] {
	b := newBuilder[M]()
	b.provider = p
	b.connName = name
	if p == nil {
		b.fail(fmt.Errorf("orm: %s builder requires a connection provider", b.modelName()))
	}
	return b
}

func newBuilder[M Model]() *Builder[M] {
	b := &Builder[M]{
		joined:  make(map[string]*Definition),
		log:     logger.Nop(),
		txGuard: &txGuard{},
	}

	newModel, err := reflection.Instantiator[M]()
	if err != nil {
		b.def = &Definition{}
		b.tree = expression.NewTree("")
		b.fail(fmt.Errorf("orm: %w", err))
		return b
	}
	b.newModel = newModel
	b.def = newModel().Definition()
	if b.def == nil {
		b.def = &Definition{}
	}
	b.tree = expression.NewTree(b.def.Table)
	return b
}

func (b *Builder[M]) modelName() string {
	return reflection.GetTypeNameShort(reflect.TypeFor[M]())
}

// fail records the first structural error.
func (b *Builder[M]) fail(err error) *Builder[M] {
	if b.err == nil && err != nil {
		b.err = err
	}
	return b
}

// Err returns the first structural error recorded by a mutator.
func (b *Builder[M]) Err() error {
	return b.err
}

// Definition returns the model definition the builder is bound to.
func (b *Builder[M]) Definition() *Definition {
	return b.def
}

// WithLogger sets the logger used for transaction and relationship diagnostics.
func (b *Builder[M]) WithLogger(log logger.Logger) *Builder[M] {
	if log != nil {
		b.log = log
	}
	return b
}

// SetTable rebinds the expression to another table, with an optional alias.
func (b *Builder[M]) SetTable(table string, alias ...string) *Builder[M] {
	if table == "" {
		return b.fail(dbtypes.ErrMissingTable)
	}
	b.tree.SetTable(table, alias...)
	return b
}

// UseTable returns a clone of the builder targeting table.
func (b *Builder[M]) UseTable(table string) *Builder[M] {
	return b.Clone().SetTable(table)
}

// Table returns the table the expression targets.
func (b *Builder[M]) Table() string {
	return b.tree.Table()
}

// SetConnectionName selects another named connection of the provider. It has no effect
// on builders created with NewBuilder.
func (b *Builder[M]) SetConnectionName(name string) *Builder[M] {
	if b.provider == nil || name == b.connName {
		b.connName = name
		return b
	}
	b.connName = name
	b.conn = nil
	return b
}

// ConnectionName returns the provider connection name.
func (b *Builder[M]) ConnectionName() string {
	return b.connName
}

// SetIDGenerator sets the generator used by Insert for documents without an identity.
// nil disables generation.
func (b *Builder[M]) SetIDGenerator(gen IDGenerator) *Builder[M] {
	b.idGen = gen
	return b
}

// IDGenerator returns the configured generator, nil when none.
func (b *Builder[M]) IDGenerator() IDGenerator {
	return b.idGen
}

// GenerateID returns a fresh identity from the configured generator.
func (b *Builder[M]) GenerateID() (any, bool) {
	if b.idGen == nil {
		return nil, false
	}
	return b.idGen.Generate(), true
}

// SetResolver replaces the relationship resolver used by With.
func (b *Builder[M]) SetResolver(r RelationshipResolver) *Builder[M] {
	b.resolver = r
	return b
}

// Expression returns the owned expression tree. Changes to it are changes to the query.
func (b *Builder[M]) Expression() *expression.Tree {
	return b.tree
}

// SetExpression replaces the owned tree with a copy of tree.
func (b *Builder[M]) SetExpression(tree *expression.Tree) *Builder[M] {
	if tree == nil {
		return b.fail(dbtypes.InvalidArgumentf("expression cannot be nil"))
	}
	b.tree = tree.Clone()
	return b
}

// CloneExpression returns an independent copy of the owned tree.
func (b *Builder[M]) CloneExpression() *expression.Tree {
	return b.tree.Clone()
}

// ResetExpression starts over with an empty tree on the model's table and drops
// pending eager loads. A recorded error is kept.
func (b *Builder[M]) ResetExpression() *Builder[M] {
	b.tree = expression.NewTree(b.def.Table)
	b.with = nil
	b.joined = make(map[string]*Definition)
	return b
}

// txGuard is set while a Transaction callback of the builder lineage is running.
type txGuard struct {
	active atomic.Bool
}

func (g *txGuard) running() bool {
	return g != nil && g.active.Load()
}

// Clone returns a builder with a deep copy of the expression tree that shares the model
// binding, connection, transaction scope and id generator. A clone taken while a
// Transaction of b is running shares that transaction's nesting guard.
func (b *Builder[M]) Clone() *Builder[M] {
	out := *b
	if !b.txGuard.running() {
		out.txGuard = &txGuard{}
	}
	out.tree = b.tree.Clone()
	out.with = slices.Clone(b.with)
	out.joined = maps.Clone(b.joined)
	return &out
}

// Capabilities returns the capability set of the bound connection. It is empty until a
// provider-backed builder has resolved its connection.
func (b *Builder[M]) Capabilities() dbtypes.CapabilitySet {
	if b.scope != nil {
		return b.scope.Capabilities()
	}
	if b.conn == nil {
		return dbtypes.NewCapabilitySet()
	}
	return b.conn.Capabilities()
}

// connection resolves the bound connection.
func (b *Builder[M]) connection(ctx context.Context) (database.Connection, error) {
	if b.conn != nil {
		return b.conn, nil
	}
	if b.provider == nil {
		return nil, fmt.Errorf("orm: %s builder has no connection", b.modelName())
	}
	conn, err := b.provider.Get(ctx, b.connName)
	if err != nil {
		return nil, err
	}
	b.conn = conn
	return conn, nil
}

// session is everything a terminal operation needs, resolved once per call.
type session struct {
	exec     dbtypes.Executor
	compiler expression.Compiler
	norm     *Normalizer
}

func (s session) documentStore() bool {
	return s.norm.documentStore()
}

func (b *Builder[M]) session(ctx context.Context) (session, error) {
	if b.err != nil {
		return session{}, b.err
	}
	conn, err := b.connection(ctx)
	if err != nil {
		return session{}, err
	}
	var exec dbtypes.Executor = conn
	if b.scope != nil {
		exec = b.scope
	}
	return session{
		exec:     exec,
		compiler: conn.Compiler(),
		norm:     NewNormalizer(b.def, exec.Capabilities()),
	}, nil
}

// Select overrides the projected columns. Select() and Select("*") restore select-all.
// Columns may be qualified ("posts.title") and aliased ("title as heading").
func (b *Builder[M]) Select(columns ...string) *Builder[M] {
	cols := make([]expression.Column, 0, len(columns))
	for _, c := range columns {
		if strings.TrimSpace(c) == "*" {
			cols = cols[:0]
			break
		}
		col, err := parseColumn(c)
		if err != nil {
			return b.fail(err)
		}
		cols = append(cols, col)
	}
	b.tree.SetColumns(cols)
	return b
}

// Column appends a structured column to the projection.
func (b *Builder[M]) Column(col expression.Column) *Builder[M] {
	if col.Name == "" {
		return b.fail(dbtypes.InvalidArgumentf("column requires a name"))
	}
	b.tree.AddColumn(col)
	return b
}

// SelectRaw appends an opaque projection fragment.
func (b *Builder[M]) SelectRaw(fragment any, args ...any) *Builder[M] {
	if fragment == nil {
		return b.fail(dbtypes.InvalidArgumentf("raw select cannot be nil"))
	}
	b.tree.AddRawSelect(expression.Raw{SQL: fragment, Args: args})
	return b
}

// Distinct makes the query distinct on columns, or on every selected column when none
// are given.
func (b *Builder[M]) Distinct(columns ...string) *Builder[M] {
	if len(columns) == 0 {
		b.tree.SetDistinct(&expression.Distinct{All: true})
		return b
	}
	cols := make([]expression.Column, 0, len(columns))
	for _, c := range columns {
		col, err := parseColumn(c)
		if err != nil {
			return b.fail(err)
		}
		cols = append(cols, col)
	}
	b.tree.SetDistinct(&expression.Distinct{Columns: cols})
	return b
}

// parseColumn reads "table.column as alias".
func parseColumn(raw string) (expression.Column, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return expression.Column{}, dbtypes.InvalidArgumentf("column name cannot be empty")
	}

	var col expression.Column
	if idx := strings.Index(strings.ToLower(raw), " as "); idx >= 0 {
		col.As = strings.TrimSpace(raw[idx+4:])
		raw = strings.TrimSpace(raw[:idx])
		if col.As == "" || raw == "" {
			return expression.Column{}, dbtypes.InvalidArgumentf("malformed column alias %q", raw)
		}
	}
	if table, name, ok := strings.Cut(raw, "."); ok {
		col.Table, col.Name = table, name
	} else {
		col.Name = raw
	}
	return col, nil
}
