package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Pipeline is a raw aggregation against a single collection.
type Pipeline struct {
	Collection string
	Stages     []bson.D
}

// executor runs compiled Commands against a database, inside a session when one is set.
type executor struct {
	db      *mongo.Database
	session *mongo.Session
}

// Vendor returns dbtypes.MongoDB.
func (e *executor) Vendor() dbtypes.Vendor {
	return dbtypes.MongoDB
}

// Capabilities returns the features a document store supports.
func (e *executor) Capabilities() dbtypes.CapabilitySet {
	return dbtypes.DefaultCapabilities(dbtypes.MongoDB)
}

func (e *executor) context(ctx context.Context) context.Context {
	if e.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, e.session)
}

// Execute runs a Command compiled by Compiler.
func (e *executor) Execute(ctx context.Context, req *dbtypes.Request) (*dbtypes.Result, error) {
	if req == nil {
		return nil, dbtypes.InvalidArgumentf("request cannot be nil")
	}
	cmd, ok := req.Command.(*Command)
	if !ok || cmd == nil {
		return nil, dbtypes.InvalidArgumentf("MongoDB requests must carry a *mongodb.Command, got %T", req.Command)
	}
	if cmd.Collection == "" {
		return nil, dbtypes.ErrMissingTable
	}

	result, err := e.run(e.context(ctx), req.Operation, cmd)
	if err != nil {
		return nil, dbtypes.NewQueryExecutionError(req, err)
	}
	return result, nil
}

func (e *executor) run(ctx context.Context, op dbtypes.Operation, cmd *Command) (*dbtypes.Result, error) {
	coll := e.db.Collection(cmd.Collection)

	switch op {
	case dbtypes.OpSelect, dbtypes.OpAggregate:
		var (
			cursor *mongo.Cursor
			err    error
		)
		if cmd.Pipeline != nil {
			cursor, err = coll.Aggregate(ctx, cmd.Pipeline)
		} else {
			cursor, err = coll.Find(ctx, filterOrEmpty(cmd.Filter), findOptions(cmd))
		}
		if err != nil {
			return nil, err
		}
		rows, err := decodeAll(ctx, cursor)
		if err != nil {
			return nil, err
		}
		return &dbtypes.Result{Rows: rows}, nil

	case dbtypes.OpInsert:
		res, err := coll.InsertMany(ctx, cmd.Documents)
		if err != nil {
			return nil, err
		}
		return &dbtypes.Result{RowsAffected: int64(len(res.InsertedIDs)), InsertedIDs: res.InsertedIDs}, nil

	case dbtypes.OpUpdate:
		res, err := coll.UpdateMany(ctx, filterOrEmpty(cmd.Filter), cmd.Update)
		if err != nil {
			return nil, err
		}
		return &dbtypes.Result{RowsAffected: res.MatchedCount}, nil

	case dbtypes.OpDelete:
		res, err := coll.DeleteMany(ctx, filterOrEmpty(cmd.Filter))
		if err != nil {
			return nil, err
		}
		return &dbtypes.Result{RowsAffected: res.DeletedCount}, nil
	}

	return nil, fmt.Errorf("%w: operation %q", dbtypes.ErrUnsupported, op)
}

// Raw runs a Pipeline (returning []dbtypes.Row) or a database command document
// (returning a single dbtypes.Row). Raw requests take no positional arguments.
func (e *executor) Raw(ctx context.Context, query any, args ...any) (any, error) {
	if len(args) > 0 {
		return nil, dbtypes.InvalidArgumentf("MongoDB raw requests take no arguments")
	}
	ctx = e.context(ctx)
	req := &dbtypes.Request{Operation: dbtypes.OpRaw, Command: query}

	switch q := query.(type) {
	case Pipeline:
		return e.rawPipeline(ctx, req, &q)
	case *Pipeline:
		return e.rawPipeline(ctx, req, q)
	case bson.D, bson.M:
		var out bson.M
		if err := e.db.RunCommand(ctx, q).Decode(&out); err != nil {
			return nil, dbtypes.NewQueryExecutionError(req, err)
		}
		return toRow(out), nil
	}
	return nil, dbtypes.InvalidArgumentf("MongoDB raw requests must be a Pipeline or a command document, got %T", query)
}

func (e *executor) rawPipeline(ctx context.Context, req *dbtypes.Request, p *Pipeline) ([]dbtypes.Row, error) {
	if p.Collection == "" {
		return nil, dbtypes.ErrMissingTable
	}
	req.Table = p.Collection
	cursor, err := e.db.Collection(p.Collection).Aggregate(ctx, p.Stages)
	if err != nil {
		return nil, dbtypes.NewQueryExecutionError(req, err)
	}
	rows, err := decodeAll(ctx, cursor)
	if err != nil {
		return nil, dbtypes.NewQueryExecutionError(req, err)
	}
	return rows, nil
}

func findOptions(cmd *Command) *options.FindOptionsBuilder {
	opts := options.Find()
	if len(cmd.Sort) > 0 {
		opts.SetSort(cmd.Sort)
	}
	if len(cmd.Projection) > 0 {
		opts.SetProjection(cmd.Projection)
	}
	if cmd.Skip != nil {
		opts.SetSkip(*cmd.Skip)
	}
	if cmd.Limit != nil {
		opts.SetLimit(*cmd.Limit)
	}
	return opts
}

func filterOrEmpty(filter bson.D) bson.D {
	if filter == nil {
		return bson.D{}
	}
	return filter
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]dbtypes.Row, error) {
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	rows := make([]dbtypes.Row, len(docs))
	for i, doc := range docs {
		rows[i] = toRow(doc)
	}
	return rows, nil
}

// toRow converts a decoded document into plain Go maps and slices.
func toRow(doc bson.M) dbtypes.Row {
	row := make(dbtypes.Row, len(doc))
	for k, v := range doc {
		row[k] = toValue(v)
	}
	return row
}

func toValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return toRow(t)
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = toValue(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = toValue(item)
		}
		return out
	case bson.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}
