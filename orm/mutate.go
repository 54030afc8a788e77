package orm

import (
	"context"
	"fmt"
	"maps"

	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Insert stores documents and returns them as read back from storage, in input order.
//
// Documents without an identity get one from the id generator when configured.
// Backends supporting RETURNING hand the stored rows back directly; the others are
// re-read by identity (supplied, generated, driver last-insert id or document-store
// inserted ids). When no identity can be determined the normalized input is echoed.
func (b *Builder[M]) Insert(ctx context.Context, docs ...Attributes) (*Collection[M], error) {
	s, err := b.session(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, dbtypes.InvalidArgumentf("insert into %q requires at least one document", b.tree.Table())
	}

	idAttr := b.def.IDName()
	prepared := make([]Attributes, len(docs))
	ids := make([]any, len(docs))
	for i, doc := range docs {
		d := maps.Clone(doc)
		if d == nil {
			d = Attributes{}
		}
		if d[idAttr] == nil {
			delete(d, idAttr)
			if id, ok := b.GenerateID(); ok {
				d[idAttr] = id
			}
		}
		ids[i] = d[idAttr]
		prepared[i] = d
	}

	rows := s.norm.NormalizeDocuments(prepared...)
	returning := s.exec.Capabilities().Has(dbtypes.CapReturning)
	req, err := s.compiler.Insert(b.tree.Table(), rows, returning)
	if err != nil {
		return nil, err
	}
	res, err := s.exec.Execute(ctx, req)
	if err != nil {
		return nil, dbtypes.NewQueryExecutionError(req, err)
	}

	if req.Returning && len(res.Rows) == len(docs) {
		models, err := b.hydrate(ctx, s, res.Rows)
		if err != nil {
			return nil, err
		}
		return &Collection[M]{items: models}, nil
	}

	if !assignInsertedIDs(ids, res, s.exec.Vendor()) {
		models, err := b.hydrate(ctx, s, rows)
		if err != nil {
			return nil, err
		}
		return &Collection[M]{items: models}, nil
	}

	models, err := b.findByIDs(ctx, s, ids)
	if err != nil {
		return nil, err
	}
	return &Collection[M]{items: orderByIDs(models, ids, idAttr)}, nil
}

// assignInsertedIDs fills missing identities from the result and reports whether every
// document now has one.
func assignInsertedIDs(ids []any, res *dbtypes.Result, vendor dbtypes.Vendor) bool {
	n := int64(len(ids))
	for i := range ids {
		if ids[i] != nil {
			continue
		}
		switch {
		case int64(len(res.InsertedIDs)) == n:
			ids[i] = res.InsertedIDs[i]
		case res.HasLastInsertID && vendor == dbtypes.MySQL:
			// MySQL reports the id of the first row of a multi-row insert
			ids[i] = res.LastInsertID + int64(i)
		case res.HasLastInsertID:
			ids[i] = res.LastInsertID - (n - 1) + int64(i)
		default:
			return false
		}
	}
	return true
}

func orderByIDs[M Model](models []M, ids []any, idAttr string) []M {
	byID := make(map[string]M, len(models))
	for _, m := range models {
		byID[idKey(m.Attributes()[idAttr])] = m
	}
	out := make([]M, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[idKey(id)]; ok {
			out = append(out, m)
		}
	}
	return out
}

// idKey compares identities across representations: 7 and int64(7), an ObjectID and
// its hex string.
func idKey(id any) string {
	if h, ok := id.(interface{ Hex() string }); ok {
		return h.Hex()
	}
	return toString(id)
}

// findByIDs re-reads rows by identity within the session.
func (b *Builder[M]) findByIDs(ctx context.Context, s session, ids []any) ([]M, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tree := expression.NewTree(b.tree.Table()).AddWhere(expression.Where{
		Column:   b.def.IDName(),
		Operator: expression.In,
		Value:    ids,
	})
	return b.fetchWith(ctx, s, tree)
}

// paged reports whether tree limits or skips rows.
func paged(tree *expression.Tree) bool {
	return tree.Limit() != nil || tree.Offset() != nil
}

// matchingIDs selects the identities of the rows tree matches. Ordering is kept only
// when the tree is paged, where it decides which rows fall inside the page.
func (b *Builder[M]) matchingIDs(ctx context.Context, s session, tree *expression.Tree) ([]any, error) {
	idCol := s.norm.NormalizeIDProperty(b.def.IDName())
	lookup := storageTree(tree.Clone(), s.norm).
		ClearSelection().
		SetColumns([]expression.Column{{Name: idCol}})
	if !paged(tree) {
		lookup.SetOrderBy(nil)
	}

	req, err := s.compiler.Select(lookup)
	if err != nil {
		return nil, err
	}
	res, err := s.exec.Execute(ctx, req)
	if err != nil {
		return nil, dbtypes.NewQueryExecutionError(req, err)
	}
	ids := make([]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		if id, ok := row[idCol]; ok && id != nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Update applies each document to the rows matching the expression. A document carrying
// the identity attribute only updates that row; one without updates every match.
// Limit and offset restrict the updated rows to the page a Get would return.
// The updated rows are returned as read back from storage.
func (b *Builder[M]) Update(ctx context.Context, docs ...Attributes) (*Collection[M], error) {
	s, err := b.session(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, dbtypes.InvalidArgumentf("update of %q requires at least one document", b.tree.Table())
	}

	idAttr := b.def.IDName()
	var touched []any
	for _, doc := range docs {
		values := maps.Clone(doc)
		id := values[idAttr]
		delete(values, idAttr)

		tree := b.tree.Clone()
		if id != nil {
			tree.AddWhere(expression.Where{Column: idAttr, Operator: expression.Eq, Value: id})
		}

		ids := []any{id}
		if id == nil || paged(tree) {
			if ids, err = b.matchingIDs(ctx, s, tree); err != nil {
				return nil, err
			}
		}
		touched = append(touched, ids...)

		if paged(tree) {
			if len(ids) == 0 {
				continue
			}
			tree = b.idTree(ids)
		}
		if err := b.apply(ctx, s, tree, values); err != nil {
			return nil, err
		}
	}

	return b.reread(ctx, s, touched)
}

// UpdateAll applies one payload to every row matching the expression, regardless of
// identity, and returns the updated rows. A paged expression only updates its page.
func (b *Builder[M]) UpdateAll(ctx context.Context, doc Attributes) (*Collection[M], error) {
	s, err := b.session(ctx)
	if err != nil {
		return nil, err
	}
	values := maps.Clone(doc)
	delete(values, b.def.IDName())

	ids, err := b.matchingIDs(ctx, s, b.tree)
	if err != nil {
		return nil, err
	}

	tree := b.tree.Clone()
	if paged(tree) {
		if len(ids) == 0 {
			return &Collection[M]{}, nil
		}
		tree = b.idTree(ids)
	}
	if err := b.apply(ctx, s, tree, values); err != nil {
		return nil, err
	}
	return b.reread(ctx, s, ids)
}

// idTree targets exactly ids. UPDATE has no paging, so a paged expression is narrowed
// to the identities its select matched.
func (b *Builder[M]) idTree(ids []any) *expression.Tree {
	return expression.NewTree(b.tree.Table()).AddWhere(expression.Where{
		Column:   b.def.IDName(),
		Operator: expression.In,
		Value:    ids,
	})
}

func (b *Builder[M]) apply(ctx context.Context, s session, tree *expression.Tree, values Attributes) error {
	if len(values) == 0 {
		return dbtypes.InvalidArgumentf("update of %q requires at least one value", b.tree.Table())
	}
	row := s.norm.NormalizeDocuments(values)[0]
	req, err := s.compiler.Update(storageTree(tree, s.norm), row)
	if err != nil {
		return err
	}
	if _, err := s.exec.Execute(ctx, req); err != nil {
		return dbtypes.NewQueryExecutionError(req, err)
	}
	return nil
}

func (b *Builder[M]) reread(ctx context.Context, s session, ids []any) (*Collection[M], error) {
	ids = uniqueIDs(ids)
	models, err := b.findByIDs(ctx, s, ids)
	if err != nil {
		return nil, fmt.Errorf("reread updated %s: %w", b.tree.Table(), err)
	}
	return &Collection[M]{items: models}, nil
}

func uniqueIDs(ids []any) []any {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		k := idKey(id)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, id)
	}
	return out
}

// Delete removes the rows matching the expression and returns the builder.
func (b *Builder[M]) Delete(ctx context.Context) (*Builder[M], error) {
	s, err := b.session(ctx)
	if err != nil {
		return b, err
	}
	req, err := s.compiler.Delete(storageTree(b.tree.Clone(), s.norm))
	if err != nil {
		return b, err
	}
	if _, err := s.exec.Execute(ctx, req); err != nil {
		return b, dbtypes.NewQueryExecutionError(req, err)
	}
	return b, nil
}
