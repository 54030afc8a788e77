package mongodb

import (
	"regexp"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/gaborage/querybricks/database/expression"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// idField is the storage name of the identity attribute.
const idField = "_id"

// compileChain folds the where chain left to right: each clause joins the accumulated
// filter with its own logical operator. There is no precedence.
func compileChain(wheres []expression.Where, paths *pathResolver) (bson.D, error) {
	var acc bson.D
	for i, w := range wheres {
		next, err := compileWhere(w, paths)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			acc = next
			continue
		}
		op := "$and"
		if w.Logical == expression.Or {
			op = "$or"
		}
		acc = bson.D{{Key: op, Value: bson.A{acc, next}}}
	}
	if acc == nil {
		return bson.D{}, nil
	}
	return acc, nil
}

func compileWhere(w expression.Where, paths *pathResolver) (bson.D, error) {
	if w.IsRaw() {
		return rawDocument(w.Raw.SQL)
	}
	if err := expression.ValidateWhere(w); err != nil {
		return nil, err
	}
	if w.Cast != "" {
		return nil, dbtypes.ErrUnsupported
	}

	field := paths.field(w.Column, w.Table)
	cond := func(op string, v any) bson.D {
		return bson.D{{Key: field, Value: bson.D{{Key: op, Value: v}}}}
	}

	switch w.Operator {
	case expression.Eq:
		return cond("$eq", coerceID(field, w.Value)), nil
	case expression.NotEq, expression.NotEqAlt:
		return cond("$ne", coerceID(field, w.Value)), nil
	case expression.Gt:
		return cond("$gt", w.Value), nil
	case expression.Lt:
		return cond("$lt", w.Value), nil
	case expression.Gte:
		return cond("$gte", w.Value), nil
	case expression.Lte:
		return cond("$lte", w.Value), nil
	case expression.Like, expression.NotLike:
		pattern, ok := w.Value.(string)
		if !ok {
			return nil, dbtypes.InvalidArgumentf("%s on %q requires a string pattern", w.Operator, w.Column)
		}
		re := bson.Regex{Pattern: likePattern(pattern), Options: "i"}
		if w.Operator == expression.NotLike {
			return cond("$not", re), nil
		}
		return bson.D{{Key: field, Value: re}}, nil
	case expression.In, expression.NotIn:
		values, _ := expression.Values(w.Value)
		list := make(bson.A, len(values))
		for i, v := range values {
			list[i] = coerceID(field, v)
		}
		if w.Operator == expression.NotIn {
			return cond("$nin", list), nil
		}
		return cond("$in", list), nil
	case expression.IsNull:
		return cond("$eq", nil), nil
	case expression.IsNotNull:
		return cond("$ne", nil), nil
	case expression.Between:
		bounds, _ := expression.Values(w.Value)
		return bson.D{{Key: field, Value: bson.D{
			{Key: "$gte", Value: bounds[0]},
			{Key: "$lte", Value: bounds[1]},
		}}}, nil
	case expression.NotBetween:
		bounds, _ := expression.Values(w.Value)
		return bson.D{{Key: "$or", Value: bson.A{
			cond("$lt", bounds[0]),
			cond("$gt", bounds[1]),
		}}}, nil
	}
	return nil, dbtypes.InvalidArgumentf("unsupported operator %q", w.Operator)
}

// likePattern converts a SQL LIKE pattern into an anchored regular expression.
// % matches any run of characters and _ matches exactly one.
func likePattern(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) + 4)
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return b.String()
}

// coerceID turns 24-digit hex strings compared against an identity field into ObjectIDs.
func coerceID(field string, v any) any {
	if field != idField && !strings.HasSuffix(field, "."+idField) {
		return v
	}
	s, ok := v.(string)
	if !ok || len(s) != 24 {
		return v
	}
	if oid, err := bson.ObjectIDFromHex(s); err == nil {
		return oid
	}
	return v
}

// rawDocument accepts the native filter shapes. Maps are ordered by key so the
// compiled command is deterministic.
func rawDocument(raw any) (bson.D, error) {
	switch v := raw.(type) {
	case bson.D:
		return v, nil
	case bson.M:
		return document(v, ""), nil
	case map[string]any:
		return document(v, ""), nil
	case nil:
		return nil, dbtypes.InvalidArgumentf("raw document cannot be empty")
	default:
		return nil, dbtypes.InvalidArgumentf("raw document must be bson.D or bson.M, got %T", raw)
	}
}

// document converts a row into a key-ordered document, dropping skip.
func document(row map[string]any, skip string) bson.D {
	keys := make([]string, 0, len(row))
	for k := range row {
		if k != skip {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	doc := make(bson.D, 0, len(keys))
	for _, k := range keys {
		doc = append(doc, bson.E{Key: k, Value: coerceID(k, row[k])})
	}
	return doc
}
