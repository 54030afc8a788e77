package expression

import (
	"reflect"

	"github.com/gaborage/querybricks/database/types"
)

// Values flattens a slice or array of any element type into []any.
// ok is false when v is not a slice or array.
func Values(v any) (values []any, ok bool) {
	if v == nil {
		return nil, false
	}
	if vs, isAny := v.([]any); isAny {
		return vs, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	// []byte is a scalar value, not a list
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// ValidateWhere checks a single clause against its operator's value shape.
func ValidateWhere(w Where) error {
	if w.IsRaw() {
		return nil
	}
	if w.Column == "" {
		return types.InvalidArgumentf("where clause requires a column")
	}
	if !w.Operator.Valid() {
		return types.InvalidArgumentf("unsupported operator %q", w.Operator)
	}
	if w.Logical != "" && w.Logical != And && w.Logical != Or {
		return types.InvalidArgumentf("unsupported logical operator %q", w.Logical)
	}
	switch {
	case w.Operator.IsRange():
		values, ok := Values(w.Value)
		if !ok || len(values) != 2 {
			return types.InvalidArgumentf("%s on %q requires exactly 2 values", w.Operator, w.Column)
		}
	case w.Operator.IsSet():
		values, ok := Values(w.Value)
		if !ok {
			return types.InvalidArgumentf("%s on %q requires an array of values", w.Operator, w.Column)
		}
		if len(values) == 0 {
			return types.InvalidArgumentf("%s on %q requires a non-empty array", w.Operator, w.Column)
		}
	}
	return nil
}

// Validate checks the structural invariants of the tree.
func (t *Tree) Validate() error {
	if t == nil || t.table == "" {
		return types.ErrMissingTable
	}
	for _, w := range t.wheres {
		if err := ValidateWhere(w); err != nil {
			return err
		}
	}
	for _, j := range t.joins {
		if j.RelatedTable == "" {
			return types.InvalidArgumentf("%s join requires a related table", j.Kind)
		}
		if j.Kind != CrossJoin && (j.LocalColumn == "" || j.RelatedColumn == "") {
			return types.InvalidArgumentf("%s join on %q requires local and related columns", j.Kind, j.RelatedTable)
		}
	}
	return nil
}
