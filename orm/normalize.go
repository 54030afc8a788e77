package orm

import (
	"encoding/json"
	"maps"

	"go.mongodb.org/mongo-driver/v2/bson"

	dbtypes "github.com/gaborage/querybricks/database/types"
)

// documentIDField is the storage name of the identity attribute on document stores.
const documentIDField = "_id"

// Normalizer maps attributes to storage rows and back for one model definition on one
// backend. Normalization renames the identity attribute and applies declared casts;
// denormalization reverses both.
//
// Both directions are total: a value that cannot be cast is passed through unchanged.
type Normalizer struct {
	def  *Definition
	caps dbtypes.CapabilitySet
}

// NewNormalizer creates a Normalizer for def on a backend declaring caps.
func NewNormalizer(def *Definition, caps dbtypes.CapabilitySet) *Normalizer {
	if def == nil {
		def = &Definition{}
	}
	return &Normalizer{def: def, caps: caps}
}

func (n *Normalizer) documentStore() bool {
	return n.caps.Has(dbtypes.CapDocumentStore)
}

// NormalizeIDProperty maps a logical attribute name to its storage column.
// Only the identity attribute on document stores is renamed.
func (n *Normalizer) NormalizeIDProperty(attr string) string {
	if n.documentStore() && attr == n.def.IDName() {
		return documentIDField
	}
	return attr
}

// DenormalizeIDProperty maps a storage column back to its attribute name.
func (n *Normalizer) DenormalizeIDProperty(column string) string {
	if n.documentStore() && column == documentIDField {
		return n.def.IDName()
	}
	return column
}

// NormalizeDocuments converts attributes to storage rows. It always returns a slice,
// one row per document.
func (n *Normalizer) NormalizeDocuments(docs ...Attributes) []dbtypes.Row {
	out := make([]dbtypes.Row, 0, len(docs))
	for _, doc := range docs {
		row := make(dbtypes.Row, len(doc))
		for attr, value := range doc {
			row[n.NormalizeIDProperty(attr)] = n.toStorage(n.def.Casts[attr], value)
		}
		out = append(out, row)
	}
	return out
}

// DenormalizeDocuments converts storage rows to attributes. It always returns a slice,
// one entry per row.
func (n *Normalizer) DenormalizeDocuments(rows ...dbtypes.Row) []Attributes {
	out := make([]Attributes, 0, len(rows))
	for _, row := range rows {
		attrs := make(Attributes, len(row))
		for column, value := range row {
			attr := n.DenormalizeIDProperty(column)
			attrs[attr] = n.fromStorage(n.def.Casts[attr], value)
		}
		out = append(out, attrs)
	}
	return out
}

func (n *Normalizer) toStorage(cast Cast, value any) any {
	if value == nil {
		return nil
	}
	if v, ok := convertScalar(cast, value); ok {
		return v
	}
	if cast == CastJSON || cast == CastArray {
		if n.documentStore() {
			return value
		}
		if s, ok := value.(string); ok {
			return s
		}
		b, err := json.Marshal(value)
		if err != nil {
			return value
		}
		return string(b)
	}
	return value
}

func (n *Normalizer) fromStorage(cast Cast, value any) any {
	if oid, ok := value.(bson.ObjectID); ok {
		return oid.Hex()
	}
	if value == nil {
		return nil
	}
	if v, ok := convertScalar(cast, value); ok {
		return v
	}
	if cast == CastJSON || cast == CastArray {
		return decodeJSON(value)
	}
	if m, ok := value.(map[string]any); ok {
		// nested documents keep their keys but lose ObjectIDs
		out := maps.Clone(m)
		for k, v := range out {
			if oid, isOID := v.(bson.ObjectID); isOID {
				out[k] = oid.Hex()
			}
		}
		return out
	}
	return value
}

// convertScalar applies a scalar cast. ok is false for casts it does not handle.
// A value that fails conversion is returned unchanged.
func convertScalar(cast Cast, value any) (converted any, ok bool) {
	var err error
	switch cast {
	case CastString:
		return toString(value), true
	case CastInt:
		converted, err = toInt64(value)
	case CastFloat:
		converted, err = toFloat64(value)
	case CastBool:
		converted, err = toBool(value)
	case CastTime:
		converted, err = toTime(value)
	default:
		return value, false
	}
	if err != nil {
		return value, true
	}
	return converted, true
}

func decodeJSON(value any) any {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return value
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return value
	}
	return decoded
}
