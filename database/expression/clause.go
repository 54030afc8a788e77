package expression

import (
	"reflect"
	"slices"
	"strings"
	"time"
)

// Operator is a where-clause comparison operator.
type Operator string

const (
	Eq         Operator = "="
	NotEq      Operator = "!="
	NotEqAlt   Operator = "<>"
	Gt         Operator = ">"
	Lt         Operator = "<"
	Gte        Operator = ">="
	Lte        Operator = "<="
	Like       Operator = "like"
	NotLike    Operator = "not like"
	In         Operator = "in"
	NotIn      Operator = "not in"
	IsNull     Operator = "is null"
	IsNotNull  Operator = "is not null"
	Between    Operator = "between"
	NotBetween Operator = "not between"
)

var operators = []Operator{Eq, NotEq, NotEqAlt, Gt, Lt, Gte, Lte, Like, NotLike, In, NotIn, IsNull, IsNotNull, Between, NotBetween}

// Operators returns every supported operator in declaration order.
func Operators() []Operator {
	return slices.Clone(operators)
}

// ParseOperator normalizes case and surrounding whitespace and reports whether op is supported.
func ParseOperator(op string) (Operator, bool) {
	o := Operator(strings.ToLower(strings.TrimSpace(op)))
	return o, slices.Contains(operators, o)
}

// Valid reports whether o is one of the supported operators.
func (o Operator) Valid() bool {
	return slices.Contains(operators, o)
}

// TakesValue is false for the null checks.
func (o Operator) TakesValue() bool {
	return o != IsNull && o != IsNotNull
}

// IsRange reports between / not between.
func (o Operator) IsRange() bool {
	return o == Between || o == NotBetween
}

// IsSet reports in / not in.
func (o Operator) IsSet() bool {
	return o == In || o == NotIn
}

// Logical joins a where clause to the clauses before it.
type Logical string

const (
	And Logical = "and"
	Or  Logical = "or"
)

// JoinKind selects the join flavour.
type JoinKind string

const (
	InnerJoin JoinKind = "inner"
	LeftJoin  JoinKind = "left"
	RightJoin JoinKind = "right"
	FullJoin  JoinKind = "full"
	CrossJoin JoinKind = "cross"
)

// Direction is an ORDER BY direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection defaults anything but "desc" to ascending.
func ParseDirection(d string) Direction {
	if strings.EqualFold(strings.TrimSpace(d), string(Desc)) {
		return Desc
	}
	return Asc
}

// Reverse flips the direction.
func (d Direction) Reverse() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// Column is a single projected column.
// Name "*" qualified by Table selects every column of that table.
type Column struct {
	Name  string
	Table string
	As    string

	// Preformatted columns are emitted verbatim, without quoting.
	Preformatted bool
	Cast         string
}

// Raw is an opaque backend-specific fragment injected verbatim with positional bindings.
// SQL backends expect a string; document stores expect their native filter type.
type Raw struct {
	SQL  any
	Args []any
}

func (r Raw) clone() Raw {
	return Raw{SQL: r.SQL, Args: cloneValue(r.Args).([]any)}
}

// Where is a single clause of the left-to-right where chain.
// Logical governs how this clause joins to the clauses before it. It is ignored on
// the first clause.
type Where struct {
	Column   string
	Table    string
	Operator Operator
	Value    any
	Logical  Logical
	Cast     string

	// Raw clauses bypass structured compilation.
	Raw *Raw
}

// IsRaw reports whether the clause carries a raw fragment.
func (w Where) IsRaw() bool {
	return w.Raw != nil
}

func (w Where) clone() Where {
	out := w
	out.Value = cloneValue(w.Value)
	if w.Raw != nil {
		r := w.Raw.clone()
		out.Raw = &r
	}
	return out
}

// Join relates the tree's table to another table.
// Target is the attribute under which joined columns are nested on hydration.
type Join struct {
	Kind          JoinKind
	LocalTable    string
	LocalAlias    string
	RelatedTable  string
	RelatedAlias  string
	LocalColumn   string
	RelatedColumn string
	Target        string
	Cast          string
}

// LocalRef is the alias when set, the table otherwise.
func (j Join) LocalRef() string {
	if j.LocalAlias != "" {
		return j.LocalAlias
	}
	return j.LocalTable
}

// RelatedRef is the alias when set, the table otherwise.
func (j Join) RelatedRef() string {
	if j.RelatedAlias != "" {
		return j.RelatedAlias
	}
	return j.RelatedTable
}

// GroupBy is a GROUP BY key.
type GroupBy struct {
	Column string
	Table  string
}

// OrderBy is an ORDER BY key; the first key is the primary sort key.
type OrderBy struct {
	Column    string
	Direction Direction
}

// Distinct is nil for no distinct; All means distinct over every selected column.
type Distinct struct {
	Columns []Column
	All     bool
}

// cloneValue copies slices so a cloned clause never aliases its source. Slices of
// other element types keep their type and are copied shallowly.
func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		if t == nil {
			return []any(nil)
		}
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return slices.Clone(t)
	case []int:
		return slices.Clone(t)
	case []int64:
		return slices.Clone(t)
	case []float64:
		return slices.Clone(t)
	case []time.Time:
		return slices.Clone(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice || rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	}
}
