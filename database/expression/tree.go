// Package expression holds the backend-neutral query expression tree and the
// compiler contract that turns a tree into an executable request.
//
// A Tree is owned by exactly one query builder at a time. Mutators change it in place;
// Clone is the only way to obtain an independent copy.
package expression

import "slices"

// Tree is the logical description of a query: table, projection, filters, joins,
// grouping, ordering and paging. It is pure data and never executes anything.
type Tree struct {
	table string
	alias string

	columns    []Column
	rawSelects []Raw
	distinct   *Distinct

	wheres  []Where
	joins   []Join
	groupBy []GroupBy
	orderBy []OrderBy

	offset *uint64
	limit  *uint64
}

// NewTree returns an empty tree bound to table.
func NewTree(table string) *Tree {
	return &Tree{table: table}
}

// Table returns the table name.
func (t *Tree) Table() string { return t.table }

// Alias returns the table alias, or "" when none is set.
func (t *Tree) Alias() string { return t.alias }

// TableRef is the alias when set, the table otherwise.
func (t *Tree) TableRef() string {
	if t.alias != "" {
		return t.alias
	}
	return t.table
}

// SetTable sets the table and its optional alias.
func (t *Tree) SetTable(table string, alias ...string) *Tree {
	t.table = table
	t.alias = ""
	if len(alias) > 0 {
		t.alias = alias[0]
	}
	return t
}

// Columns returns the projected columns. Empty means select all.
func (t *Tree) Columns() []Column { return slices.Clone(t.columns) }

// SetColumns replaces the projection.
func (t *Tree) SetColumns(cols []Column) *Tree {
	t.columns = slices.Clone(cols)
	return t
}

// AddColumn appends a projected column.
func (t *Tree) AddColumn(c Column) *Tree {
	t.columns = append(t.columns, c)
	return t
}

// HasColumn reports whether name is projected from the tree's own table.
func (t *Tree) HasColumn(name string) bool {
	for _, c := range t.columns {
		if c.Name == name && (c.Table == "" || c.Table == t.TableRef()) {
			return true
		}
	}
	return false
}

// RawSelects returns the raw projection fragments.
func (t *Tree) RawSelects() []Raw { return slices.Clone(t.rawSelects) }

// AddRawSelect appends a raw projection fragment.
func (t *Tree) AddRawSelect(r Raw) *Tree {
	t.rawSelects = append(t.rawSelects, r)
	return t
}

// ClearSelection resets columns, raw selects and distinct to select-all semantics.
func (t *Tree) ClearSelection() *Tree {
	t.columns = nil
	t.rawSelects = nil
	t.distinct = nil
	return t
}

// Distinct returns nil when the query is not distinct.
func (t *Tree) Distinct() *Distinct {
	if t.distinct == nil {
		return nil
	}
	d := Distinct{Columns: slices.Clone(t.distinct.Columns), All: t.distinct.All}
	return &d
}

// SetDistinct sets distinct semantics; nil clears it.
func (t *Tree) SetDistinct(d *Distinct) *Tree {
	if d == nil {
		t.distinct = nil
		return t
	}
	t.distinct = &Distinct{Columns: slices.Clone(d.Columns), All: d.All}
	return t
}

// Wheres returns the where chain in declaration order.
func (t *Tree) Wheres() []Where { return slices.Clone(t.wheres) }

// AddWhere appends a clause to the where chain.
func (t *Tree) AddWhere(w Where) *Tree {
	if w.Logical == "" {
		w.Logical = And
	}
	t.wheres = append(t.wheres, w)
	return t
}

// SetWheres replaces the where chain.
func (t *Tree) SetWheres(ws []Where) *Tree {
	t.wheres = nil
	for _, w := range ws {
		t.AddWhere(w)
	}
	return t
}

// Joins returns the joins in declaration order.
func (t *Tree) Joins() []Join { return slices.Clone(t.joins) }

// AddJoin appends a join.
func (t *Tree) AddJoin(j Join) *Tree {
	t.joins = append(t.joins, j)
	return t
}

// GroupBy returns the grouping keys.
func (t *Tree) GroupBy() []GroupBy { return slices.Clone(t.groupBy) }

// AddGroupBy appends a grouping key.
func (t *Tree) AddGroupBy(g GroupBy) *Tree {
	t.groupBy = append(t.groupBy, g)
	return t
}

// SetGroupBy replaces the grouping keys.
func (t *Tree) SetGroupBy(gs []GroupBy) *Tree {
	t.groupBy = slices.Clone(gs)
	return t
}

// OrderBy returns the ordering keys, primary key first.
func (t *Tree) OrderBy() []OrderBy { return slices.Clone(t.orderBy) }

// AddOrderBy appends an ordering key.
func (t *Tree) AddOrderBy(o OrderBy) *Tree {
	if o.Direction == "" {
		o.Direction = Asc
	}
	t.orderBy = append(t.orderBy, o)
	return t
}

// SetOrderBy replaces the ordering keys.
func (t *Tree) SetOrderBy(os []OrderBy) *Tree {
	t.orderBy = nil
	for _, o := range os {
		t.AddOrderBy(o)
	}
	return t
}

// Offset returns the row start, or nil when unset.
func (t *Tree) Offset() *uint64 { return copyUint(t.offset) }

// SetOffset replaces the row start; nil clears it.
func (t *Tree) SetOffset(n *uint64) *Tree {
	t.offset = copyUint(n)
	return t
}

// Limit returns the row cap, or nil when unset.
func (t *Tree) Limit() *uint64 { return copyUint(t.limit) }

// SetLimit replaces the row cap; nil clears it.
func (t *Tree) SetLimit(n *uint64) *Tree {
	t.limit = copyUint(n)
	return t
}

// Clone returns a structurally independent deep copy.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	out := &Tree{
		table:   t.table,
		alias:   t.alias,
		columns: slices.Clone(t.columns),
		joins:   slices.Clone(t.joins),
		groupBy: slices.Clone(t.groupBy),
		orderBy: slices.Clone(t.orderBy),
		offset:  copyUint(t.offset),
		limit:   copyUint(t.limit),
	}
	out.distinct = t.Distinct()
	if t.rawSelects != nil {
		out.rawSelects = make([]Raw, len(t.rawSelects))
		for i, r := range t.rawSelects {
			out.rawSelects[i] = r.clone()
		}
	}
	if t.wheres != nil {
		out.wheres = make([]Where, len(t.wheres))
		for i, w := range t.wheres {
			out.wheres[i] = w.clone()
		}
	}
	return out
}

func copyUint(n *uint64) *uint64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
