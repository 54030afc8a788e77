package testing

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// RowSet represents a collection of rows returned by a scripted request.
// It provides a fluent API for building test data that TestDB hands back as []dbtypes.Row.
//
// RowSet is vendor-agnostic - it works the same way for SQL and MongoDB tests.
//
// Usage example:
//
//	rows := NewRowSet("id", "name", "email").
//	    AddRow(1, "Alice", "alice@example.com").
//	    AddRow(2, "Bob", "bob@example.com")
//
//	db.ExpectSelect("users").WillReturnRows(rows)
type RowSet struct {
	columns []string
	rows    [][]any
}

// NewRowSet creates a new RowSet with the specified column names.
//
// Example:
//
//	rs := NewRowSet("id", "name")  // Two columns
func NewRowSet(columns ...string) *RowSet {
	return &RowSet{
		columns: columns,
		rows:    make([][]any, 0),
	}
}

// AddRow adds a single row of values to the RowSet.
// The number of values must match the number of columns specified in NewRowSet().
// Returns the RowSet for method chaining.
//
// Panics if the number of values doesn't match the number of columns.
func (rs *RowSet) AddRow(values ...any) *RowSet {
	if len(values) != len(rs.columns) {
		panic(fmt.Sprintf("AddRow: expected %d values for columns %v, got %d",
			len(rs.columns), rs.columns, len(values)))
	}
	rs.rows = append(rs.rows, values)
	return rs
}

// AddRows adds multiple rows using a generator function.
// The generator is called count times with index i (0-based).
//
// Example (generate 100 test users):
//
//	rs := NewRowSet("id", "name").
//	    AddRows(100, func(i int) []any {
//	        return []any{int64(i+1), fmt.Sprintf("User%d", i+1)}
//	    })
func (rs *RowSet) AddRows(count int, generator func(i int) []any) *RowSet {
	for i := range count {
		rs.AddRow(generator(i)...)
	}
	return rs
}

// AddRowsFromStructs extracts values from struct instances and adds them as rows.
// Structs must have `db:"column_name"` tags matching the RowSet columns.
//
// Example:
//
//	type User struct {
//	    ID   int64  `db:"id"`
//	    Name string `db:"name"`
//	}
//
//	rs := NewRowSet("id", "name").
//	    AddRowsFromStructs(
//	        &User{ID: 1, Name: "Alice"},
//	        &User{ID: 2, Name: "Bob"},
//	    )
func (rs *RowSet) AddRowsFromStructs(structs ...any) *RowSet {
	for _, s := range structs {
		rs.AddRow(extractStructValues(s, rs.columns)...)
	}
	return rs
}

// AddMaps adds rows keyed by column name. Columns missing from a map are nil.
func (rs *RowSet) AddMaps(rows ...map[string]any) *RowSet {
	for _, m := range rows {
		values := make([]any, len(rs.columns))
		for i, col := range rs.columns {
			values[i] = m[col]
		}
		rs.AddRow(values...)
	}
	return rs
}

// RowCount returns the number of rows in the RowSet.
func (rs *RowSet) RowCount() int {
	return len(rs.rows)
}

// Columns returns the column names for this RowSet.
func (rs *RowSet) Columns() []string {
	return slices.Clone(rs.columns)
}

// Rows returns a fresh copy of the rows keyed by column name. Pointer values are
// dereferenced and nil pointers become nil, the way a driver would report them.
func (rs *RowSet) Rows() []map[string]any {
	out := make([]map[string]any, len(rs.rows))
	for i, values := range rs.rows {
		row := make(map[string]any, len(rs.columns))
		for j, col := range rs.columns {
			row[col] = derefValue(values[j])
		}
		out[i] = row
	}
	return out
}

// derefValue unwraps pointers and copies maps so scripted data is never shared.
func derefValue(v any) any {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return maps.Clone(m)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		return v
	}
	if rv.IsNil() {
		return nil
	}
	return derefValue(rv.Elem().Interface())
}

// extractStructValues extracts field values from a struct based on db tags.
// Returns values in the same order as the columns parameter.
func extractStructValues(structPtr any, columns []string) []any {
	v := reflect.ValueOf(structPtr)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		panic(fmt.Sprintf("extractStructValues: expected struct or pointer to struct, got %T", structPtr))
	}

	t := v.Type()
	tagToField := make(map[string]reflect.Value)

	// Build map of db tag -> field value
	for i := range t.NumField() {
		field := t.Field(i)
		tag := field.Tag.Get("db")
		if tag != "" && tag != "-" {
			tagToField[tag] = v.Field(i)
		}
	}

	// Extract values in column order
	values := make([]any, len(columns))
	for i, col := range columns {
		field, ok := tagToField[col]
		if !ok {
			panic(fmt.Sprintf("extractStructValues: column %q not found in struct %T (check db tags)", col, structPtr))
		}
		values[i] = field.Interface()
	}

	return values
}
