package builder

import (
	"sort"
	"strings"

	dbtypes "github.com/gaborage/querybricks/database/types"
)

// sortedKeys returns map keys in sorted order for deterministic SQL generation
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// unionKeys returns the sorted union of every row's keys.
func unionKeys(rows []dbtypes.Row) []string {
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// valuesByKeyOrder returns values in the order specified by keys.
// Missing keys bind nil.
func valuesByKeyOrder(m map[string]any, keys []string) []any {
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = m[k]
	}
	return values
}

// escapeIdentifiers applies dialect quoting to a list of identifiers
func (c *Compiler) escapeIdentifiers(columns []string) []string {
	escaped := make([]string, len(columns))
	for i, col := range columns {
		escaped[i] = c.EscapeIdentifier(col)
	}
	return escaped
}

// EscapeIdentifier quotes every dot-separated part of an identifier.
// "*" and parts that are already quoted are left untouched.
func (c *Compiler) EscapeIdentifier(identifier string) string {
	if identifier == "" {
		return identifier
	}
	parts := strings.Split(identifier, ".")
	for i, part := range parts {
		if part == "*" || isQuoted(part, c.dialect.quoteOpen, c.dialect.quoteClose) {
			continue
		}
		parts[i] = c.dialect.quote(part)
	}
	return strings.Join(parts, ".")
}

func isQuoted(part string, open, closing byte) bool {
	return len(part) >= 2 && part[0] == open && part[len(part)-1] == closing
}

// qualify prefixes an unqualified column with table.
func qualify(column, table string) string {
	if table == "" || strings.Contains(column, ".") {
		return column
	}
	return table + "." + column
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
