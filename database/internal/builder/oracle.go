package builder

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Oracle identifiers are always quoted so they keep their case; unquoted names
// would be folded to upper case and no longer match row keys on hydration.
func oracleDialect() dialect {
	return dialect{
		vendor:        dbtypes.Oracle,
		format:        squirrel.Colon,
		quoteOpen:     '"',
		quoteClose:    '"',
		tableAliasSep: " ",
		caps:          dbtypes.DefaultCapabilities(dbtypes.Oracle),
		paginate:      oraclePaginate,
	}
}

func oraclePaginate(sb squirrel.SelectBuilder, limit, offset *uint64) squirrel.SelectBuilder {
	if clause := buildOraclePaginationClause(limit, offset); clause != "" {
		return sb.Suffix(clause)
	}
	return sb
}

// buildOraclePaginationClause renders the 12c+ row limiting clause.
// Oracle requires OFFSET to come before FETCH NEXT.
func buildOraclePaginationClause(limit, offset *uint64) string {
	if limit == nil && offset == nil {
		return ""
	}

	parts := make([]string, 0, 2)
	if offset != nil {
		parts = append(parts, fmt.Sprintf("OFFSET %d ROWS", *offset))
	}
	if limit != nil {
		parts = append(parts, fmt.Sprintf("FETCH NEXT %d ROWS ONLY", *limit))
	}

	return strings.Join(parts, " ")
}
