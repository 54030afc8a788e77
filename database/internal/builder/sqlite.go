package builder

import (
	"fmt"

	"github.com/Masterminds/squirrel"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

func sqliteDialect() dialect {
	return dialect{
		vendor:        dbtypes.SQLite,
		format:        squirrel.Question,
		quoteOpen:     '"',
		quoteClose:    '"',
		tableAliasSep: " AS ",
		caps:          dbtypes.DefaultCapabilities(dbtypes.SQLite),
		paginate:      sqlitePaginate,
	}
}

// SQLite rejects OFFSET without LIMIT; a negative limit means unbounded.
func sqlitePaginate(sb squirrel.SelectBuilder, limit, offset *uint64) squirrel.SelectBuilder {
	if limit == nil && offset != nil {
		return sb.Suffix(fmt.Sprintf("LIMIT -1 OFFSET %d", *offset))
	}
	return limitOffset(sb, limit, offset)
}
