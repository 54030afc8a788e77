package builder

import (
	"github.com/Masterminds/squirrel"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

func postgresDialect() dialect {
	return dialect{
		vendor:        dbtypes.PostgreSQL,
		format:        squirrel.Dollar,
		quoteOpen:     '"',
		quoteClose:    '"',
		tableAliasSep: " AS ",
		caps:          dbtypes.DefaultCapabilities(dbtypes.PostgreSQL),
		paginate:      limitOffset,
	}
}

// limitOffset is the LIMIT/OFFSET pagination shared by PostgreSQL and the
// dialects that accept a bare OFFSET.
func limitOffset(sb squirrel.SelectBuilder, limit, offset *uint64) squirrel.SelectBuilder {
	if limit != nil {
		sb = sb.Limit(*limit)
	}
	if offset != nil {
		sb = sb.Offset(*offset)
	}
	return sb
}
