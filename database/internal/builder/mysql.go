package builder

import (
	"fmt"

	"github.com/Masterminds/squirrel"
	dbtypes "github.com/gaborage/querybricks/database/types"
)

// mysqlMaxLimit is the documented way to express "no limit" when only OFFSET is wanted.
const mysqlMaxLimit = "18446744073709551615"

func mysqlDialect() dialect {
	return dialect{
		vendor:        dbtypes.MySQL,
		format:        squirrel.Question,
		quoteOpen:     '`',
		quoteClose:    '`',
		tableAliasSep: " AS ",
		caps:          dbtypes.DefaultCapabilities(dbtypes.MySQL),
		paginate:      mysqlPaginate,
	}
}

func mysqlPaginate(sb squirrel.SelectBuilder, limit, offset *uint64) squirrel.SelectBuilder {
	if limit == nil && offset != nil {
		return sb.Suffix(fmt.Sprintf("LIMIT %s OFFSET %d", mysqlMaxLimit, *offset))
	}
	return limitOffset(sb, limit, offset)
}
