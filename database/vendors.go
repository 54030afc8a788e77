package database

import "github.com/gaborage/querybricks/database/types"

// Re-export database vendor identifiers; the single source of truth lives in types.
const (
	PostgreSQL = types.PostgreSQL
	MySQL      = types.MySQL
	SQLite     = types.SQLite
	Oracle     = types.Oracle
	MongoDB    = types.MongoDB
)
