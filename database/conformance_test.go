package database_test

import (
	"github.com/gaborage/querybricks/database"
	"github.com/gaborage/querybricks/database/mongodb"
	"github.com/gaborage/querybricks/database/mysql"
	"github.com/gaborage/querybricks/database/oracle"
	"github.com/gaborage/querybricks/database/postgresql"
	"github.com/gaborage/querybricks/database/sqlite"
	dbtesting "github.com/gaborage/querybricks/database/testing"
)

// Compile-time interface conformance checks. These are not runtime tests,
// but they ensure the concrete connection types continue to satisfy the
// public database.Connection contract.
var (
	_ database.Connection = (*postgresql.Connection)(nil)
	_ database.Connection = (*mysql.Connection)(nil)
	_ database.Connection = (*sqlite.Connection)(nil)
	_ database.Connection = (*oracle.Connection)(nil)
	_ database.Connection = (*mongodb.Connection)(nil)
	_ database.Connection = (*database.TrackedConnection)(nil)
	_ database.Connection = (*dbtesting.TestDB)(nil)
)
