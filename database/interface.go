package database

import (
	"github.com/gaborage/querybricks/database/expression"
	"github.com/gaborage/querybricks/database/types"
)

// Connection is a gateway paired with the expression compiler of its backend.
// It is what the query builder binds to.
type Connection interface {
	types.Gateway

	// Compiler returns the compiler that produces requests this connection executes.
	Compiler() expression.Compiler
}

// The contracts live in database/types to avoid import cycles; these aliases keep the
// common names one import away.
type (
	Gateway  = types.Gateway
	Scope    = types.Scope
	Executor = types.Executor
	Request  = types.Request
	Result   = types.Result
	Row      = types.Row
)
