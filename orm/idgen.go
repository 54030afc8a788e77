package orm

import "github.com/google/uuid"

// IDGenerator assigns identities to inserted documents that do not carry one.
type IDGenerator interface {
	Generate() any
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() any

// Generate calls f.
func (f IDGeneratorFunc) Generate() any {
	return f()
}

// UUIDGenerator generates random (version 4) UUID strings.
type UUIDGenerator struct{}

// Generate returns a new UUID string.
func (UUIDGenerator) Generate() any {
	return uuid.NewString()
}
