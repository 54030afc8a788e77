// Package orm is the fluent query builder over database connections. A Builder owns one
// expression tree, compiles it with the connection's compiler and hydrates the returned
// rows into typed models.
//
// Usage example:
//
//	users := orm.NewBuilder[*User](conn)
//	adults, err := users.Where("age", ">=", 18).OrderBy("name").Get(ctx)
package orm

import (
	"maps"
	"sync"
)

const (
	// DefaultIDAttribute is the identity attribute used when a Definition leaves it empty.
	DefaultIDAttribute = "id"

	// DefaultTimestampAttribute is the column Latest and Oldest order by when none is given.
	DefaultTimestampAttribute = "createdAt"
)

// Attributes maps attribute names to values.
type Attributes map[string]any

// Cast declares how an attribute is converted between storage and memory.
type Cast string

const (
	CastString Cast = "string"
	CastInt    Cast = "int"
	CastFloat  Cast = "float"
	CastBool   Cast = "bool"
	CastTime   Cast = "time"
	CastJSON   Cast = "json"
	CastArray  Cast = "array"
)

// Definition binds a model type to its storage.
type Definition struct {
	Table       string
	IDAttribute string

	// Fields lists the persisted attributes besides the identity. Joins select them
	// when the model is joined under a target.
	Fields []string

	Casts         map[string]Cast
	Timestamp     string
	Relationships map[string]Relationship
}

// IDName returns the identity attribute.
func (d *Definition) IDName() string {
	if d == nil || d.IDAttribute == "" {
		return DefaultIDAttribute
	}
	return d.IDAttribute
}

// TimestampName returns the default ordering column of Latest and Oldest.
func (d *Definition) TimestampName() string {
	if d == nil || d.Timestamp == "" {
		return DefaultTimestampAttribute
	}
	return d.Timestamp
}

// Columns returns the identity attribute followed by Fields, without duplicates.
func (d *Definition) Columns() []string {
	id := d.IDName()
	out := []string{id}
	for _, f := range d.Fields {
		if f != id {
			out = append(out, f)
		}
	}
	return out
}

// Definer exposes the storage binding of a model type.
type Definer interface {
	Definition() *Definition
}

// Model is what a Builder hydrates. Embed BaseModel and add a Definition method:
//
//	type User struct{ orm.BaseModel }
//
//	func (*User) Definition() *orm.Definition { return userDefinition }
type Model interface {
	Definer
	Attributes() Attributes
	Fill(attrs Attributes)
	Set(key string, value any)
}

// IdentityOf returns the identity attribute value of m.
func IdentityOf(m Model) any {
	return m.Attributes()[m.Definition().IDName()]
}

// BaseModel stores attributes in a map guarded for concurrent readers.
type BaseModel struct {
	mu    sync.RWMutex
	attrs Attributes
}

// Attributes returns a copy of every attribute.
func (m *BaseModel) Attributes() Attributes {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.attrs == nil {
		return Attributes{}
	}
	return maps.Clone(m.attrs)
}

// Fill replaces the attributes.
func (m *BaseModel) Fill(attrs Attributes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attrs = maps.Clone(attrs)
	if m.attrs == nil {
		m.attrs = Attributes{}
	}
}

// Get returns a single attribute, nil when unset.
func (m *BaseModel) Get(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attrs[key]
}

// Set assigns a single attribute.
func (m *BaseModel) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attrs == nil {
		m.attrs = Attributes{}
	}
	m.attrs[key] = value
}

// ID returns the DefaultIDAttribute value. Models with a custom identity use IdentityOf.
func (m *BaseModel) ID() any {
	return m.Get(DefaultIDAttribute)
}
