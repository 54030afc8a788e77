package orm

import "slices"

// Collection is the ordered result of a multi-row fetch.
type Collection[M Model] struct {
	items []M
}

// NewCollection wraps items in a Collection.
func NewCollection[M Model](items ...M) *Collection[M] {
	return &Collection[M]{items: slices.Clone(items)}
}

// Count returns the number of models.
func (c *Collection[M]) Count() int {
	return len(c.items)
}

// IsEmpty reports whether the collection holds no models.
func (c *Collection[M]) IsEmpty() bool {
	return len(c.items) == 0
}

// At returns the model at index i, or the zero M when i is out of range.
func (c *Collection[M]) At(i int) M {
	var zero M
	if i < 0 || i >= len(c.items) {
		return zero
	}
	return c.items[i]
}

// First returns the first model, or the zero M when empty.
func (c *Collection[M]) First() M {
	return c.At(0)
}

// Last returns the last model, or the zero M when empty.
func (c *Collection[M]) Last() M {
	return c.At(len(c.items) - 1)
}

// Items returns a copy of the underlying slice.
func (c *Collection[M]) Items() []M {
	return slices.Clone(c.items)
}

// Each calls fn for every model in order.
func (c *Collection[M]) Each(fn func(i int, m M)) {
	for i, m := range c.items {
		fn(i, m)
	}
}

// Pluck returns one attribute of every model, in order.
func (c *Collection[M]) Pluck(attr string) []any {
	out := make([]any, len(c.items))
	for i, m := range c.items {
		out[i] = m.Attributes()[attr]
	}
	return out
}

// Attributes returns the attributes of every model, in order.
func (c *Collection[M]) Attributes() []Attributes {
	out := make([]Attributes, len(c.items))
	for i, m := range c.items {
		out[i] = m.Attributes()
	}
	return out
}
