//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"slices"
	"strings"
)

// Vendor identifies a storage backend.
type Vendor = string

const (
	PostgreSQL Vendor = "postgresql"
	MySQL      Vendor = "mysql"
	SQLite     Vendor = "sqlite"
	Oracle     Vendor = "oracle"
	MongoDB    Vendor = "mongodb"
)

// SupportedVendors lists every backend with a compiler and a gateway.
func SupportedVendors() []Vendor {
	return []Vendor{PostgreSQL, MySQL, SQLite, Oracle, MongoDB}
}

// Capability is a feature a backend may or may not support.
// Callers query capabilities instead of matching connection names.
type Capability string

const (
	CapRawSQL        Capability = "raw_sql"
	CapReturning     Capability = "returning"
	CapRightJoin     Capability = "right_join"
	CapFullJoin      Capability = "full_join"
	CapDistinctOn    Capability = "distinct_on"
	CapTransactions  Capability = "transactions"
	CapDocumentStore Capability = "document_store"
	CapNativeJSON    Capability = "native_json"
)

// CapabilitySet is an immutable set of capabilities.
type CapabilitySet struct {
	caps []Capability
}

// NewCapabilitySet builds a set, dropping duplicates. Members are kept sorted.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	out := make([]Capability, 0, len(caps))
	for _, c := range caps {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return CapabilitySet{caps: out}
}

// Has reports whether c is part of the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, found := slices.BinarySearch(s.caps, c)
	return found
}

// List returns a copy of the members.
func (s CapabilitySet) List() []Capability {
	return slices.Clone(s.caps)
}

func (s CapabilitySet) String() string {
	parts := make([]string, len(s.caps))
	for i, c := range s.caps {
		parts[i] = string(c)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// DefaultCapabilities returns the capability set each bundled backend declares.
func DefaultCapabilities(v Vendor) CapabilitySet {
	switch v {
	case PostgreSQL:
		return NewCapabilitySet(CapRawSQL, CapReturning, CapRightJoin, CapFullJoin, CapDistinctOn, CapTransactions, CapNativeJSON)
	case MySQL:
		return NewCapabilitySet(CapRawSQL, CapRightJoin, CapTransactions)
	case SQLite:
		return NewCapabilitySet(CapRawSQL, CapReturning, CapTransactions)
	case Oracle:
		return NewCapabilitySet(CapRawSQL, CapRightJoin, CapFullJoin, CapTransactions)
	case MongoDB:
		return NewCapabilitySet(CapDocumentStore, CapTransactions, CapNativeJSON)
	default:
		return NewCapabilitySet()
	}
}
