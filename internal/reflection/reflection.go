// Package reflection provides internal reflection helpers for the querybricks model layer.
package reflection

import (
	"fmt"
	"reflect"
)

// GetTypeName returns the fully qualified type name
func GetTypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}

	// Handle pointer types
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.PkgPath() == "" {
		return t.Name()
	}

	return t.PkgPath() + "." + t.Name()
}

// GetTypeNameShort returns just the type name without package path
func GetTypeNameShort(t reflect.Type) string {
	if t == nil {
		return ""
	}

	// Handle pointer types
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t.Name()
}

// IsStructPointer reports whether t is a pointer to a struct type.
func IsStructPointer(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct
}

// Instantiator returns a constructor for T, which must be a pointer to a struct.
// Each call of the constructor allocates a fresh zero struct.
func Instantiator[T any]() (func() T, error) {
	t := reflect.TypeFor[T]()
	if !IsStructPointer(t) {
		return nil, fmt.Errorf("type %s must be a pointer to a struct", typeLabel(t))
	}
	elem := t.Elem()
	return func() T {
		return reflect.New(elem).Interface().(T)
	}, nil
}

func typeLabel(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
