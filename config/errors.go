package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured marks an optional connection or feature that was left out on purpose.
var ErrNotConfigured = errors.New("not configured")

// Category classifies a ConfigError.
type Category string

const (
	CategoryMissing       Category = "missing"
	CategoryInvalid       Category = "invalid"
	CategoryNotConfigured Category = "not_configured"
)

// ConfigError points at a single configuration key and says how to fix it.
// Messages are lowercase.
//
//nolint:revive // ConfigError reads better than Error at call sites
type ConfigError struct {
	Category Category
	Field    string // dotted key, e.g. "database.connections.main.host"
	Message  string
	Action   string
	Details  []string
}

// Error renders "config_<category>: <field> <message> <action> <details>", skipping
// empty parts.
func (e *ConfigError) Error() string {
	var b strings.Builder
	if e.Category != "" {
		fmt.Fprintf(&b, "config_%s:", e.Category)
	}
	for _, part := range []string{e.Field, e.Message, e.Action, strings.Join(e.Details, "; ")} {
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(part)
	}
	return b.String()
}

// Is matches ErrNotConfigured for not_configured errors.
func (e *ConfigError) Is(target error) bool {
	return target == ErrNotConfigured && e.Category == CategoryNotConfigured
}

func setHint(envVar, yamlPath string) string {
	return fmt.Sprintf("set %s env var or add %s to config.yaml", envVar, yamlPath)
}

// NewMissingFieldError reports a required key that has no value.
func NewMissingFieldError(field, envVar, yamlPath string) *ConfigError {
	return &ConfigError{Category: CategoryMissing, Field: field, Message: "required", Action: setHint(envVar, yamlPath)}
}

// NewInvalidFieldError reports a key whose value is rejected, listing the accepted values
// when there is a closed set.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := NewValidationError(field, message)
	if len(validOptions) > 0 {
		err.Action = "must be one of: " + strings.Join(validOptions, ", ")
	}
	return err
}

// NewValidationError reports a rejected key without a suggested fix.
func NewValidationError(field, message string) *ConfigError {
	return &ConfigError{Category: CategoryInvalid, Field: field, Message: message}
}

// NewNotConfiguredError reports an optional key that was never set.
func NewNotConfiguredError(feature, envVar, yamlPath string) *ConfigError {
	return &ConfigError{
		Category: CategoryNotConfigured,
		Field:    feature,
		Message:  "(optional)",
		Action:   "to enable: " + setHint(envVar, yamlPath),
	}
}

// IsNotConfigured reports whether err, or anything it wraps, is a not-configured error.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}
