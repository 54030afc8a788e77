package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	dbtypes "github.com/gaborage/querybricks/database/types"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("vendor", validateVendor); err != nil {
		panic(fmt.Sprintf("register vendor validation: %v", err))
	}
	return v
}

func validateVendor(fl validator.FieldLevel) bool {
	return slices.Contains(dbtypes.SupportedVendors(), fl.Field().String())
}

// Validate checks struct tags first, then the cross-field rules tags cannot express.
// Every failure is reported, not only the first one.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return fromValidationErrors(validationErrors)
		}
		return err
	}

	return validateDatabases(&cfg.Database)
}

func fromValidationErrors(errs validator.ValidationErrors) error {
	out := make([]error, 0, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
		switch fe.Tag() {
		case "required":
			out = append(out, NewValidationError(field, "required"))
		case "vendor":
			out = append(out, NewInvalidFieldError(field, fmt.Sprintf("unsupported database type %q", fe.Value()), dbtypes.SupportedVendors()))
		case "oneof":
			out = append(out, NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fe.Value()), strings.Fields(fe.Param())))
		default:
			out = append(out, NewValidationError(field, fmt.Sprintf("failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value())))
		}
	}
	return errors.Join(out...)
}

func validateDatabases(cfg *DatabasesConfig) error {
	if len(cfg.Connections) == 0 {
		if cfg.Default != "" {
			return NewInvalidFieldError("database.default", fmt.Sprintf("connection %q is not configured", cfg.Default), nil)
		}
		return nil
	}

	names := make([]string, 0, len(cfg.Connections))
	for name := range cfg.Connections {
		names = append(names, name)
	}
	sort.Strings(names)

	if cfg.Default == "" {
		return NewMissingFieldError("database.default", EnvPrefix+"DATABASE_DEFAULT", "database.default")
	}
	if _, ok := cfg.Connections[cfg.Default]; !ok {
		return NewInvalidFieldError("database.default", fmt.Sprintf("connection %q is not configured", cfg.Default), names)
	}

	var errs []error
	for _, name := range names {
		conn := cfg.Connections[name]
		if err := validateConnection(name, &conn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// validateConnection checks the fields each backend needs to open a connection.
func validateConnection(name string, cfg *DatabaseConfig) error {
	prefix := "database.connections." + name
	if cfg.ConnectionString != "" {
		return nil
	}

	switch cfg.Type {
	case dbtypes.SQLite:
		if cfg.Path == "" && cfg.Database == "" {
			return NewMissingFieldError(prefix+".path", envKey(prefix+".path"), prefix+".path")
		}
		return nil
	case dbtypes.Oracle:
		if cfg.Oracle.Service.Name == "" && cfg.Oracle.Service.SID == "" && cfg.Database == "" {
			return NewValidationError(prefix+".oracle.service", "oracle requires a service name, a SID or a database")
		}
	default:
		if cfg.Database == "" {
			return NewMissingFieldError(prefix+".database", envKey(prefix+".database"), prefix+".database")
		}
	}

	if cfg.Host == "" {
		return NewMissingFieldError(prefix+".host", envKey(prefix+".host"), prefix+".host")
	}
	return nil
}

func envKey(path string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
}
