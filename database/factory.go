package database

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gaborage/querybricks/config"
	"github.com/gaborage/querybricks/database/mongodb"
	"github.com/gaborage/querybricks/database/mysql"
	"github.com/gaborage/querybricks/database/oracle"
	"github.com/gaborage/querybricks/database/postgresql"
	"github.com/gaborage/querybricks/database/sqlite"
	"github.com/gaborage/querybricks/database/types"
	"github.com/gaborage/querybricks/logger"
)

// Connector creates an untracked connection from configuration.
type Connector func(*config.DatabaseConfig, logger.Logger) (Connection, error)

var connectors = map[string]Connector{
	PostgreSQL: func(cfg *config.DatabaseConfig, log logger.Logger) (Connection, error) {
		return postgresql.NewConnection(cfg, log)
	},
	MySQL: func(cfg *config.DatabaseConfig, log logger.Logger) (Connection, error) {
		return mysql.NewConnection(cfg, log)
	},
	SQLite: func(cfg *config.DatabaseConfig, log logger.Logger) (Connection, error) {
		return sqlite.NewConnection(cfg, log)
	},
	Oracle: func(cfg *config.DatabaseConfig, log logger.Logger) (Connection, error) {
		return oracle.NewConnection(cfg, log)
	},
	MongoDB: func(cfg *config.DatabaseConfig, log logger.Logger) (Connection, error) {
		return mongodb.NewConnection(cfg, log)
	},
}

// NewConnection creates a connection according to cfg and returns it wrapped with
// performance tracking. The backend is selected by cfg.Type.
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger, opts ...TrackingOption) (Connection, error) {
	if cfg == nil {
		return nil, errors.New("database configuration is required")
	}
	if err := ValidateDatabaseType(cfg.Type); err != nil {
		return nil, err
	}

	conn, err := connectors[cfg.Type](cfg, log)
	if err != nil {
		return nil, err
	}

	return Track(conn, log, cfg, opts...), nil
}

// ValidateDatabaseType returns nil if dbType is one of the supported database types.
func ValidateDatabaseType(dbType string) error {
	supported := GetSupportedDatabaseTypes()
	if !slices.Contains(supported, dbType) {
		return fmt.Errorf("%w: database type %q (supported: %v)", types.ErrUnsupported, dbType, supported)
	}
	return nil
}

// GetSupportedDatabaseTypes returns a list of supported database types
func GetSupportedDatabaseTypes() []string {
	return types.SupportedVendors()
}
