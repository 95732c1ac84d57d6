package migration

import (
	"fmt"
	"strings"

	appconfig "github.com/BaSui01/intelflow/config"
)

// NewMigratorFromConfig creates a new migrator from application configuration
func NewMigratorFromConfig(cfg *appconfig.Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	return NewMigratorFromDatabaseConfig(cfg.Database)
}

// NewMigratorFromDatabaseConfig creates a new migrator from database configuration
func NewMigratorFromDatabaseConfig(dbCfg appconfig.DatabaseConfig) (*DefaultMigrator, error) {
	// Parse database type (Driver field in config)
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}

	return NewMigrator(&Config{
		DatabaseType: dbType,
		DatabaseURL:  NormalizeDSN(dbType, dbCfg.DSN()),
		TableName:    "schema_migrations",
	})
}

// NewMigratorFromURL creates a new migrator from a database URL
func NewMigratorFromURL(dbType, dbURL string) (*DefaultMigrator, error) {
	dt, err := ParseDatabaseType(dbType)
	if err != nil {
		return nil, err
	}

	return NewMigrator(&Config{
		DatabaseType: dt,
		DatabaseURL:  dbURL,
		TableName:    "schema_migrations",
	})
}

// NormalizeDSN rewrites a DSN for migrator use. Bare SQLite paths become
// file: URLs, and MySQL DSNs get multiStatements=true because migration
// files may contain several statements. Postgres DSNs pass through.
func NormalizeDSN(dbType DatabaseType, dsn string) string {
	switch dbType {
	case DatabaseTypeSQLite:
		if strings.HasPrefix(dsn, "file:") || strings.HasPrefix(dsn, ":memory:") {
			return dsn
		}
		return fmt.Sprintf("file:%s?mode=rwc&_pragma=foreign_keys(1)", dsn)
	case DatabaseTypeMySQL:
		if strings.Contains(dsn, "multiStatements=") {
			return dsn
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "multiStatements=true"
	default:
		return dsn
	}
}
