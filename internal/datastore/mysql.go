package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/aiphotofinder/photofinder/internal/conf"
	"github.com/aiphotofinder/photofinder/internal/errors"
)

// MySQLStore implements DataStore for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	if settings.Output.MySQL.Host == "" {
		return validationError("mysql host must not be empty", "output.mysql.host", settings.Output.MySQL.Host)
	}
	if settings.Output.MySQL.Database == "" {
		return validationError("mysql database must not be empty", "output.mysql.database", settings.Output.MySQL.Database)
	}
	return nil
}

// mysqlDSN builds the connection string for the configured server
func mysqlDSN(s conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// Open sets up the MySQL database connection and migrates the schema
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	settings := store.Settings.Output.MySQL
	db, err := gorm.Open(mysql.Open(mysqlDSN(settings)), &gorm.Config{Logger: createGormLogger(store.Settings.Debug)})
	if err != nil {
		logger.Error("Failed to open MySQL database",
			"host", settings.Host,
			"port", settings.Port,
			"database", settings.Database,
			"error", err)
		return dbError(fmt.Errorf("failed to open MySQL database: %w", err), "open", errors.PriorityCritical,
			"host", settings.Host,
			"database", settings.Database)
	}

	store.DB = db
	// the DSN carries the password, log only the address
	return performAutoMigration(db, store.Settings.Debug, "MySQL", fmt.Sprintf("%s:%s/%s", settings.Host, settings.Port, settings.Database))
}

// Close closes the MySQL database connection
func (store *MySQLStore) Close() error {
	return store.closeDB("MySQL")
}
