package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aiphotofinder/photofinder/internal/conf"
	"github.com/aiphotofinder/photofinder/internal/errors"
)

// SQLiteStore implements DataStore for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Output.SQLite.Path == "" {
		return validationError("sqlite path must not be empty", "output.sqlite.path", settings.Output.SQLite.Path)
	}
	return nil
}

// Open sets up the SQLite database connection and migrates the schema
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	dir, fileName := filepath.Split(store.Settings.Output.SQLite.Path)
	dbPath := filepath.Join(dir, fileName)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(fmt.Errorf("failed to create database directory: %w", err)).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("dir", dir).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: createGormLogger(store.Settings.Debug)})
	if err != nil {
		return dbError(fmt.Errorf("failed to open SQLite database: %w", err), "open", errors.PriorityCritical,
			"path", dbPath)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", dbPath)
}

// Close closes the SQLite database connection
func (store *SQLiteStore) Close() error {
	return store.closeDB("SQLite")
}
