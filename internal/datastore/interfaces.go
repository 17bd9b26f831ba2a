// Package datastore persists enrichment records through gorm.
package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/aiphotofinder/photofinder/internal/conf"
	"github.com/aiphotofinder/photofinder/internal/errors"
	"github.com/aiphotofinder/photofinder/internal/logging"
)

// ErrRecordNotFound is matched by errors.Is when no record exists for a filename.
var ErrRecordNotFound = errors.NewStd("record not found")

var logger *slog.Logger

func init() {
	logger = logging.ForService("datastore")
}

// Interface abstracts the record store used by the pipeline and the CLI.
type Interface interface {
	Open() error
	Close() error
	Upsert(ctx context.Context, filename string, fields Fields) error
	Get(ctx context.Context, filename string) (Record, error)
	List(ctx context.Context) ([]Record, error)
	MarkArchived(ctx context.Context, filename, archivedPath string) error
}

// DataStore implements the record operations shared by all drivers.
type DataStore struct {
	DB *gorm.DB
}

// New creates a new DataStore instance based on the provided configuration context.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return &SQLiteStore{Settings: settings}
	}
}

// Upsert writes fields for filename inside one transaction. An existing row
// gets only the supplied fields overwritten, otherwise a new row is inserted.
func (ds *DataStore) Upsert(ctx context.Context, filename string, fields Fields) error {
	if err := ds.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(filename) == "" {
		return validationError("filename must not be empty", "filename", filename)
	}

	start := time.Now()
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Record
		err := tx.Where("filename = ?", filename).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec := Record{Filename: filename}
			if fields.Keywords != nil {
				rec.Keywords = *fields.Keywords
			}
			if fields.Description != nil {
				rec.Description = fields.Description
			}
			if fields.ContentHash != nil {
				rec.ContentHash = *fields.ContentHash
			}
			if fields.Model != nil {
				rec.Model = *fields.Model
			}
			return tx.Create(&rec).Error
		case err != nil:
			return err
		}

		cols := fields.columns()
		if len(cols) == 0 {
			return nil
		}
		return tx.Model(&existing).Updates(cols).Error
	})
	if err != nil {
		return dbError(err, "upsert", errors.PriorityHigh,
			"filename", filename,
			"duration_ms", time.Since(start).Milliseconds())
	}

	logger.Debug("record upserted", "filename", filename, "duration", time.Since(start))
	return nil
}

// Get returns the record stored for filename.
func (ds *DataStore) Get(ctx context.Context, filename string) (Record, error) {
	if err := ds.ready(); err != nil {
		return Record{}, err
	}

	var rec Record
	err := ds.DB.WithContext(ctx).Where("filename = ?", filename).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, notFoundError("record", filename)
		}
		return Record{}, dbError(err, "get", "", "filename", filename)
	}
	return rec, nil
}

// List returns all records ordered by filename.
func (ds *DataStore) List(ctx context.Context) ([]Record, error) {
	if err := ds.ready(); err != nil {
		return nil, err
	}

	var records []Record
	if err := ds.DB.WithContext(ctx).Order("filename ASC").Find(&records).Error; err != nil {
		return nil, dbError(err, "list", "")
	}
	return records, nil
}

// MarkArchived stores the path a record's image was moved to.
func (ds *DataStore) MarkArchived(ctx context.Context, filename, archivedPath string) error {
	if err := ds.ready(); err != nil {
		return err
	}

	result := ds.DB.WithContext(ctx).Model(&Record{}).
		Where("filename = ?", filename).
		Update("archived_path", archivedPath)
	if result.Error != nil {
		return dbError(result.Error, "mark_archived", "", "filename", filename)
	}
	if result.RowsAffected == 0 {
		return notFoundError("record", filename)
	}
	return nil
}

// ready reports an error when the store has not been opened
func (ds *DataStore) ready() error {
	if ds.DB == nil {
		return dbError(fmt.Errorf("database connection is not initialized"), "check_connection", errors.PriorityCritical)
	}
	return nil
}

// closeDB closes the underlying sql.DB
func (ds *DataStore) closeDB(dbType string) error {
	if ds.DB == nil {
		return nil
	}

	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", "", "db_type", dbType)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", "", "db_type", dbType)
	}
	ds.DB = nil

	logger.Debug("database closed", "db_type", dbType)
	return nil
}

// performAutoMigration creates or updates the schema
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return dbError(fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err), "auto_migrate", errors.PriorityCritical,
			"db_type", dbType)
	}

	if debug {
		logger.Debug("database connection initialized", "db_type", dbType, "connection", connectionInfo)
	}

	return nil
}
