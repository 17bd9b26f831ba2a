package datastore

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiphotofinder/photofinder/internal/conf"
	"github.com/aiphotofinder/photofinder/internal/errors"
)

// createDatabase initializes a temporary database for testing purposes.
// It ensures the database connection is opened and handles potential errors.
func createDatabase(t *testing.T) Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "image_keywords.db")

	dataStore := New(settings)

	require.NoError(t, dataStore.Open(), "Failed to open database")
	t.Cleanup(func() {
		assert.NoError(t, dataStore.Close(), "Failed to close datastore")
	})

	return dataStore
}

func TestNewSelectsDriver(t *testing.T) {
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	assert.IsType(t, &SQLiteStore{}, New(settings))

	settings.Output.SQLite.Enabled = false
	settings.Output.MySQL.Enabled = true
	assert.IsType(t, &MySQLStore{}, New(settings))
}

func TestUpsertIsIdempotent(t *testing.T) {
	ds := createDatabase(t)
	ctx := t.Context()

	fields := Fields{Keywords: Ptr("cat, animal"), ContentHash: Ptr("abc"), Model: Ptr("llava:34b")}
	require.NoError(t, ds.Upsert(ctx, "/photos/cat.jpg", fields))
	require.NoError(t, ds.Upsert(ctx, "/photos/cat.jpg", fields))

	records, err := ds.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "/photos/cat.jpg", records[0].Filename)
	assert.Equal(t, "cat, animal", records[0].Keywords)
	assert.Equal(t, "abc", records[0].ContentHash)
	assert.Equal(t, "llava:34b", records[0].Model)
	assert.Nil(t, records[0].Description)
	assert.Nil(t, records[0].ArchivedPath)
}

func TestUpsertPreservesAbsentFields(t *testing.T) {
	ds := createDatabase(t)
	ctx := t.Context()

	require.NoError(t, ds.Upsert(ctx, "/photos/dog.jpg", Fields{Keywords: Ptr("dog")}))
	require.NoError(t, ds.Upsert(ctx, "/photos/dog.jpg", Fields{Description: Ptr("A dog on a beach.")}))

	rec, err := ds.Get(ctx, "/photos/dog.jpg")
	require.NoError(t, err)
	assert.Equal(t, "dog", rec.Keywords)
	require.NotNil(t, rec.Description)
	assert.Equal(t, "A dog on a beach.", *rec.Description)

	// a later keywords-only write keeps the description
	require.NoError(t, ds.Upsert(ctx, "/photos/dog.jpg", Fields{Keywords: Ptr("dog, beach")}))
	rec, err = ds.Get(ctx, "/photos/dog.jpg")
	require.NoError(t, err)
	assert.Equal(t, "dog, beach", rec.Keywords)
	require.NotNil(t, rec.Description)
	assert.Equal(t, "A dog on a beach.", *rec.Description)
}

func TestUpsertEmptyFieldsIsNoop(t *testing.T) {
	ds := createDatabase(t)
	ctx := t.Context()

	require.NoError(t, ds.Upsert(ctx, "/photos/a.png", Fields{}))
	require.NoError(t, ds.Upsert(ctx, "/photos/a.png", Fields{}))

	rec, err := ds.Get(ctx, "/photos/a.png")
	require.NoError(t, err)
	assert.Empty(t, rec.Keywords)
}

func TestUpsertRejectsEmptyFilename(t *testing.T) {
	ds := createDatabase(t)
	err := ds.Upsert(t.Context(), " ", Fields{Keywords: Ptr("x")})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestUpsertConcurrentSameFilename(t *testing.T) {
	ds := createDatabase(t)
	ctx := t.Context()

	// seed the row so concurrent writers only update
	require.NoError(t, ds.Upsert(ctx, "/photos/same.jpg", Fields{Keywords: Ptr("seed")}))

	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			_ = ds.Upsert(ctx, "/photos/same.jpg", Fields{Keywords: Ptr("k")})
		})
	}
	wg.Wait()

	records, err := ds.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestGetMissing(t *testing.T) {
	ds := createDatabase(t)
	_, err := ds.Get(t.Context(), "/photos/none.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.True(t, errors.IsNotFound(err))
}

func TestListOrdered(t *testing.T) {
	ds := createDatabase(t)
	ctx := t.Context()

	for _, name := range []string{"/p/c.jpg", "/p/a.jpg", "/p/b.jpg"} {
		require.NoError(t, ds.Upsert(ctx, name, Fields{Keywords: Ptr("k")}))
	}

	records, err := ds.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "/p/a.jpg", records[0].Filename)
	assert.Equal(t, "/p/c.jpg", records[2].Filename)
}

func TestMarkArchived(t *testing.T) {
	ds := createDatabase(t)
	ctx := t.Context()

	require.NoError(t, ds.Upsert(ctx, "/photos/cat.jpg", Fields{Keywords: Ptr("cat")}))
	require.NoError(t, ds.MarkArchived(ctx, "/photos/cat.jpg", "/photos-processed/cat.jpg"))

	rec, err := ds.Get(ctx, "/photos/cat.jpg")
	require.NoError(t, err)
	require.NotNil(t, rec.ArchivedPath)
	assert.Equal(t, "/photos-processed/cat.jpg", *rec.ArchivedPath)
	assert.Equal(t, "cat", rec.Keywords)

	err = ds.MarkArchived(ctx, "/photos/none.jpg", "/x")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestPersistsAcrossReopen(t *testing.T) {
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "nested", "image_keywords.db")

	ds := New(settings)
	require.NoError(t, ds.Open())
	require.NoError(t, ds.Upsert(t.Context(), "/photos/cat.jpg", Fields{Keywords: Ptr("cat")}))
	require.NoError(t, ds.Close())

	reopened := New(settings)
	require.NoError(t, reopened.Open())
	t.Cleanup(func() { _ = reopened.Close() })

	rec, err := reopened.Get(t.Context(), "/photos/cat.jpg")
	require.NoError(t, err)
	assert.Equal(t, "cat", rec.Keywords)
}

func TestOperationsBeforeOpen(t *testing.T) {
	settings := &conf.Settings{}
	settings.Output.SQLite.Path = "unused.db"
	ds := New(settings)

	err := ds.Upsert(t.Context(), "/photos/cat.jpg", Fields{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))

	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
	assert.NoError(t, ds.Close())
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(conf.MySQLSettings{Username: "u", Password: "p", Host: "db", Port: "3306", Database: "photos"})
	assert.Equal(t, "u:p@tcp(db:3306)/photos?charset=utf8mb4&parseTime=True&loc=Local", dsn)
}
