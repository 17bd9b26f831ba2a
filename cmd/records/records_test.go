package records

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aiphotofinder/photofinder/internal/conf"
	"github.com/aiphotofinder/photofinder/internal/datastore"
	"github.com/aiphotofinder/photofinder/internal/errors"
)

func createStore(t *testing.T) datastore.Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "image_keywords.db")

	store := datastore.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	ctx := t.Context()
	require.NoError(t, store.Upsert(ctx, "/photos/dog.jpg", datastore.Fields{Keywords: datastore.Ptr("dog, grass")}))
	require.NoError(t, store.Upsert(ctx, "/photos/cat.jpg", datastore.Fields{
		Keywords:    datastore.Ptr("cat, whiskers"),
		Description: datastore.Ptr("A cat sleeping on a sofa."),
	}))
	require.NoError(t, store.MarkArchived(ctx, "/photos/cat.jpg", "/photos-processed/cat.jpg"))
	return store
}

func TestListTable(t *testing.T) {
	store := createStore(t)

	var out bytes.Buffer
	require.NoError(t, List(t.Context(), store, FormatTable, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "FILENAME"))
	assert.Contains(t, lines[1], "/photos/cat.jpg")
	assert.Contains(t, lines[1], "/photos-processed/cat.jpg")
	assert.Contains(t, lines[2], "/photos/dog.jpg")
	assert.Contains(t, lines[2], "dog, grass")
}

func TestListYAML(t *testing.T) {
	store := createStore(t)

	var out bytes.Buffer
	require.NoError(t, List(t.Context(), store, FormatYAML, &out))

	var views []recordView
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "/photos/cat.jpg", views[0].Filename)
	require.NotNil(t, views[0].Description)
	assert.Equal(t, "A cat sleeping on a sofa.", *views[0].Description)
	assert.Nil(t, views[1].Description)
	assert.Nil(t, views[1].ArchivedPath)
}

func TestListRejectsUnknownFormat(t *testing.T) {
	store := createStore(t)

	err := List(t.Context(), store, "csv", &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestGet(t *testing.T) {
	store := createStore(t)

	var out bytes.Buffer
	require.NoError(t, Get(t.Context(), store, "/photos/dog.jpg", &out))
	assert.Contains(t, out.String(), "keywords: dog, grass")

	err := Get(t.Context(), store, "/photos/missing.jpg", &bytes.Buffer{})
	assert.ErrorIs(t, err, datastore.ErrRecordNotFound)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short"))
	assert.Equal(t, "two lines", clip("two\nlines"))

	long := strings.Repeat("a", maxCellWidth+10)
	clipped := clip(long)
	assert.Len(t, []rune(clipped), maxCellWidth)
	assert.True(t, strings.HasSuffix(clipped, "..."))
}
