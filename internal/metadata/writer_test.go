package metadata

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/barasher/go-exiftool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiphotofinder/photofinder/internal/errors"
)

func requireExiftool(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("exiftool"); err != nil {
		t.Skip("exiftool not installed")
	}
}

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, nil))
	require.NoError(t, f.Close())
}

func TestSplitKeywords(t *testing.T) {
	assert.Equal(t, []string{"cat", "animal", "pet"}, SplitKeywords("cat, animal,pet"))
	assert.Equal(t, []string{"sunset"}, SplitKeywords(" sunset ,, "))
	assert.Empty(t, SplitKeywords(""))
}

func TestExiftoolWriterWritesTags(t *testing.T) {
	requireExiftool(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "cat.jpg")
	writeJPEG(t, path)

	w, err := NewExiftoolWriter(Options{BackupOriginal: true})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, w.Close()) })

	require.NoError(t, w.WriteTags(t.Context(), path, "A cat on a sofa.", "cat, animal, pet"))

	assert.FileExists(t, path+BackupSuffix)

	et, err := exiftool.NewExiftool()
	require.NoError(t, err)
	defer et.Close()

	got := et.ExtractMetadata(path)
	require.Len(t, got, 1)
	require.NoError(t, got[0].Err)

	desc, err := got[0].GetString(TagImageDescription)
	require.NoError(t, err)
	assert.Equal(t, "A cat on a sofa.", desc)

	keywords, err := got[0].GetStrings(TagKeywords)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "animal", "pet"}, keywords)
}

func TestExiftoolWriterWithoutBackup(t *testing.T) {
	requireExiftool(t)

	path := filepath.Join(t.TempDir(), "dog.jpg")
	writeJPEG(t, path)

	w, err := NewExiftoolWriter(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.WriteTags(t.Context(), path, "dog", "dog"))
	assert.NoFileExists(t, path+BackupSuffix)
}

func TestExiftoolWriterUnsupportedFile(t *testing.T) {
	requireExiftool(t)

	path := filepath.Join(t.TempDir(), "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	w, err := NewExiftoolWriter(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	err = w.WriteTags(t.Context(), path, "x", "y")
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, path, merr.Path)
}

func TestExiftoolWriterClosed(t *testing.T) {
	requireExiftool(t)

	w, err := NewExiftoolWriter(Options{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err = w.WriteTags(t.Context(), "/tmp/x.jpg", "x", "y")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewExiftoolWriterMissingBinary(t *testing.T) {
	_, err := NewExiftoolWriter(Options{BinaryPath: filepath.Join(t.TempDir(), "no-exiftool")})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCommandExecution))
}

func TestWriteTagsCancelled(t *testing.T) {
	w := &ExiftoolWriter{}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := w.WriteTags(ctx, "/photos/cat.jpg", "d", "k")
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnavailable(t *testing.T) {
	var w Writer = Unavailable{}
	err := w.WriteTags(t.Context(), "/photos/cat.jpg", "d", "k")

	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "/photos/cat.jpg", merr.Path)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, w.Close())

	cause := errors.NewStd("exec: exiftool not found")
	err = Unavailable{Err: cause}.WriteTags(t.Context(), "/p/a.jpg", "", "")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "/p/a.jpg")
}
