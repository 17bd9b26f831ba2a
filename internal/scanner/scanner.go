// Package scanner enumerates the candidate image files of a source directory.
package scanner

import (
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aiphotofinder/photofinder/internal/errors"
	"github.com/aiphotofinder/photofinder/internal/logging"
)

// DefaultExtensions is the allow-list used when the caller passes none.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"}

// ErrDirectoryNotFound is matched by errors.Is when the source directory is
// missing, unreadable or not a directory.
var ErrDirectoryNotFound = errors.NewStd("source directory not found")

var logger *slog.Logger

func init() {
	logger = logging.ForService("scanner")
}

// MediaFile is a candidate image in the source directory.
type MediaFile struct {
	Path string // absolute path, the identity of the file for the whole pass
	Name string
	Size int64
}

// Scan lists the regular files directly inside dir whose names end with one
// of extensions. Matching is case-sensitive and subdirectories are not entered.
func Scan(dir string, extensions []string) ([]MediaFile, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, directoryError(dir, err)
	}

	info, err := os.Stat(absDir)
	if err != nil {
		return nil, directoryError(absDir, err)
	}
	if !info.IsDir() {
		return nil, directoryError(absDir, fmt.Errorf("%s is not a directory", absDir))
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, directoryError(absDir, err)
	}

	files := make([]MediaFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !HasExtension(name, extensions) {
			continue
		}

		var size int64
		if fi, err := entry.Info(); err == nil {
			size = fi.Size()
		} else {
			logger.Debug("could not stat candidate file", "file", name, "error", err)
		}

		files = append(files, MediaFile{
			Path: filepath.Join(absDir, name),
			Name: name,
			Size: size,
		})
	}

	logger.Debug("directory scanned", "dir", absDir, "entries", len(entries), "candidates", len(files))
	return files, nil
}

// All returns the result of Scan as a single use sequence. The error is
// reported through errp after the sequence has been consumed or stopped.
func All(dir string, extensions []string, errp *error) iter.Seq[MediaFile] {
	return func(yield func(MediaFile) bool) {
		files, err := Scan(dir, extensions)
		if errp != nil {
			*errp = err
		}
		for _, f := range files {
			if !yield(f) {
				return
			}
		}
	}
}

// HasExtension reports whether name ends with one of extensions.
func HasExtension(name string, extensions []string) bool {
	return slices.ContainsFunc(extensions, func(ext string) bool {
		return strings.HasSuffix(name, ext)
	})
}

// TotalSize sums the sizes of files.
func TotalSize(files []MediaFile) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

func directoryError(dir string, err error) error {
	return errors.New(errors.Join(ErrDirectoryNotFound, err)).
		Component("scanner").
		Category(errors.CategoryNotFound).
		Context("dir", dir).
		Build()
}
