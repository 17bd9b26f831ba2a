// Package metadata writes enrichment results into the embedded metadata of image files.
package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/barasher/go-exiftool"

	"github.com/aiphotofinder/photofinder/internal/errors"
	"github.com/aiphotofinder/photofinder/internal/logging"
)

// BackupSuffix is appended by exiftool to the untouched copy of a rewritten file.
const BackupSuffix = "_original"

// Tag names written for every image
const (
	TagDescription      = "Description"
	TagImageDescription = "ImageDescription"
	TagKeywords         = "Keywords"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("metadata")
}

// Writer stores a description and keywords in an image file.
type Writer interface {
	WriteTags(ctx context.Context, path, description, keywords string) error
	Close() error
}

// Options configures an ExiftoolWriter.
type Options struct {
	BinaryPath     string // empty to look exiftool up in PATH
	BackupOriginal bool   // keep <name>_original next to the rewritten file
}

// ExiftoolWriter writes tags through a long running exiftool process.
type ExiftoolWriter struct {
	mu   sync.Mutex
	et   *exiftool.Exiftool
	opts Options
}

// NewExiftoolWriter starts exiftool in stay_open mode.
func NewExiftoolWriter(opts Options) (*ExiftoolWriter, error) {
	var etOpts []func(*exiftool.Exiftool) error
	if opts.BinaryPath != "" {
		etOpts = append(etOpts, exiftool.SetExiftoolBinaryPath(opts.BinaryPath))
	}
	if opts.BackupOriginal {
		etOpts = append(etOpts, exiftool.BackupOriginal())
	}

	et, err := exiftool.NewExiftool(etOpts...)
	if err != nil {
		return nil, errors.New(fmt.Errorf("start exiftool: %w", err)).
			Component("metadata").
			Category(errors.CategoryCommandExecution).
			Context("binary", opts.BinaryPath).
			Build()
	}

	logger.Debug("exiftool started", "binary", opts.BinaryPath, "backup_original", opts.BackupOriginal)
	return &ExiftoolWriter{et: et, opts: opts}, nil
}

// WriteTags sets Description and ImageDescription to description and
// Keywords to the comma separated terms of keywords.
func (w *ExiftoolWriter) WriteTags(ctx context.Context, path, description, keywords string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Path: path, Err: err}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.et == nil {
		return &Error{Path: path, Err: ErrClosed}
	}

	fm := exiftool.EmptyFileMetadata()
	fm.File = path
	fm.SetString(TagDescription, description)
	fm.SetString(TagImageDescription, description)
	fm.SetStrings(TagKeywords, SplitKeywords(keywords))

	batch := []exiftool.FileMetadata{fm}
	w.et.WriteMetadata(batch)
	if err := batch[0].Err; err != nil {
		logger.Warn("failed to write metadata", "file", path, "error", err)
		return &Error{Path: path, Err: err}
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		w.dump(path)
	}
	return nil
}

// dump logs the tags exiftool reads back after a write
func (w *ExiftoolWriter) dump(path string) {
	for _, fm := range w.et.ExtractMetadata(path) {
		if fm.Err != nil {
			logger.Debug("could not read back metadata", "file", path, "error", fm.Err)
			continue
		}
		for _, tag := range []string{TagDescription, TagImageDescription, TagKeywords} {
			logger.Debug("metadata written", "file", path, "tag", tag, "value", fm.Fields[tag])
		}
	}
}

// Close stops the exiftool process. It is safe to call more than once.
func (w *ExiftoolWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.et == nil {
		return nil
	}
	err := w.et.Close()
	w.et = nil
	return err
}

// SplitKeywords turns a comma separated model answer into keyword terms.
func SplitKeywords(keywords string) []string {
	parts := strings.Split(keywords, ",")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if term := strings.TrimSpace(p); term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

// Unavailable is a Writer used when exiftool cannot be started. Every call
// fails with the start error so the pass records a metadata failure per file.
type Unavailable struct {
	Err error
}

// WriteTags always fails.
func (u Unavailable) WriteTags(_ context.Context, path, _, _ string) error {
	err := u.Err
	if err == nil {
		err = ErrUnavailable
	}
	return &Error{Path: path, Err: err}
}

// Close does nothing.
func (Unavailable) Close() error { return nil }
