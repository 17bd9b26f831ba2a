// Package archive relocates processed images after a pass.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aiphotofinder/photofinder/internal/conf"
	"github.com/aiphotofinder/photofinder/internal/errors"
	"github.com/aiphotofinder/photofinder/internal/logging"
	"github.com/aiphotofinder/photofinder/internal/scanner"
)

const (
	DefaultSuffix       = "-processed"
	DefaultBackupSuffix = "_original"
)

// DefaultExtensions lists the files moved when none are configured.
var DefaultExtensions = []string{".jpg"}

var logger *slog.Logger

func init() {
	logger = logging.ForService("archive")
}

// Move is one file relocated into the processed directory.
type Move struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Restore is one backup renamed back to the original file name.
type Restore struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Failure is a file the mover could not move or restore.
type Failure struct {
	Path string
	Err  error
}

// Result summarizes an Archive call. Failures holds the per-file problems,
// the mover continues past them.
type Result struct {
	ProcessedDir string
	Moved        []Move
	Restored     []Restore
	Failures     []Failure
}

// ErrRestoreConflict is matched by errors.Is when a backup is left in place
// because a file that was not archived still holds its name.
var ErrRestoreConflict = errors.NewStd("backup target exists and was not archived")

// Config configures a Mover.
type Config struct {
	SourceDir    string
	Suffix       string   // appended to the base name of SourceDir
	Extensions   []string // names ending with one of these are moved
	BackupSuffix string   // names ending with this are restored in SourceDir
}

// Mover moves processed images into a sibling directory and puts metadata
// backups back in place of the moved originals.
type Mover struct {
	cfg Config
}

// NewMover returns a Mover for cfg, filling defaults for empty fields.
func NewMover(cfg Config) *Mover {
	if cfg.Suffix == "" {
		cfg.Suffix = DefaultSuffix
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.BackupSuffix == "" {
		cfg.BackupSuffix = DefaultBackupSuffix
	}
	return &Mover{cfg: cfg}
}

// ProcessedDir returns the directory processed files are moved to.
func (m *Mover) ProcessedDir() string {
	src := filepath.Clean(m.cfg.SourceDir)
	return filepath.Join(filepath.Dir(src), filepath.Base(src)+m.cfg.Suffix)
}

// Archive moves every matching file of the source directory accepted by keep
// into the processed directory, then renames the remaining backups to the
// names without the backup suffix. A nil keep accepts every file. A backup is
// only restored when its file was moved by this call or no longer exists.
// Only failing to create the processed directory or to list the source
// directory is returned as an error.
func (m *Mover) Archive(ctx context.Context, keep func(path string) bool) (Result, error) {
	src := filepath.Clean(m.cfg.SourceDir)
	result := Result{ProcessedDir: m.ProcessedDir()}

	if err := os.MkdirAll(result.ProcessedDir, 0o755); err != nil {
		return result, archiveError(err, "create_processed_dir", result.ProcessedDir)
	}

	names, err := listFiles(src)
	if err != nil {
		return result, archiveError(err, "list_source_dir", src)
	}

	moved := make(map[string]bool)

	// moves first so a restored backup never gets moved in the same call
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !scanner.HasExtension(name, m.cfg.Extensions) {
			continue
		}
		from := filepath.Join(src, name)
		if keep != nil && !keep(from) {
			logger.Debug("leaving unprocessed file in place", "path", from)
			continue
		}
		to := filepath.Join(result.ProcessedDir, name)
		if err := conf.MoveFile(from, to); err != nil {
			logger.Error("failed to move processed file", "from", from, "to", to, "error", err)
			result.addFailure(from, archiveError(err, "move", from))
			continue
		}
		logger.Debug("moved processed file", "from", from, "to", to)
		result.Moved = append(result.Moved, Move{From: from, To: to})
		moved[from] = true
	}

	names, err = listFiles(src)
	if err != nil {
		return result, archiveError(err, "list_source_dir", src)
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !strings.HasSuffix(name, m.cfg.BackupSuffix) || name == m.cfg.BackupSuffix {
			continue
		}
		from := filepath.Join(src, name)
		to := filepath.Join(src, strings.TrimSuffix(name, m.cfg.BackupSuffix))
		if !moved[to] {
			if _, err := os.Lstat(to); err == nil {
				logger.Warn("backup left in place, its file was not archived", "backup", from, "file", to)
				result.addFailure(from, archiveError(ErrRestoreConflict, "restore", from))
				continue
			}
		}
		if err := os.Rename(from, to); err != nil {
			logger.Error("failed to restore backup", "from", from, "to", to, "error", err)
			result.addFailure(from, archiveError(err, "restore", from))
			continue
		}
		logger.Debug("restored backup", "from", from, "to", to)
		result.Restored = append(result.Restored, Restore{From: from, To: to})
	}

	logger.Info("archive complete",
		"processed_dir", result.ProcessedDir,
		"moved", len(result.Moved),
		"restored", len(result.Restored),
		"failures", len(result.Failures))
	return result, nil
}

func (r *Result) addFailure(path string, err error) {
	r.Failures = append(r.Failures, Failure{Path: path, Err: err})
}

// listFiles returns the names of the regular files in dir
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func archiveError(err error, operation, path string) error {
	return errors.New(fmt.Errorf("%s %s: %w", operation, path, err)).
		Component("archive").
		Category(errors.CategoryArchive).
		Context("operation", operation).
		Context("path", path).
		Build()
}
