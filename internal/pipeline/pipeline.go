// Package pipeline runs an enrichment pass over a source directory: every
// candidate image is sent to the vision model, the answers are stored and
// written into the file, and processed files are archived at the end.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/aiphotofinder/photofinder/internal/archive"
	"github.com/aiphotofinder/photofinder/internal/datastore"
	"github.com/aiphotofinder/photofinder/internal/errors"
	"github.com/aiphotofinder/photofinder/internal/inference"
	"github.com/aiphotofinder/photofinder/internal/logging"
	"github.com/aiphotofinder/photofinder/internal/metadata"
	"github.com/aiphotofinder/photofinder/internal/observability/metrics"
	"github.com/aiphotofinder/photofinder/internal/scanner"
)

// Archiver moves processed files out of the source directory. Only files
// accepted by keep are moved.
type Archiver interface {
	Archive(ctx context.Context, keep func(path string) bool) (archive.Result, error)
}

// Deps are the collaborators of an Orchestrator. Writer, Mover and Metrics
// are optional.
type Deps struct {
	Generator inference.Generator
	Store     datastore.Interface
	Writer    metadata.Writer
	Mover     Archiver
	Metrics   *metrics.PipelineMetrics
	Logger    *slog.Logger

	// DiskFree returns the free bytes of the volume holding path
	DiskFree func(path string) (uint64, error)
}

// Result is the enrichment of one image.
type Result struct {
	Keywords       string
	HasKeywords    bool
	Description    string
	HasDescription bool
}

// metadataDescription is the text written to the description tags. It falls
// back to the keywords when no description is available.
func (r Result) metadataDescription() string {
	if r.HasDescription {
		return r.Description
	}
	return r.Keywords
}

// Orchestrator runs enrichment passes.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

// New returns an Orchestrator for cfg.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Generator == nil {
		return nil, errors.Newf("pipeline: generator is required").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if deps.Store == nil {
		return nil, errors.Newf("pipeline: record store is required").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if !cfg.hasPhase(PhaseKeywords) {
		return nil, errors.Newf("pipeline: the keywords phase must be enabled").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if deps.DiskFree == nil {
		deps.DiskFree = diskFree
	}

	l := deps.Logger
	if l == nil {
		l = logging.ForService("pipeline")
	}

	return &Orchestrator{cfg: cfg, deps: deps, logger: l}, nil
}

// Run performs one pass. Per-file failures are collected in the summary;
// a returned error means the pass was aborted (missing source directory,
// store failure, insufficient disk space or cancellation). The summary is
// returned whenever the scan succeeded.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		SourceDir: o.cfg.SourceDir,
	}
	log := o.logger.With("run_id", summary.RunID)

	files, err := scanner.Scan(o.cfg.SourceDir, o.cfg.Extensions)
	if err != nil {
		log.Error("failed to scan source directory", "dir", o.cfg.SourceDir, "error", err)
		return nil, err
	}
	summary.Total = len(files)
	log.Info(fmt.Sprintf("%d files found", len(files)), "dir", o.cfg.SourceDir)

	if o.cfg.DiskCheck && o.cfg.WriteMetadata && o.cfg.BackupOriginal && len(files) > 0 {
		if err := o.checkDiskSpace(files); err != nil {
			log.Error("disk space check failed", "error", err)
			return o.finish(log, summary, err)
		}
	}

	// no janitor goroutine, entries live for the pass only
	seen := cache.New(cache.NoExpiration, 0)
	enriched := make(map[string]bool, len(files))

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			log.Warn("pass cancelled", "processed", i, "total", len(files))
			return o.finish(log, summary, cancelledError(err))
		}

		ok, err := o.processFile(ctx, log, seen, summary, file)
		if err != nil {
			return o.finish(log, summary, err)
		}
		if ok {
			enriched[file.Path] = true
		}
		log.Info(fmt.Sprintf("processed %d/%d", i+1, len(files)), "file", file.Name)
	}

	if o.cfg.Archive && o.deps.Mover != nil {
		if err := o.archive(ctx, log, summary, enriched); err != nil {
			return o.finish(log, summary, err)
		}
	}

	return o.finish(log, summary, nil)
}

// processFile enriches one file. It returns true when the keywords were
// stored and an error only when the pass must abort.
func (o *Orchestrator) processFile(ctx context.Context, log *slog.Logger, seen *cache.Cache, summary *Summary, file scanner.MediaFile) (bool, error) {
	log = log.With("file", file.Path)

	data, err := os.ReadFile(file.Path)
	if err != nil {
		log.Error("failed to read file", "error", err)
		summary.addFailure(file.Path, StageRead, "", errors.FileError(err, file.Path, file.Size))
		o.recordFile(metrics.ResultFailed)
		return false, nil
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	var result Result
	if cached, found := seen.Get(hash); found {
		result = cached.(Result)
		summary.CacheHits++
		if o.deps.Metrics != nil {
			o.deps.Metrics.IncrementCacheHits()
		}
		log.Debug("reusing result of identical content", "content_hash", hash)
	}

	if !result.HasKeywords {
		keywords, err := o.generate(ctx, log, PhaseKeywords, data)
		if err != nil {
			if ctx.Err() != nil {
				return false, cancelledError(ctx.Err())
			}
			summary.addFailure(file.Path, StageInference, PhaseKeywords, err)
			o.recordFile(metrics.ResultSkipped)
			return false, nil
		}
		result.Keywords = keywords
		result.HasKeywords = true
	}

	if err := o.upsert(ctx, file.Path, datastore.Fields{
		Keywords:    datastore.Ptr(result.Keywords),
		ContentHash: datastore.Ptr(hash),
		Model:       datastore.Ptr(o.cfg.Model),
	}); err != nil {
		log.Error("failed to store keywords, aborting pass", "error", err)
		return false, err
	}
	summary.Enriched++
	log.Info("keywords saved", "keywords", result.Keywords)

	if o.cfg.hasPhase(PhaseDescription) {
		if !result.HasDescription {
			description, err := o.generate(ctx, log, PhaseDescription, data)
			switch {
			case err != nil && ctx.Err() != nil:
				return true, cancelledError(ctx.Err())
			case err != nil:
				summary.addFailure(file.Path, StageInference, PhaseDescription, err)
			default:
				result.Description = description
				result.HasDescription = true
			}
		}
		if result.HasDescription {
			if err := o.upsert(ctx, file.Path, datastore.Fields{Description: datastore.Ptr(result.Description)}); err != nil {
				log.Error("failed to store description, aborting pass", "error", err)
				return true, err
			}
			summary.Described++
			log.Info("description saved")
		}
	}

	seen.Set(hash, result, cache.NoExpiration)

	if o.cfg.WriteMetadata && o.deps.Writer != nil {
		if err := o.deps.Writer.WriteTags(ctx, file.Path, result.metadataDescription(), result.Keywords); err != nil {
			log.Warn("failed to write metadata", "error", err)
			summary.addFailure(file.Path, StageMetadata, "", err)
			if o.deps.Metrics != nil {
				o.deps.Metrics.IncrementMetadataErrors()
			}
		} else {
			summary.MetadataWritten++
		}
	}

	o.recordFile(metrics.ResultEnriched)
	return true, nil
}

// generate runs one phase for data and records its duration
func (o *Orchestrator) generate(ctx context.Context, log *slog.Logger, phase Phase, data []byte) (string, error) {
	start := time.Now()
	answer, err := o.deps.Generator.Generate(ctx, data, o.cfg.Prompts[phase])
	elapsed := time.Since(start)

	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveInference(string(phase), elapsed.Seconds(), err != nil)
	}
	if err != nil {
		log.Warn("inference failed", "phase", phase, "duration", elapsed, "error", err)
		return "", err
	}
	log.Debug("inference complete", "phase", phase, "duration", elapsed)
	return answer, nil
}

// upsert writes fields and wraps store failures as pass aborting errors
func (o *Orchestrator) upsert(ctx context.Context, path string, fields datastore.Fields) error {
	if err := o.deps.Store.Upsert(ctx, path, fields); err != nil {
		return errors.New(fmt.Errorf("store record for %s: %w", path, err)).
			Component("pipeline").
			Category(errors.CategoryDatabase).
			Context("file", path).
			Build()
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.IncrementStoreUpserts()
	}
	return nil
}

// archive moves the enriched files, leaving skipped files in the source
// directory for the next pass, and records where they went
func (o *Orchestrator) archive(ctx context.Context, log *slog.Logger, summary *Summary, enriched map[string]bool) error {
	res, err := o.deps.Mover.Archive(ctx, func(path string) bool { return enriched[path] })
	summary.Moves = append(summary.Moves, res.Moved...)
	summary.Restored = append(summary.Restored, res.Restored...)
	for _, f := range res.Failures {
		summary.addFailure(f.Path, StageArchive, "", f.Err)
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.AddArchived(len(res.Moved), len(res.Restored))
	}
	if err != nil {
		if ctx.Err() != nil {
			return cancelledError(ctx.Err())
		}
		log.Error("archive failed", "error", err)
		summary.addFailure(o.cfg.SourceDir, StageArchive, "", err)
		return nil
	}

	for _, move := range res.Moved {
		if err := o.deps.Store.MarkArchived(ctx, move.From, move.To); err != nil {
			if errors.Is(err, datastore.ErrRecordNotFound) {
				continue
			}
			log.Error("failed to record archived path, aborting pass", "file", move.From, "error", err)
			return errors.New(fmt.Errorf("record archived path for %s: %w", move.From, err)).
				Component("pipeline").
				Category(errors.CategoryDatabase).
				Context("file", move.From).
				Build()
		}
	}
	return nil
}

func (o *Orchestrator) recordFile(result string) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordFile(result)
	}
}

// finish completes the summary, logs it and writes the report
func (o *Orchestrator) finish(log *slog.Logger, summary *Summary, runErr error) (*Summary, error) {
	summary.FinishedAt = time.Now()
	if runErr != nil {
		summary.Aborted = runErr.Error()
	}

	summary.log(log)

	if o.deps.Metrics != nil {
		o.deps.Metrics.ObservePassDuration(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	}

	if o.cfg.ReportPath != "" {
		if err := summary.WriteReport(o.cfg.ReportPath); err != nil {
			log.Error("failed to write pass report", "path", o.cfg.ReportPath, "error", err)
			if runErr == nil {
				runErr = err
			}
		}
	}

	return summary, runErr
}

func cancelledError(err error) error {
	return errors.New(fmt.Errorf("pass cancelled: %w", err)).
		Component("pipeline").
		Category(errors.CategoryCancellation).
		Build()
}
