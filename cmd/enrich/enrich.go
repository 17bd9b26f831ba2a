// Package enrich implements the enrich command, one enrichment pass over a
// source directory.
package enrich

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aiphotofinder/photofinder/internal/archive"
	"github.com/aiphotofinder/photofinder/internal/conf"
	"github.com/aiphotofinder/photofinder/internal/datastore"
	"github.com/aiphotofinder/photofinder/internal/errors"
	"github.com/aiphotofinder/photofinder/internal/inference"
	"github.com/aiphotofinder/photofinder/internal/logging"
	"github.com/aiphotofinder/photofinder/internal/metadata"
	"github.com/aiphotofinder/photofinder/internal/observability"
	"github.com/aiphotofinder/photofinder/internal/pipeline"
)

// flags that have no settings key of their own
type options struct {
	noArchive  bool
	noMetadata bool
}

// Command creates a new cobra.Command for the enrich pass.
func Command(ctx *conf.Context) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "enrich [directory]",
		Short: "Tag every image of a directory and archive the processed files",
		Long: "Send every image of the directory to the vision model, store the keywords " +
			"(and optionally a description) in the record store, write them into the file " +
			"metadata and move the processed files to <directory>-processed.\n" +
			"The directory defaults to input.path from the config file.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := ctx.Settings
			if opts.noArchive {
				settings.Archive.Enabled = false
			}
			if opts.noMetadata {
				settings.Metadata.Enabled = false
			}

			dir := settings.Input.Path
			if len(args) > 0 {
				dir = args[0]
			}
			if dir == "" {
				return errors.Newf("no source directory given and input.path is not set").
					Component("cli").
					Category(errors.CategoryValidation).
					Build()
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err := Run(runCtx, settings, dir, cmd.OutOrStdout())
			return err
		},
	}

	if err := setupFlags(cmd, &opts); err != nil {
		panic(err)
	}

	return cmd
}

// setupFlags defines flags specific to the enrich command.
func setupFlags(cmd *cobra.Command, opts *options) error {
	cmd.Flags().String("model", "", "Model name sent to the inference endpoint")
	cmd.Flags().String("endpoint", "", "URL of the generate endpoint")
	cmd.Flags().Bool("description", false, "Also run the description phase")
	cmd.Flags().String("report", "", "Write a YAML report of the pass to this file")
	cmd.Flags().BoolVar(&opts.noArchive, "no-archive", false, "Leave processed files in the source directory")
	cmd.Flags().BoolVar(&opts.noMetadata, "no-metadata", false, "Do not write tags into the image files")

	// Bind flags to configuration
	for key, flag := range map[string]string{
		"inference.model":            "model",
		"inference.endpoint":         "endpoint",
		"phases.description.enabled": "description",
		"output.report.path":         "report",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// Run performs one pass over dir with the components configured in settings
// and prints the summary to out.
func Run(ctx context.Context, settings *conf.Settings, dir string, out io.Writer) (*pipeline.Summary, error) {
	log := logging.ForService("enrich")

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.New(err).
			Component("cli").
			Category(errors.CategoryValidation).
			Context("dir", dir).
			Build()
	}

	log.Info("starting pass", "dir", absDir, "model", settings.Inference.Model, "phases", settings.EnabledPhases())

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("failed to close record store", "error", err)
		}
	}()

	writer := newWriter(settings)
	defer writer.Close()

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	orchestrator, err := pipeline.New(pipeline.NewConfig(settings, absDir), pipeline.Deps{
		Generator: inference.NewClient(inference.Config{
			Endpoint:   settings.Inference.Endpoint,
			Model:      settings.Inference.Model,
			Timeout:    settings.Inference.Timeout,
			MaxRetries: settings.Inference.MaxRetries,
			RetryDelay: settings.Inference.RetryDelay,
			RateLimit:  settings.Inference.RateLimit,
		}),
		Store:  store,
		Writer: writer,
		Mover: archive.NewMover(archive.Config{
			SourceDir:    absDir,
			Suffix:       settings.Archive.Suffix,
			Extensions:   settings.Archive.Extensions,
			BackupSuffix: settings.Archive.BackupSuffix,
		}),
		Metrics: m.Pipeline,
		Logger:  logging.ForService("pipeline"),
	})
	if err != nil {
		return nil, err
	}

	summary, runErr := orchestrator.Run(ctx)
	if summary != nil {
		printSummary(out, summary)
	}

	if path := settings.Metrics.TextFile; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			log.Error("failed to write metrics", "path", path, "error", err)
		}
	}

	return summary, runErr
}

// newWriter starts exiftool when metadata writing is enabled. A missing
// exiftool turns every write into a per-file failure.
func newWriter(settings *conf.Settings) metadata.Writer {
	if !settings.Metadata.Enabled {
		return metadata.Unavailable{}
	}

	w, err := metadata.NewExiftoolWriter(metadata.Options{
		BinaryPath:     settings.Metadata.ExiftoolPath,
		BackupOriginal: settings.Metadata.BackupOriginal,
	})
	if err != nil {
		logging.ForService("enrich").Warn("exiftool unavailable, metadata will not be written", "error", err)
		return metadata.Unavailable{Err: err}
	}
	return w
}

func printSummary(out io.Writer, s *pipeline.Summary) {
	fmt.Fprintf(out, "%d files found, %d enriched, %d described, %d tagged, %d moved, %d backups restored\n",
		s.Total, s.Enriched, s.Described, s.MetadataWritten, len(s.Moves), len(s.Restored))

	if len(s.Failures) > 0 {
		fmt.Fprintf(out, "%d failures:\n", len(s.Failures))
		for _, f := range s.Failures {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}
	if s.Aborted != "" {
		fmt.Fprintf(out, "pass aborted: %s\n", s.Aborted)
	}
}
