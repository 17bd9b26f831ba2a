// Package records implements the commands that read the record store.
package records

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aiphotofinder/photofinder/internal/conf"
	"github.com/aiphotofinder/photofinder/internal/datastore"
	"github.com/aiphotofinder/photofinder/internal/errors"
)

const (
	FormatTable = "table"
	FormatYAML  = "yaml"
)

// column width of keywords and descriptions in table output
const maxCellWidth = 60

// Command creates the records command and its list and get subcommands.
func Command(ctx *conf.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect the record store",
	}
	cmd.AddCommand(listCommand(ctx), getCommand(ctx))
	return cmd
}

func listCommand(ctx *conf.Context) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all records ordered by filename",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx.Settings, func(store datastore.Interface) error {
				return List(cmd.Context(), store, format, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", FormatTable, "Output format: table, yaml")

	return cmd
}

func getCommand(ctx *conf.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "get <filename>",
		Short: "Show the record of one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx.Settings, func(store datastore.Interface) error {
				return Get(cmd.Context(), store, args[0], cmd.OutOrStdout())
			})
		},
	}
}

// withStore opens the configured store for the duration of fn
func withStore(settings *conf.Settings, fn func(datastore.Interface) error) error {
	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// recordView is the YAML shape of a record
type recordView struct {
	Filename     string    `yaml:"filename"`
	Keywords     string    `yaml:"keywords"`
	Description  *string   `yaml:"description,omitempty"`
	ContentHash  string    `yaml:"content_hash,omitempty"`
	Model        string    `yaml:"model,omitempty"`
	ArchivedPath *string   `yaml:"archived_path,omitempty"`
	CreatedAt    time.Time `yaml:"created_at"`
	UpdatedAt    time.Time `yaml:"updated_at"`
}

func newRecordView(r datastore.Record) recordView {
	return recordView{
		Filename:     r.Filename,
		Keywords:     r.Keywords,
		Description:  r.Description,
		ContentHash:  r.ContentHash,
		Model:        r.Model,
		ArchivedPath: r.ArchivedPath,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// List writes every record to w in format.
func List(ctx context.Context, store datastore.Interface, format string, w io.Writer) error {
	if format != FormatTable && format != FormatYAML {
		return errors.Newf("unsupported format %q, use %s or %s", format, FormatTable, FormatYAML).
			Component("cli").
			Category(errors.CategoryValidation).
			Build()
	}

	recs, err := store.List(ctx)
	if err != nil {
		return err
	}

	if format == FormatYAML {
		views := make([]recordView, 0, len(recs))
		for _, r := range recs {
			views = append(views, newRecordView(r))
		}
		return writeYAML(w, views)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILENAME\tKEYWORDS\tDESCRIPTION\tARCHIVED\tUPDATED")
	for _, r := range recs {
		archived := "-"
		if r.ArchivedPath != nil {
			archived = *r.ArchivedPath
		}
		description := "-"
		if r.Description != nil {
			description = clip(*r.Description)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Filename, clip(r.Keywords), description, archived, r.UpdatedAt.Format(time.DateTime))
	}
	return tw.Flush()
}

// Get writes the record of filename to w as YAML. A relative filename that
// has no record is retried as an absolute path, the form the enrich command
// stores.
func Get(ctx context.Context, store datastore.Interface, filename string, w io.Writer) error {
	rec, err := store.Get(ctx, filename)
	if errors.Is(err, datastore.ErrRecordNotFound) && !filepath.IsAbs(filename) {
		if abs, absErr := filepath.Abs(filename); absErr == nil {
			rec, err = store.Get(ctx, abs)
		}
	}
	if err != nil {
		return err
	}
	return writeYAML(w, newRecordView(rec))
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("error encoding records: %w", err)
	}
	return enc.Close()
}

// clip shortens s to one table cell
func clip(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > maxCellWidth {
		return string(r[:maxCellWidth-3]) + "..."
	}
	return s
}
