package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aiphotofinder/photofinder/internal/archive"
	"github.com/aiphotofinder/photofinder/internal/conf"
)

// Stage names the step of a pass a failure happened in.
type Stage string

const (
	StageRead      Stage = "read"
	StageInference Stage = "inference"
	StageMetadata  Stage = "metadata"
	StageArchive   Stage = "archive"
)

// Failure is a per-file problem that did not abort the pass.
type Failure struct {
	Path  string
	Stage Stage
	Phase Phase // set for inference failures
	Err   error
}

func (f Failure) String() string {
	if f.Phase != "" {
		return fmt.Sprintf("%s [%s/%s]: %v", f.Path, f.Stage, f.Phase, f.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", f.Path, f.Stage, f.Err)
}

// Summary is the outcome of one pass.
type Summary struct {
	RunID           string
	StartedAt       time.Time
	FinishedAt      time.Time
	SourceDir       string
	Total           int // candidate files found
	Enriched        int // files whose keywords were stored
	Described       int // files whose description was stored
	MetadataWritten int
	CacheHits       int
	Failures        []Failure
	Moves           []archive.Move
	Restored        []archive.Restore
	Aborted         string // reason the pass stopped early, empty when it completed
}

func (s *Summary) addFailure(path string, stage Stage, phase Phase, err error) {
	s.Failures = append(s.Failures, Failure{Path: path, Stage: stage, Phase: phase, Err: err})
}

// FailuresByStage returns the failures recorded for stage.
func (s *Summary) FailuresByStage(stage Stage) []Failure {
	var out []Failure
	for _, f := range s.Failures {
		if f.Stage == stage {
			out = append(out, f)
		}
	}
	return out
}

// log emits the end of pass summary
func (s *Summary) log(log *slog.Logger) {
	attrs := []any{
		"total", s.Total,
		"enriched", s.Enriched,
		"described", s.Described,
		"metadata_written", s.MetadataWritten,
		"cache_hits", s.CacheHits,
		"failures", len(s.Failures),
		"moved", len(s.Moves),
		"restored", len(s.Restored),
		"duration", s.FinishedAt.Sub(s.StartedAt),
	}
	if s.Aborted != "" {
		log.Error("pass aborted", append(attrs, "reason", s.Aborted)...)
	} else {
		log.Info("pass complete", attrs...)
	}

	for _, f := range s.Failures {
		log.Warn("failure", "path", f.Path, "stage", f.Stage, "phase", f.Phase, "error", f.Err)
	}
}

type reportFailure struct {
	Path  string `yaml:"path"`
	Stage string `yaml:"stage"`
	Phase string `yaml:"phase,omitempty"`
	Error string `yaml:"error"`
}

type report struct {
	RunID      string            `yaml:"run_id"`
	StartedAt  time.Time         `yaml:"started_at"`
	FinishedAt time.Time         `yaml:"finished_at"`
	SourceDir  string            `yaml:"source_dir"`
	Aborted    string            `yaml:"aborted,omitempty"`
	Counts     map[string]int    `yaml:"counts"`
	Failures   []reportFailure   `yaml:"failures"`
	Moves      []archive.Move    `yaml:"moves"`
	Restored   []archive.Restore `yaml:"restored"`
}

// WriteReport writes the summary to path as YAML, replacing any existing file.
func (s *Summary) WriteReport(path string) error {
	r := report{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		SourceDir:  s.SourceDir,
		Aborted:    s.Aborted,
		Counts: map[string]int{
			"total":            s.Total,
			"enriched":         s.Enriched,
			"described":        s.Described,
			"metadata_written": s.MetadataWritten,
			"cache_hits":       s.CacheHits,
			"failures":         len(s.Failures),
		},
		Failures: make([]reportFailure, 0, len(s.Failures)),
		Moves:    s.Moves,
		Restored: s.Restored,
	}
	for _, f := range s.Failures {
		r.Failures = append(r.Failures, reportFailure{
			Path:  f.Path,
			Stage: string(f.Stage),
			Phase: string(f.Phase),
			Error: f.Err.Error(),
		})
	}

	data, err := yaml.Marshal(&r)
	if err != nil {
		return fmt.Errorf("error marshaling report: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary report: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing report: %w", err)
	}

	return conf.MoveFile(tmpName, path)
}
