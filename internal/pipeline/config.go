package pipeline

import (
	"github.com/aiphotofinder/photofinder/internal/conf"
)

// Phase is one inference step run for every file.
type Phase string

const (
	PhaseKeywords    Phase = "keywords"
	PhaseDescription Phase = "description"
)

// Config describes one enrichment pass.
type Config struct {
	SourceDir      string
	Extensions     []string         // scanner allow-list
	Phases         []Phase          // enabled phases, keywords first
	Prompts        map[Phase]string // prompt sent for each phase
	Model          string           // recorded with every record
	Archive        bool             // move processed files after the pass
	WriteMetadata  bool             // write results into the files
	BackupOriginal bool             // metadata writes leave a backup next to each file
	DiskCheck      bool             // verify free space for backups before the pass
	ReportPath     string           // YAML report target, empty disables it
}

// NewConfig builds the pass configuration for sourceDir from settings.
func NewConfig(settings *conf.Settings, sourceDir string) Config {
	cfg := Config{
		SourceDir:      sourceDir,
		Extensions:     settings.Scanner.Extensions,
		Prompts:        make(map[Phase]string, 2),
		Model:          settings.Inference.Model,
		Archive:        settings.Archive.Enabled,
		WriteMetadata:  settings.Metadata.Enabled,
		BackupOriginal: settings.Metadata.BackupOriginal,
		DiskCheck:      settings.Pipeline.DiskCheck,
		ReportPath:     settings.Output.Report.Path,
	}

	if settings.Phases.Keywords.Enabled {
		cfg.Phases = append(cfg.Phases, PhaseKeywords)
		cfg.Prompts[PhaseKeywords] = settings.Phases.Keywords.Prompt
	}
	if settings.Phases.Description.Enabled {
		cfg.Phases = append(cfg.Phases, PhaseDescription)
		cfg.Prompts[PhaseDescription] = settings.Phases.Description.Prompt
	}

	return cfg
}

// hasPhase reports whether p is enabled
func (c Config) hasPhase(p Phase) bool {
	for _, phase := range c.Phases {
		if phase == p {
			return true
		}
	}
	return false
}
