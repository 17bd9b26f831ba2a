// config.go: configuration for photofinder. It defines the settings struct and loads it with viper.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/aiphotofinder/photofinder/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig defines the configuration for the rotating log file
type LogConfig struct {
	Enabled    bool   // true to mirror console logs into a file
	Path       string // path to log file
	MaxSize    int    // max size in megabytes before rotation
	MaxBackups int    // number of rotated files to keep
	MaxAge     int    // days to keep rotated files
}

// InputConfig holds the source directory settings
type InputConfig struct {
	Path string // source directory scanned by the enrich command
}

// ScannerSettings controls which files of the source directory are candidates
type ScannerSettings struct {
	Extensions []string // case-sensitive suffix allow-list
}

// InferenceSettings contains settings for the vision model endpoint.
type InferenceSettings struct {
	Endpoint   string        // full URL of the generate endpoint
	Model      string        // model name sent with every request
	Timeout    time.Duration // per request timeout
	MaxRetries int           // retries after the first attempt, 0 disables retrying
	RetryDelay time.Duration // initial backoff interval
	RateLimit  float64       // requests per second, 0 for unlimited
}

// PhaseSettings configures a single enrichment phase
type PhaseSettings struct {
	Enabled bool
	Prompt  string
}

// PhasesSettings lists the enrichment phases run for every file
type PhasesSettings struct {
	Keywords    PhaseSettings
	Description PhaseSettings
}

// MetadataSettings contains settings for writing embedded tags.
type MetadataSettings struct {
	Enabled        bool   // write results into the image files
	ExiftoolPath   string // path to the exiftool binary, empty to look it up in PATH
	BackupOriginal bool   // keep exiftool's <name>_original backup
}

// ArchiveSettings controls the post-pass move of processed files.
type ArchiveSettings struct {
	Enabled      bool
	Suffix       string   // appended to the source directory name
	Extensions   []string // files moved into the processed directory
	BackupSuffix string   // suffix of backups restored to their original name
}

// SQLiteSettings contains settings for the SQLite record store
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains settings for the MySQL record store
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// ReportSettings contains settings for the per pass report file
type ReportSettings struct {
	Path string // empty disables the report
}

// OutputSettings groups all outputs of a pass
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
	Report ReportSettings
}

// MetricsSettings contains settings for prometheus metric export
type MetricsSettings struct {
	TextFile string // node_exporter textfile collector target, empty disables export
}

// PipelineSettings contains orchestration settings
type PipelineSettings struct {
	DiskCheck bool // abort the pass when the source volume cannot hold exiftool backups
}

// SentrySettings contains settings for opt-in error telemetry
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// Settings contains all configuration options for photofinder.
type Settings struct {
	Debug bool // true to enable debug logging

	Main struct {
		Name string    // name of this instance, used in logs and telemetry
		Log  LogConfig // rotating log file
	}

	Input     InputConfig
	Scanner   ScannerSettings
	Inference InferenceSettings
	Phases    PhasesSettings
	Metadata  MetadataSettings
	Archive   ArchiveSettings
	Output    OutputSettings
	Metrics   MetricsSettings
	Pipeline  PipelineSettings
	Sentry    SentrySettings
}

// settingsMutex serializes loads, viper keeps global state
var settingsMutex sync.Mutex

// Load reads the configuration file and environment variables into a Settings struct.
// When configFile is empty the default config locations are searched and a
// default config file is created if none exists.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.New(fmt.Errorf("fatal error reading config file: %w", err)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("config_file", configFile).
				Build()
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config into dir and reads it
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config file: %w", err)
	}
	return data, nil
}

// EnabledPhases returns the names of the enabled phases in execution order.
func (s *Settings) EnabledPhases() []string {
	var phases []string
	if s.Phases.Keywords.Enabled {
		phases = append(phases, "keywords")
	}
	if s.Phases.Description.Enabled {
		phases = append(phases, "description")
	}
	return phases
}
