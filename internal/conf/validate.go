// conf/validate.go
package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validateInferenceSettings(&settings.Inference, &ve)
	validatePhasesSettings(&settings.Phases, &ve)
	validateScannerSettings(&settings.Scanner, &ve)
	validateArchiveSettings(&settings.Archive, &ve)
	validateOutputSettings(&settings.Output, &ve)

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateInferenceSettings(s *InferenceSettings, ve *ValidationError) {
	u, err := url.Parse(s.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		ve.Errors = append(ve.Errors, fmt.Sprintf("inference.endpoint %q must be an absolute http(s) URL", s.Endpoint))
	}
	if strings.TrimSpace(s.Model) == "" {
		ve.Errors = append(ve.Errors, "inference.model must not be empty")
	}
	if s.Timeout <= 0 {
		ve.Errors = append(ve.Errors, "inference.timeout must be positive")
	}
	if s.MaxRetries < 0 {
		ve.Errors = append(ve.Errors, "inference.maxretries must not be negative")
	}
	if s.RetryDelay < 0 {
		ve.Errors = append(ve.Errors, "inference.retrydelay must not be negative")
	}
	if s.RateLimit < 0 {
		ve.Errors = append(ve.Errors, "inference.ratelimit must not be negative")
	}
}

func validatePhasesSettings(s *PhasesSettings, ve *ValidationError) {
	// every record is keyed on a keywords result, so the phase cannot be switched off
	if !s.Keywords.Enabled {
		ve.Errors = append(ve.Errors, "phases.keywords must be enabled")
	}
	if strings.TrimSpace(s.Keywords.Prompt) == "" {
		ve.Errors = append(ve.Errors, "phases.keywords.prompt must not be empty")
	}
	if s.Description.Enabled && strings.TrimSpace(s.Description.Prompt) == "" {
		ve.Errors = append(ve.Errors, "phases.description.prompt must not be empty when the phase is enabled")
	}
}

func validateScannerSettings(s *ScannerSettings, ve *ValidationError) {
	if len(s.Extensions) == 0 {
		ve.Errors = append(ve.Errors, "scanner.extensions must list at least one extension")
	}
	for _, ext := range s.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ve.Errors = append(ve.Errors, fmt.Sprintf("scanner.extensions entry %q must start with a dot", ext))
		}
	}
}

func validateArchiveSettings(s *ArchiveSettings, ve *ValidationError) {
	if !s.Enabled {
		return
	}
	if s.Suffix == "" {
		ve.Errors = append(ve.Errors, "archive.suffix must not be empty")
	}
	if strings.ContainsAny(s.Suffix, `/\`) {
		ve.Errors = append(ve.Errors, "archive.suffix must not contain path separators")
	}
	if s.BackupSuffix == "" {
		ve.Errors = append(ve.Errors, "archive.backupsuffix must not be empty")
	}
	if len(s.Extensions) == 0 {
		ve.Errors = append(ve.Errors, "archive.extensions must list at least one extension")
	}
}

func validateOutputSettings(s *OutputSettings, ve *ValidationError) {
	switch {
	case s.SQLite.Enabled && s.MySQL.Enabled:
		ve.Errors = append(ve.Errors, "only one of output.sqlite and output.mysql can be enabled")
	case !s.SQLite.Enabled && !s.MySQL.Enabled:
		ve.Errors = append(ve.Errors, "one of output.sqlite or output.mysql must be enabled")
	case s.SQLite.Enabled && s.SQLite.Path == "":
		ve.Errors = append(ve.Errors, "output.sqlite.path must not be empty")
	case s.MySQL.Enabled && (s.MySQL.Host == "" || s.MySQL.Database == ""):
		ve.Errors = append(ve.Errors, "output.mysql.host and output.mysql.database are required")
	}
}
