// env.go - Environment variable configuration and validation for photofinder
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "PHOTOFINDER_DEBUG", validateEnvBool},
		{"input.path", "PHOTOFINDER_INPUT_PATH", validateEnvPath},

		{"inference.endpoint", "PHOTOFINDER_INFERENCE_ENDPOINT", validateEnvURL},
		{"inference.model", "PHOTOFINDER_INFERENCE_MODEL", nil},
		{"inference.maxretries", "PHOTOFINDER_INFERENCE_MAXRETRIES", validateEnvNonNegativeInt},
		{"inference.ratelimit", "PHOTOFINDER_INFERENCE_RATELIMIT", validateEnvNonNegativeFloat},

		{"phases.description.enabled", "PHOTOFINDER_DESCRIPTION", validateEnvBool},
		{"metadata.exiftoolpath", "PHOTOFINDER_EXIFTOOL", validateEnvPath},

		{"output.sqlite.path", "PHOTOFINDER_SQLITE_PATH", validateEnvPath},
		{"output.mysql.password", "PHOTOFINDER_MYSQL_PASSWORD", nil},

		{"sentry.dsn", "PHOTOFINDER_SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

// validateEnvPath rejects paths containing NUL bytes or parent traversal
func validateEnvPath(value string) error {
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("path contains NUL byte")
	}
	if strings.Contains(value, "..") {
		return fmt.Errorf("path must not contain '..'")
	}
	return nil
}

// validateEnvURL requires an absolute http(s) URL
func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateEnvNonNegativeFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if f < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}
