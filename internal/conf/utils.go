// conf/utils.go
package conf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

const appName = "photofinder"

// GetDefaultConfigPaths returns a list of default configuration paths for the current operating system.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	var configPaths []string

	switch runtime.GOOS {
	case "windows":
		exePath, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("error fetching executable path: %w", err)
		}
		configPaths = []string{
			filepath.Dir(exePath),
			filepath.Join(homeDir, "AppData", "Roaming", appName),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", appName),
			filepath.Join("/etc", appName),
		}
	}

	return configPaths, nil
}

// GetBasePath returns the base path of a relative output path, creating
// it below the directory of the config file in use when possible.
func GetBasePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		return path
	}

	return filepath.Join(filepath.Dir(configFile), path)
}

// MoveFile moves a file from src to dst. It renames when possible and
// falls back to copy and remove when the paths are on different devices.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("error copying file: %w", err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("error removing source file: %w", err)
	}

	return nil
}

// copyFile copies src to dst keeping the source permissions
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	info, err := sourceFile.Stat()
	if err != nil {
		return err
	}

	destFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		return err
	}

	return destFile.Close()
}
