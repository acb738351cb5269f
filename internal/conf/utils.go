// conf/utils.go

package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/insolesplug-ops/selimcam/internal/errors"
)

const osWindows = "windows"

// GetDefaultConfigPaths returns the config file search paths in priority
// order: executable directory first, then the user config directory, then
// the system directory on Linux.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "selimcam"),
		}
	default:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, ".config", "selimcam"),
			"/etc/selimcam",
		}
	}

	return configPaths, nil
}

// FindConfigFile returns the path of the config file currently in use.
func FindConfigFile() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	return "", errors.Newf("no config file loaded").
		Category(errors.CategoryConfiguration).
		Build()
}

// RunningInContainer reports whether the process appears to run inside a
// container, used by diagnostics collection.
func RunningInContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
