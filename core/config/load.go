package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory.
func Load(path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}
	path = absPath(path)

	configFs := afero.NewBasePathFs(afero.NewOsFs(), path)
	configContents, err := afero.ReadFile(configFs, ConfigurationName)
	if err != nil {
		return nil, err
	}

	var out Configuration
	if err := yaml.UnmarshalStrict(configContents, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Join(path, ConfigurationName), err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Join(path, ConfigurationName), err)
	}
	out.configFs = configFs
	return &out, nil
}

// LoadOrDefault loads the configuration from the directory. If the directory
// has no configuration the defaults are used; files named relative to the
// directory are still found there if it exists.
func LoadOrDefault(path string) (*Configuration, error) {
	out, err := Load(path)
	if !errors.Is(err, fs.ErrNotExist) {
		return out, err
	}

	path = absPath(path)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		out = defaultConfig()
		out.configFs = afero.NewBasePathFs(afero.NewOsFs(), path)
		return out, nil
	}
	return Default(), nil
}

// Initialize writes the default configuration to dir if it doesn't already
// have one and returns the loaded result.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	dir = absPath(dir)
	logger.Printf("Initializing config in %q\n", dir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	configFs := afero.NewBasePathFs(afero.NewOsFs(), dir)
	switch _, err := configFs.Stat(ConfigurationName); {
	case err == nil:
		logger.Printf("- %s already exists, skipping\n", ConfigurationName)
	case errors.Is(err, fs.ErrNotExist):
		logger.Printf("- Writing %s\n", ConfigurationName)
		if err := afero.WriteFile(configFs, ConfigurationName, defaultConfigData, 0600); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return Load(dir)
}

// absPath makes path absolute so files in the config directory resolve
// to real paths.
func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
