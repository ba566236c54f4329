package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Configuration file names searched in the working directory.
const (
	DefaultConfigFile = ".cityscrape.yaml"
	AltConfigFile     = "cityscrape.yaml"
)

// LoadConfigFile loads site presets from a YAML file. A missing file yields
// ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	return &cf, nil
}

// FindConfigFile returns the configuration file to use, or "" when none
// exists. The search order is configPath, ./.cityscrape.yaml,
// ./cityscrape.yaml, then config.yaml in the XDG config directory.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := []string{DefaultConfigFile, AltConfigFile}
	if cwd, err := os.Getwd(); err == nil {
		for i, name := range candidates {
			candidates[i] = filepath.Join(cwd, name)
		}
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
