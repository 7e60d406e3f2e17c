package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".webcrawler"

// XDGConfigFile is the configuration file name inside XDGConfigDir.
const XDGConfigFile = "config.yaml"

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidSiteDepth is returned when a site or the defaults set a
	// negative depth.
	ErrInvalidSiteDepth = errors.New("invalid site depth: must not be negative")
)

// LoadConfigFile reads site settings from the YAML file at path.
//
// Unknown keys are rejected so that a misspelt "ignorepatterns" does not
// silently crawl pages the user meant to skip. An empty file is a valid,
// empty configuration.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}

	var cf File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if cf.Defaults.Depth < 0 {
		return nil, fmt.Errorf("%w: defaults has depth %d", ErrInvalidSiteDepth, cf.Defaults.Depth)
	}
	for host, site := range cf.Sites {
		if site.Depth < 0 {
			return nil, fmt.Errorf("%w: %s has depth %d", ErrInvalidSiteDepth, host, site.Depth)
		}
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	return &cf, nil
}

// FindConfigFile returns the configuration file to load, or "" if there is
// none. An explicit configPath is returned only when it exists. Otherwise
// the first existing file of ConfigSearchPaths wins.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if fileExists(configPath) {
			return configPath
		}
		return ""
	}

	cwd, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	return firstExisting(ConfigSearchPaths(cwd, XDGConfigDir(), home))
}

// ConfigSearchPaths lists where a configuration file is looked for, most
// specific first:
//  1. .webcrawler in the working directory (per project)
//  2. config.yaml in the XDG config directory (per user)
//  3. .webcrawler in the home directory (per user, traditional dotfile)
//
// Empty directories are skipped.
func ConfigSearchPaths(cwd, xdgConfigDir, home string) []string {
	paths := make([]string, 0, 3)
	if cwd != "" {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	if xdgConfigDir != "" {
		paths = append(paths, filepath.Join(xdgConfigDir, XDGConfigFile))
	}
	if home != "" {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return paths
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
